// Package collate assembles dataset samples into padded batches.
package collate

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/maastricht-university/emonet-train/dataset"
	"github.com/maastricht-university/emonet-train/text"
)

var (
	ErrEmptyBatch    = errors.New("collate: empty batch")
	ErrShapeMismatch = errors.New("collate: shape mismatch")
)

// Batch is a set of samples right-padded along time. MelLengths and
// TranscriptionLengths hold the pre-padding lengths; both, together with
// Transcriptions, are nil for fixed-shape batches.
type Batch struct {
	Mels                 []*mat.Dense // each features x frames
	Emotions             []int
	Speakers             []int
	Transcriptions       [][]int
	MelLengths           []int
	TranscriptionLengths []int
}

func (b *Batch) Size() int { return len(b.Mels) }

// Shape is [batch, features, frames].
func (b *Batch) Shape() [3]int {
	if len(b.Mels) == 0 {
		return [3]int{}
	}
	f, t := b.Mels[0].Dims()
	return [3]int{len(b.Mels), f, t}
}

// Lengths returns the true frame count of sample i.
func (b *Batch) Lengths(i int) int {
	if b.MelLengths != nil {
		return b.MelLengths[i]
	}
	_, t := b.Mels[i].Dims()
	return t
}

type Func func(samples []dataset.Sample) (*Batch, error)

// ByName resolves the collation configured as "fixed" or "dynamic".
func ByName(name string) (Func, error) {
	switch name {
	case "fixed":
		return Fixed, nil
	case "dynamic":
		return Dynamic, nil
	}
	return nil, fmt.Errorf("collate: unknown function %q", name)
}

// Fixed expects every spectrogram to already have the first sample's shape.
func Fixed(samples []dataset.Sample) (*Batch, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyBatch
	}
	f, t := samples[0].Mel.Dims()
	b := &Batch{
		Mels:     make([]*mat.Dense, len(samples)),
		Emotions: make([]int, len(samples)),
		Speakers: make([]int, len(samples)),
	}
	for i, s := range samples {
		if sf, st := s.Mel.Dims(); sf != f || st != t {
			return nil, fmt.Errorf("%w: sample %d is %dx%d, batch is %dx%d", ErrShapeMismatch, i, sf, st, f, t)
		}
		b.Mels[i] = mat.DenseCopyOf(s.Mel)
		b.Emotions[i] = s.Emotion
		b.Speakers[i] = s.Speaker
	}
	return b, nil
}

// Dynamic zero-pads spectrograms, then transcriptions, to the longest in the batch.
func Dynamic(samples []dataset.Sample) (*Batch, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyBatch
	}
	n := len(samples)
	features, _ := samples[0].Mel.Dims()
	b := &Batch{
		Mels:                 make([]*mat.Dense, n),
		Emotions:             make([]int, n),
		Speakers:             make([]int, n),
		Transcriptions:       make([][]int, n),
		MelLengths:           make([]int, n),
		TranscriptionLengths: make([]int, n),
	}

	maxMel, maxText := 0, 0
	for i, s := range samples {
		f, t := s.Mel.Dims()
		if f != features {
			return nil, fmt.Errorf("%w: sample %d has %d features, batch has %d", ErrShapeMismatch, i, f, features)
		}
		b.MelLengths[i] = t
		b.TranscriptionLengths[i] = len(s.Transcription)
		maxMel = max(maxMel, t)
		maxText = max(maxText, len(s.Transcription))
	}

	for i, s := range samples {
		m := mat.NewDense(features, maxMel, nil)
		m.Slice(0, features, 0, b.MelLengths[i]).(*mat.Dense).Copy(s.Mel)
		b.Mels[i] = m

		seq := make([]int, maxText)
		for j := copy(seq, s.Transcription); j < maxText; j++ {
			seq[j] = text.PadID
		}
		b.Transcriptions[i] = seq
		b.Emotions[i] = s.Emotion
		b.Speakers[i] = s.Speaker
	}
	return b, nil
}
