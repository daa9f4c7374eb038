// Package dataset adapts an IEMOCAP split index to a random-access sample source.
package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"gonum.org/v1/gonum/mat"

	"github.com/maastricht-university/emonet-train/melspec"
	"github.com/maastricht-university/emonet-train/text"
)

// Index columns.
const (
	colMedia         = 0
	colEmotion       = 1
	colTranscription = 5
	minColumns       = colTranscription + 1
)

var ErrOutOfRange = errors.New("dataset: index out of range")

type Tokenizer interface {
	Tokenize(ctx context.Context, text string) ([]int, error)
}

type Options struct {
	Silence bool // spectrograms were computed with silence kept
	Padded  bool // spectrograms were padded to a common length upstream
	// Tokenizer defaults to the local english_cleaners pipeline.
	Tokenizer Tokenizer
}

type Entry struct {
	MelPath       string
	Emotion       int
	Speaker       int
	Transcription []int
}

type Sample struct {
	Mel           *mat.Dense // features x frames
	Emotion       int
	Transcription []int
	Speaker       int
}

type Dataset struct {
	fs      afero.Fs
	dir     string
	entries []Entry
}

// New parses the index at indexPath. Spectrograms are not touched until Get.
func New(ctx context.Context, fs afero.Fs, indexPath string, opts Options) (*Dataset, error) {
	tok := opts.Tokenizer
	if tok == nil {
		tok = text.NewTokenizer()
	}
	f, err := fs.Open(indexPath)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	defer f.Close()

	d := &Dataset{fs: fs, dir: MelDir(indexPath, opts.Silence, opts.Padded)}

	r := csv.NewReader(f)
	r.Comma = '|'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("dataset %s: missing header row", indexPath)
		}
		return nil, fmt.Errorf("dataset %s: %w", indexPath, err)
	}
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", indexPath, err)
		}
		line, _ := r.FieldPos(0)
		e, err := d.parseRow(ctx, row, opts.Silence, tok)
		if err != nil {
			return nil, fmt.Errorf("dataset %s line %d: %w", indexPath, line, err)
		}
		d.entries = append(d.entries, e)
	}
	return d, nil
}

func (d *Dataset) parseRow(ctx context.Context, row []string, silence bool, tok Tokenizer) (Entry, error) {
	if len(row) == 1 {
		return Entry{}, fmt.Errorf("no %q delimiter in row", '|')
	}
	if len(row) < minColumns {
		return Entry{}, fmt.Errorf("%d columns, want at least %d", len(row), minColumns)
	}
	emotion, err := strconv.Atoi(strings.TrimSpace(row[colEmotion]))
	if err != nil {
		return Entry{}, fmt.Errorf("emotion id: %w", err)
	}
	speaker, err := strconv.Atoi(strings.TrimSpace(row[len(row)-1]))
	if err != nil {
		return Entry{}, fmt.Errorf("speaker id: %w", err)
	}
	seq, err := tok.Tokenize(ctx, row[colTranscription])
	if err != nil {
		return Entry{}, fmt.Errorf("transcription: %w", err)
	}
	return Entry{
		MelPath:       filepath.Join(d.dir, MelFile(row[colMedia], silence)),
		Emotion:       emotion,
		Speaker:       speaker,
		Transcription: seq,
	}, nil
}

func (d *Dataset) Len() int { return len(d.entries) }

// Dir is where Get looks for spectrograms.
func (d *Dataset) Dir() string { return d.dir }

func (d *Dataset) Entry(i int) (Entry, error) {
	if i < 0 || i >= len(d.entries) {
		return Entry{}, fmt.Errorf("%w: %d of %d", ErrOutOfRange, i, len(d.entries))
	}
	return d.entries[i], nil
}

// Get loads sample i, reading its spectrogram from disk on every call.
func (d *Dataset) Get(i int) (Sample, error) {
	e, err := d.Entry(i)
	if err != nil {
		return Sample{}, err
	}
	m, err := melspec.Load(d.fs, e.MelPath)
	if err != nil {
		return Sample{}, fmt.Errorf("dataset sample %d: %w", i, err)
	}
	return Sample{Mel: m, Emotion: e.Emotion, Transcription: e.Transcription, Speaker: e.Speaker}, nil
}

// EmotionCounts tallies emotion ids in [0, classes); ids outside are an error.
func (d *Dataset) EmotionCounts(classes int) ([]int, error) {
	counts := make([]int, classes)
	for i, e := range d.entries {
		if e.Emotion < 0 || e.Emotion >= classes {
			return nil, fmt.Errorf("dataset entry %d: emotion %d outside [0, %d)", i, e.Emotion, classes)
		}
		counts[e.Emotion]++
	}
	return counts, nil
}
