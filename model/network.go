// Package model defines the networks the trainer can optimize.
package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/maastricht-university/emonet-train/collate"
	"github.com/maastricht-university/emonet-train/nn"
)

// ErrNoGrad is returned by Backward when no activations were kept, either in
// eval mode or after the gradient was already taken.
var ErrNoGrad = errors.New("model: no activations for backward")

type Output struct {
	Logits     *mat.Dense // batch x classes
	Embeddings *mat.Dense // batch x hidden
}

type Network interface {
	Forward(b *collate.Batch) (*Output, error)
	Backward(dLogits *mat.Dense) error
	Params() []*nn.Param
	Train()
	Eval()
}

type Config struct {
	Features int
	Hidden   int
	Classes  int
	Seed     int64
}

// EmotionEmbeddingNetwork pools each spectrogram to per-band mean and standard
// deviation over its true frames, embeds with tanh(W1 x + b1) and classifies
// with W2 h + b2.
type EmotionEmbeddingNetwork struct {
	cfg            Config
	w1, b1, w2, b2 *nn.Param
	training       bool

	// activations of the last training forward pass
	x, h *mat.Dense
}

func NewEmotionEmbeddingNetwork(cfg Config) *EmotionEmbeddingNetwork {
	rng := rand.New(rand.NewSource(cfg.Seed))
	in := 2 * cfg.Features
	return &EmotionEmbeddingNetwork{
		cfg:      cfg,
		w1:       nn.NewParam("embedding.weight", cfg.Hidden, in, uniform(rng, cfg.Hidden*in, in)),
		b1:       nn.NewParam("embedding.bias", 1, cfg.Hidden, uniform(rng, cfg.Hidden, in)),
		w2:       nn.NewParam("classifier.weight", cfg.Classes, cfg.Hidden, uniform(rng, cfg.Classes*cfg.Hidden, cfg.Hidden)),
		b2:       nn.NewParam("classifier.bias", 1, cfg.Classes, uniform(rng, cfg.Classes, cfg.Hidden)),
		training: true,
	}
}

// uniform draws from U(-1/sqrt(fanIn), 1/sqrt(fanIn)), torch's Linear default.
func uniform(rng *rand.Rand, n, fanIn int) []float64 {
	bound := 1 / math.Sqrt(float64(fanIn))
	out := make([]float64, n)
	for i := range out {
		out[i] = (2*rng.Float64() - 1) * bound
	}
	return out
}

func (n *EmotionEmbeddingNetwork) Params() []*nn.Param {
	return []*nn.Param{n.w1, n.b1, n.w2, n.b2}
}

func (n *EmotionEmbeddingNetwork) Train() { n.training = true }

func (n *EmotionEmbeddingNetwork) Eval() {
	n.training = false
	n.x, n.h = nil, nil
}

func (n *EmotionEmbeddingNetwork) Forward(b *collate.Batch) (*Output, error) {
	x, err := n.pool(b)
	if err != nil {
		return nil, err
	}
	batch := b.Size()

	h := mat.NewDense(batch, n.cfg.Hidden, nil)
	h.Mul(x, n.w1.Value.T())
	addRow(h, n.b1.Value.RawRowView(0))
	h.Apply(func(_, _ int, v float64) float64 { return math.Tanh(v) }, h)

	logits := mat.NewDense(batch, n.cfg.Classes, nil)
	logits.Mul(h, n.w2.Value.T())
	addRow(logits, n.b2.Value.RawRowView(0))

	if n.training {
		n.x, n.h = x, h
	}
	return &Output{Logits: logits, Embeddings: mat.DenseCopyOf(h)}, nil
}

// pool builds the batch x 2F matrix of masked means then standard deviations.
func (n *EmotionEmbeddingNetwork) pool(b *collate.Batch) (*mat.Dense, error) {
	if b.Size() == 0 {
		return nil, collate.ErrEmptyBatch
	}
	feats := n.cfg.Features
	x := mat.NewDense(b.Size(), 2*feats, nil)
	for i, m := range b.Mels {
		f, frames := m.Dims()
		if f != feats {
			return nil, fmt.Errorf("model: %w: sample %d has %d features, want %d", nn.ErrShape, i, f, feats)
		}
		length := b.Lengths(i)
		if length < 1 || length > frames {
			return nil, fmt.Errorf("model: sample %d length %d outside [1, %d]", i, length, frames)
		}
		row := x.RawRowView(i)
		for band := 0; band < feats; band++ {
			vals := m.RawRowView(band)[:length]
			mean := floats.Sum(vals) / float64(length)
			var ss float64
			for _, v := range vals {
				ss += (v - mean) * (v - mean)
			}
			row[band] = mean
			row[feats+band] = math.Sqrt(ss / float64(length))
		}
	}
	return x, nil
}

func (n *EmotionEmbeddingNetwork) Backward(dLogits *mat.Dense) error {
	if n.x == nil {
		return ErrNoGrad
	}
	x, h := n.x, n.h
	n.x, n.h = nil, nil

	batch, classes := dLogits.Dims()
	if hr, _ := h.Dims(); batch != hr || classes != n.cfg.Classes {
		return fmt.Errorf("model: %w: gradient is %dx%d", nn.ErrShape, batch, classes)
	}

	var dW2 mat.Dense
	dW2.Mul(dLogits.T(), h)
	n.w2.Grad.Add(n.w2.Grad, &dW2)
	addColSums(n.b2.Grad, dLogits)

	dPre := mat.NewDense(batch, n.cfg.Hidden, nil)
	dPre.Mul(dLogits, n.w2.Value)
	dPre.Apply(func(i, j int, v float64) float64 {
		a := h.At(i, j)
		return v * (1 - a*a)
	}, dPre)

	var dW1 mat.Dense
	dW1.Mul(dPre.T(), x)
	n.w1.Grad.Add(n.w1.Grad, &dW1)
	addColSums(n.b1.Grad, dPre)
	return nil
}

func addRow(m *mat.Dense, row []float64) {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		floats.Add(m.RawRowView(i), row)
	}
}

func addColSums(dst *mat.Dense, m *mat.Dense) {
	out := dst.RawRowView(0)
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		floats.Add(out, m.RawRowView(i))
	}
}
