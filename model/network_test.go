package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/maastricht-university/emonet-train/collate"
	"github.com/maastricht-university/emonet-train/dataset"
	"github.com/maastricht-university/emonet-train/dataset/datasettest"
	"github.com/maastricht-university/emonet-train/nn"
)

func batch(t *testing.T, frames ...int) *collate.Batch {
	t.Helper()
	var samples []dataset.Sample
	for i, n := range frames {
		samples = append(samples, dataset.Sample{Mel: datasettest.Mel(i, 3, n), Emotion: i % 2})
	}
	b, err := collate.Dynamic(samples)
	require.NoError(t, err)
	return b
}

func TestForwardShapes(t *testing.T) {
	net := NewEmotionEmbeddingNetwork(Config{Features: 3, Hidden: 5, Classes: 4, Seed: 1})
	out, err := net.Forward(batch(t, 4, 7))
	require.NoError(t, err)
	r, c := out.Logits.Dims()
	assert.Equal(t, []int{2, 4}, []int{r, c})
	r, c = out.Embeddings.Dims()
	assert.Equal(t, []int{2, 5}, []int{r, c})
	assert.Len(t, net.Params(), 4)
}

func TestPaddingDoesNotChangeOutput(t *testing.T) {
	net := NewEmotionEmbeddingNetwork(Config{Features: 3, Hidden: 5, Classes: 4, Seed: 2})
	alone, err := net.Forward(batch(t, 4))
	require.NoError(t, err)
	padded, err := net.Forward(batch(t, 4, 11))
	require.NoError(t, err)
	assert.InDeltaSlice(t, alone.Logits.RawRowView(0), padded.Logits.RawRowView(0), 1e-12)
}

func TestSeedIsDeterministic(t *testing.T) {
	a := NewEmotionEmbeddingNetwork(Config{Features: 2, Hidden: 3, Classes: 2, Seed: 9})
	b := NewEmotionEmbeddingNetwork(Config{Features: 2, Hidden: 3, Classes: 2, Seed: 9})
	assert.Equal(t, nn.StateDict(a.Params()), nn.StateDict(b.Params()))
}

func TestBackwardMatchesFiniteDifferences(t *testing.T) {
	net := NewEmotionEmbeddingNetwork(Config{Features: 3, Hidden: 4, Classes: 3, Seed: 3})
	b := batch(t, 5, 3, 6)
	loss := &nn.WeightedCrossEntropy{Weights: []float64{1, 2, 0.5}}
	targets := []int{0, 2, 1}

	eval := func() float64 {
		out, err := net.Forward(b)
		require.NoError(t, err)
		l, _, err := loss.Forward(out.Logits, targets)
		require.NoError(t, err)
		return l
	}

	for _, p := range net.Params() {
		p.ZeroGrad()
	}
	out, err := net.Forward(b)
	require.NoError(t, err)
	_, dLogits, err := loss.Forward(out.Logits, targets)
	require.NoError(t, err)
	require.NoError(t, net.Backward(dLogits))

	const h = 1e-6
	for _, p := range net.Params() {
		r, c := p.Value.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				orig := p.Value.At(i, j)
				p.Value.Set(i, j, orig+h)
				up := eval()
				p.Value.Set(i, j, orig-h)
				down := eval()
				p.Value.Set(i, j, orig)
				assert.InDelta(t, (up-down)/(2*h), p.Grad.At(i, j), 1e-5, "%s[%d,%d]", p.Name, i, j)
			}
		}
	}
}

func TestEvalKeepsNoGrad(t *testing.T) {
	net := NewEmotionEmbeddingNetwork(Config{Features: 3, Hidden: 4, Classes: 2})
	net.Eval()
	out, err := net.Forward(batch(t, 4, 4))
	require.NoError(t, err)
	assert.ErrorIs(t, net.Backward(mat.NewDense(2, 2, nil)), ErrNoGrad)

	net.Train()
	out, err = net.Forward(batch(t, 4, 4))
	require.NoError(t, err)
	require.NoError(t, net.Backward(mat.NewDense(2, 2, nil)))
	assert.ErrorIs(t, net.Backward(mat.NewDense(2, 2, nil)), ErrNoGrad, "activations are released")
	assert.NotNil(t, out)
}

func TestForwardRejectsFeatureMismatch(t *testing.T) {
	net := NewEmotionEmbeddingNetwork(Config{Features: 4, Hidden: 4, Classes: 2})
	_, err := net.Forward(batch(t, 4))
	assert.ErrorIs(t, err, nn.ErrShape)
}
