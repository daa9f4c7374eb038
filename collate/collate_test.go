package collate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/maastricht-university/emonet-train/dataset"
	"github.com/maastricht-university/emonet-train/dataset/datasettest"
)

func sample(row, features, frames, emotion int, seq ...int) dataset.Sample {
	return dataset.Sample{
		Mel:           datasettest.Mel(row, features, frames),
		Emotion:       emotion,
		Speaker:       row,
		Transcription: seq,
	}
}

func TestDynamicTwoRows(t *testing.T) {
	b, err := Dynamic([]dataset.Sample{
		sample(0, 80, 10, 0, 5, 6, 7),
		sample(1, 80, 14, 1, 8),
	})
	require.NoError(t, err)

	assert.Equal(t, [3]int{2, 80, 14}, b.Shape())
	assert.Equal(t, []int{10, 14}, b.MelLengths)
	assert.Equal(t, []int{0, 1}, b.Emotions)
	assert.Equal(t, []int{3, 1}, b.TranscriptionLengths)
	assert.Equal(t, [][]int{{5, 6, 7}, {8, 0, 0}}, b.Transcriptions)

	// true frames are kept, the tail is zero
	src := datasettest.Mel(0, 80, 10)
	for f := 0; f < 80; f++ {
		for ti := 0; ti < 14; ti++ {
			want := 0.0
			if ti < 10 {
				want = src.At(f, ti)
			}
			assert.Equal(t, want, b.Mels[0].At(f, ti))
		}
	}
	assert.True(t, mat.Equal(datasettest.Mel(1, 80, 14), b.Mels[1]))
}

func TestDynamicPadsToMax(t *testing.T) {
	lengths := []int{3, 9, 1, 9, 4}
	var samples []dataset.Sample
	for i, n := range lengths {
		samples = append(samples, sample(i, 4, n, i%2, make([]int, n%3+1)...))
	}
	b, err := Dynamic(samples)
	require.NoError(t, err)

	maxLen := 9
	for i := range samples {
		_, frames := b.Mels[i].Dims()
		assert.Equal(t, maxLen, frames)
		assert.LessOrEqual(t, b.MelLengths[i], maxLen)
		assert.Equal(t, lengths[i], b.Lengths(i))
		assert.Len(t, b.Transcriptions[i], 2)
	}
}

func TestDynamicBatchOfOne(t *testing.T) {
	s := sample(2, 3, 6, 1, 9, 9)
	b, err := Dynamic([]dataset.Sample{s})
	require.NoError(t, err)
	assert.Equal(t, [3]int{1, 3, 6}, b.Shape())
	assert.True(t, mat.Equal(s.Mel, b.Mels[0]))
	assert.Equal(t, []int{6}, b.MelLengths)
	assert.Equal(t, [][]int{{9, 9}}, b.Transcriptions)
}

func TestDynamicFeatureMismatch(t *testing.T) {
	_, err := Dynamic([]dataset.Sample{sample(0, 3, 4, 0), sample(1, 4, 4, 0)})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestFixed(t *testing.T) {
	in := []dataset.Sample{sample(0, 2, 5, 3), sample(1, 2, 5, 1)}
	b, err := Fixed(in)
	require.NoError(t, err)
	assert.Equal(t, [3]int{2, 2, 5}, b.Shape())
	assert.Equal(t, []int{3, 1}, b.Emotions)
	assert.Equal(t, []int{0, 1}, b.Speakers)
	assert.Nil(t, b.MelLengths)
	assert.Nil(t, b.Transcriptions)
	assert.Equal(t, 5, b.Lengths(1))

	// the batch owns its data
	in[0].Mel.Set(0, 0, 42)
	assert.NotEqual(t, 42.0, b.Mels[0].At(0, 0))
}

func TestFixedShapeMismatch(t *testing.T) {
	_, err := Fixed([]dataset.Sample{sample(0, 2, 5, 0), sample(1, 2, 6, 0)})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestEmpty(t *testing.T) {
	_, err := Fixed(nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)
	_, err = Dynamic(nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestByName(t *testing.T) {
	for _, name := range []string{"fixed", "dynamic"} {
		fn, err := ByName(name)
		require.NoError(t, err)
		assert.NotNil(t, fn)
	}
	_, err := ByName("tacotron")
	assert.Error(t, err)
}
