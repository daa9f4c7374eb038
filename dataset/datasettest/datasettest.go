// Package datasettest writes small IEMOCAP-style splits for tests.
package datasettest

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/maastricht-university/emonet-train/dataset"
	"github.com/maastricht-university/emonet-train/melspec"
)

const Header = "path|emotion|valence|arousal|dominance|transcription|speaker"

type Row struct {
	Name          string // utterance id, e.g. Ses01F_impro01_F000
	Emotion       int
	Speaker       int
	Transcription string
	Frames        int // 0 writes no spectrogram
}

// WriteSplit writes an index at indexPath and a spectrogram per row whose values
// are (row+1) * (feature + frame/100), so samples are distinguishable.
func WriteSplit(t testing.TB, fs afero.Fs, indexPath string, features int, silence, padded bool, rows []Row) {
	t.Helper()
	lines := []string{Header}
	dir := dataset.MelDir(indexPath, silence, padded)
	for i, r := range rows {
		media := path.Join("IEMOCAP", "Session1", r.Name+".wav")
		lines = append(lines, fmt.Sprintf("%s|%d|2.5|3.0|2.0|%s|%d", media, r.Emotion, r.Transcription, r.Speaker))
		if r.Frames == 0 {
			continue
		}
		require.NoError(t, melspec.Save(fs, filepath.Join(dir, dataset.MelFile(media, silence)), Mel(i, features, r.Frames)))
	}
	require.NoError(t, fs.MkdirAll(filepath.Dir(indexPath), 0o755))
	require.NoError(t, afero.WriteFile(fs, indexPath, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
}

func Mel(row, features, frames int) *mat.Dense {
	m := mat.NewDense(features, frames, nil)
	for f := 0; f < features; f++ {
		for t := 0; t < frames; t++ {
			m.Set(f, t, float64(row+1)*(float64(f)+float64(t)/100))
		}
	}
	return m
}
