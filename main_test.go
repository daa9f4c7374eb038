package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfg "github.com/maastricht-university/emonet-train/config"
	"github.com/maastricht-university/emonet-train/dataset/datasettest"
	"github.com/maastricht-university/emonet-train/weights"
)

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	fs := afero.NewOsFs()

	v := viper.New()
	cfg.SetDefaults(v)
	var c cfg.Root
	require.NoError(t, v.Unmarshal(&c))
	c.Run.Name = "cli"
	c.Run.Progress = false
	c.Run.Device = "accelerator"
	c.Model = cfg.Model{FeatureDim: 3, Hidden: 4, NumEmotions: 3}
	c.Data.TrainIndex = filepath.Join(dir, "data", "splits", "train.csv")
	c.Data.ValIndex = filepath.Join(dir, "data", "splits", "val.csv")
	c.Data.Weights = filepath.Join(dir, "data", "weights.npy")
	c.Data.Padded = false
	c.Loader.Collate = "dynamic"
	c.Paths.SavedModels = filepath.Join(dir, "saved_models")
	c.Paths.Logs = filepath.Join(dir, "logs")

	rows := []datasettest.Row{
		{Name: "Ses01F_impro01_F000", Emotion: 0, Speaker: 0, Transcription: "Excuse me.", Frames: 5},
		{Name: "Ses01F_impro01_F001", Emotion: 0, Speaker: 1, Transcription: "Do you have your forms?", Frames: 7},
		{Name: "Ses01F_impro01_F002", Emotion: 1, Speaker: 0, Transcription: "Yeah.", Frames: 6},
		{Name: "Ses01F_impro01_F003", Emotion: 2, Speaker: 1, Transcription: "Let me see them.", Frames: 9},
	}
	datasettest.WriteSplit(t, fs, c.Data.TrainIndex, 3, c.Data.Silence, false, rows)
	datasettest.WriteSplit(t, fs, c.Data.ValIndex, 3, c.Data.Silence, false, rows[:2])

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, cfg.Write(fs, path, &c))
	return dir, path
}

func TestWeightsThenTrain(t *testing.T) {
	dir, conf := writeConfig(t)
	out := filepath.Join(dir, "data", "weights.npy")

	cmd := newApp().rootCmd()
	cmd.SetArgs([]string{"--config", conf, "weights", "--out", out})
	require.NoError(t, cmd.Execute())

	w, err := weights.Load(afero.NewOsFs(), out)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{4.0 / 6, 4.0 / 3, 4.0 / 3}, w, 1e-12)

	cmd = newApp().rootCmd()
	cmd.SetArgs([]string{"--config", conf, "--epochs", "2", "--batch-size", "2", "train"})
	require.NoError(t, cmd.Execute())
	for _, name := range []string{"cli_0_.tar", "cli_1_.tar"} {
		_, err := os.Stat(filepath.Join(dir, "saved_models", name))
		assert.NoError(t, err, name)
	}
}

func TestInspect(t *testing.T) {
	dir, conf := writeConfig(t)
	out := filepath.Join(dir, "batch.png")

	cmd := newApp().rootCmd()
	cmd.SetArgs([]string{"--config", conf, "inspect", "--out", out})
	require.NoError(t, cmd.Execute())

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(b[:4]))
}

func TestFlagsOverrideConfig(t *testing.T) {
	_, conf := writeConfig(t)
	a := newApp()
	cmd := a.rootCmd()
	cmd.SetArgs([]string{"--config", conf, "--name", "override", "--lr", "0.5", "--val-loss-freq", "7",
		"weights", "--out", filepath.Join(t.TempDir(), "w.npy")})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, "override", a.conf.Run.Name)
	assert.Equal(t, 0.5, a.conf.Optim.LR)
	assert.Equal(t, 7, a.conf.Train.ValLossFreq)
	// untouched flags leave the file values alone
	assert.Equal(t, 4, a.conf.Loader.BatchSize)
	assert.Equal(t, 3, a.conf.Model.NumEmotions)
}

func TestBadConfig(t *testing.T) {
	cmd := newApp().rootCmd()
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "train"})
	assert.Error(t, cmd.Execute())
}
