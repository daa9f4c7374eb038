package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/maastricht-university/emonet-train/collate"
	"github.com/maastricht-university/emonet-train/dataset"
	"github.com/maastricht-university/emonet-train/loader"
	"github.com/maastricht-university/emonet-train/text"
	"github.com/maastricht-university/emonet-train/trainer"
	"github.com/maastricht-university/emonet-train/viz"
	"github.com/maastricht-university/emonet-train/weights"
)

func (a *app) trainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Run training, validation and checkpointing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := trainer.New(cmd.Context(), a.conf, a.log)
			if err != nil {
				return err
			}
			return t.Run(cmd.Context())
		},
	}
}

func (a *app) inspectCmd() *cobra.Command {
	var out string
	var n int
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Render the first validation batch as spectrogram heatmaps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ds, err := a.dataset(cmd, a.conf.Data.ValIndex)
			if err != nil {
				return err
			}
			l := loader.New(ds, collate.Dynamic, loader.Options{BatchSize: n, Log: a.log})
			for b, err := range l.Batches(cmd.Context()) {
				if err != nil {
					return err
				}
				titles := make([]string, b.Size())
				for i := range titles {
					titles[i] = fmt.Sprintf("emotion %d: %s", b.Emotions[i], text.ToText(b.Transcriptions[i][:b.TranscriptionLengths[i]]))
				}
				if err := writeWith(afero.NewOsFs(), out, func(f afero.File) error { return viz.RenderBatch(f, b, titles) }); err != nil {
					return err
				}
				a.log.WithFields(logrus.Fields{"out": out, "shape": b.Shape()}).Info("batch rendered")
				return nil
			}
			return collate.ErrEmptyBatch
		},
	}
	cmd.Flags().StringVar(&out, "out", "batch.png", "png file to write")
	cmd.Flags().IntVar(&n, "n", 4, "batch size to render")
	return cmd
}

func (a *app) weightsCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "weights",
		Short: "Compute balanced class weights from the training split",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ds, err := a.dataset(cmd, a.conf.Data.TrainIndex)
			if err != nil {
				return err
			}
			counts, err := ds.EmotionCounts(a.conf.Model.NumEmotions)
			if err != nil {
				return err
			}
			w := weights.Balanced(counts)
			if err := weights.Save(afero.NewOsFs(), out, w); err != nil {
				return err
			}
			a.log.WithFields(logrus.Fields{"out": out, "counts": counts, "weights": w}).Info("weights written")
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "data/weights.npy", "npy file to write")
	return cmd
}

func (a *app) dataset(cmd *cobra.Command, index string) (*dataset.Dataset, error) {
	return dataset.New(cmd.Context(), afero.NewOsFs(), index, dataset.Options{
		Silence:   a.conf.Data.Silence,
		Padded:    a.conf.Data.Padded,
		Tokenizer: trainer.NewTokenizer(a.conf),
	})
}

func writeWith(fs afero.Fs, path string, fn func(afero.File) error) error {
	f, err := fs.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
