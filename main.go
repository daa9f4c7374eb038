package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cfg "github.com/maastricht-university/emonet-train/config"
)

// flagKeys maps persistent flags onto config keys.
var flagKeys = map[string]string{
	"name":            "run.name",
	"log-level":       "run.log_level",
	"batch-size":      "loader.batch_size",
	"lr":              "optim.lr",
	"epochs":          "train.num_epochs",
	"train-loss-freq": "train.train_loss_freq",
	"val-loss-freq":   "train.val_loss_freq",
	"checkpoint":      "train.checkpoint",
}

type app struct {
	v          *viper.Viper
	configPath string
	conf       *cfg.Root
	log        *logrus.Logger
}

func newApp() *app { return &app{v: viper.New()} }

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "emonet",
		Short:         "Train the speech emotion embedding network",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := cfg.Load(a.v, a.configPath)
			if err != nil {
				return err
			}
			a.conf = conf
			a.log = cfg.NewLogger(conf.Run.LogLvl, os.Stderr)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default config/$CONFIG_ENV/config.yaml)")
	pf.String("name", "", "run name, used for checkpoints and logs")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.Int("batch-size", 0, "batch size")
	pf.Float64("lr", 0, "learning rate")
	pf.Int("epochs", 0, "number of epochs")
	pf.Int("train-loss-freq", 0, "log training loss every n steps")
	pf.Int("val-loss-freq", 0, "validate every n steps")
	pf.String("checkpoint", "", "checkpoint to warm start from")
	for flag, key := range flagKeys {
		if err := a.v.BindPFlag(key, pf.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	root.AddCommand(a.trainCmd(), a.inspectCmd(), a.weightsCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newApp().rootCmd().ExecuteContext(ctx); err != nil {
		logrus.WithError(err).Fatal("emonet failed")
	}
}
