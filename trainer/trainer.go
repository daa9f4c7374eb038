// Package trainer runs the emotion classifier training loop.
package trainer

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/montanaflynn/stats"
	"github.com/sbwhitecap/tqdm"
	"github.com/sbwhitecap/tqdm/iterators"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/maastricht-university/emonet-train/clients"
	"github.com/maastricht-university/emonet-train/collate"
	cfg "github.com/maastricht-university/emonet-train/config"
	"github.com/maastricht-university/emonet-train/dataset"
	"github.com/maastricht-university/emonet-train/loader"
	"github.com/maastricht-university/emonet-train/model"
	"github.com/maastricht-university/emonet-train/nn"
	"github.com/maastricht-university/emonet-train/telemetry"
	"github.com/maastricht-university/emonet-train/text"
	"github.com/maastricht-university/emonet-train/weights"
)

type Trainer struct {
	cfg    *cfg.Root
	log    *logrus.Entry
	fs     afero.Fs
	device Device

	net     model.Network
	loss    *nn.WeightedCrossEntropy
	opt     *nn.Adam
	train   *loader.Loader
	val     *loader.Loader
	summary *telemetry.SummaryWriter

	state       State
	epoch, step int
	onState     func(State)
}

type Option func(*Trainer)

func WithFs(fs afero.Fs) Option { return func(t *Trainer) { t.fs = fs } }

// WithNetwork replaces the default EmotionEmbeddingNetwork.
func WithNetwork(n model.Network) Option { return func(t *Trainer) { t.net = n } }

// WithDevice skips device detection.
func WithDevice(d Device) Option { return func(t *Trainer) { t.device = d } }

// OnState is called on every state transition.
func OnState(fn func(State)) Option { return func(t *Trainer) { t.onState = fn } }

// New builds datasets, loaders, network, loss, optimizer and the event log, and
// warm-starts from train.checkpoint when set.
func New(ctx context.Context, c *cfg.Root, log *logrus.Logger, opts ...Option) (*Trainer, error) {
	t := &Trainer{
		cfg: c,
		log: log.WithFields(logrus.Fields{"component": "trainer", "run": c.Run.Name}),
		fs:  afero.NewOsFs(),
	}
	for _, o := range opts {
		o(t)
	}
	t.setState(Initializing)

	if t.device.Name == "" {
		d, err := resolveDevice(c.Run.Device, probeAccelerator)
		if err != nil {
			return nil, err
		}
		t.device = d
	}
	t.log.WithField("device", t.device.Name).Info("device selected")

	dsOpts := dataset.Options{Silence: c.Data.Silence, Padded: c.Data.Padded, Tokenizer: NewTokenizer(c)}
	trainDS, err := dataset.New(ctx, t.fs, c.Data.TrainIndex, dsOpts)
	if err != nil {
		return nil, err
	}
	valDS, err := dataset.New(ctx, t.fs, c.Data.ValIndex, dsOpts)
	if err != nil {
		return nil, err
	}
	t.log.WithFields(logrus.Fields{"train": trainDS.Len(), "val": valDS.Len(), "mels": trainDS.Dir()}).Info("datasets loaded")

	collateFn, err := collate.ByName(c.Loader.Collate)
	if err != nil {
		return nil, err
	}
	lopts := loader.Options{
		BatchSize:  batchSize(c.Loader.BatchSize, t.device, c.Loader.ClampOnCPU, t.log),
		NumWorkers: c.Loader.NumWorkers,
		Prefetch:   c.Loader.Prefetch,
		Shuffle:    c.Loader.Shuffle,
		Seed:       c.Run.Seed,
		Log:        t.log,
	}
	t.train = loader.New(trainDS, collateFn, lopts)
	lopts.Shuffle = false
	t.val = loader.New(valDS, collateFn, lopts)

	var w []float64
	if c.Data.Weights != "" {
		if w, err = weights.Load(t.fs, c.Data.Weights); err != nil {
			return nil, err
		}
		if len(w) != c.Model.NumEmotions {
			return nil, fmt.Errorf("trainer: %d class weights for %d emotions", len(w), c.Model.NumEmotions)
		}
	}
	t.loss = &nn.WeightedCrossEntropy{Weights: w}

	if t.net == nil {
		t.net = model.NewEmotionEmbeddingNetwork(model.Config{
			Features: c.Model.FeatureDim,
			Hidden:   c.Model.Hidden,
			Classes:  c.Model.NumEmotions,
			Seed:     c.Run.Seed,
		})
	}
	t.opt = nn.NewAdam(t.net.Params(), nn.AdamConfig{
		LR:          c.Optim.LR,
		Beta1:       c.Optim.Beta1,
		Beta2:       c.Optim.Beta2,
		Eps:         c.Optim.Eps,
		WeightDecay: c.Optim.WeightDecay,
	})

	if c.Train.Checkpoint != "" {
		if err := t.restore(c.Train.Checkpoint); err != nil {
			return nil, err
		}
	}

	logDir := filepath.Join(c.Paths.Logs, c.Run.Name)
	if t.summary, err = telemetry.NewSummaryWriter(t.fs, logDir); err != nil {
		return nil, err
	}
	if err := cfg.Write(t.fs, filepath.Join(logDir, "config.yaml"), c); err != nil {
		t.summary.Close()
		return nil, err
	}
	return t, nil
}

// NewTokenizer returns the remote text service client when services.text.url is
// set and the local cleaners otherwise.
func NewTokenizer(c *cfg.Root) dataset.Tokenizer {
	if c.Services.Text.URL != "" {
		return &clients.RemoteTokenizer{HTTP: clients.NewHTTP(), URL: c.Services.Text.URL, Cleaners: c.Data.Cleaners}
	}
	return text.NewTokenizer(c.Data.Cleaners...)
}

func (t *Trainer) State() State { return t.state }

// Epoch is the next epoch to train.
func (t *Trainer) Epoch() int { return t.epoch }

// Step is the number of optimizer steps taken, including restored ones.
func (t *Trainer) Step() int { return t.step }

func (t *Trainer) Network() model.Network { return t.net }

func (t *Trainer) setState(s State) {
	if t.state == s && s != Initializing {
		return
	}
	t.state = s
	t.log.WithField("state", s).Debug("state")
	if t.onState != nil {
		t.onState(s)
	}
}

// Run trains the remaining epochs, then closes the event log.
func (t *Trainer) Run(ctx context.Context) error {
	defer t.summary.Close()

	epochs := t.cfg.Train.NumEpochs
	if t.epoch >= epochs {
		t.log.WithFields(logrus.Fields{"epoch": t.epoch, "num_epochs": epochs}).Warn("nothing left to train")
		t.setState(Done)
		return nil
	}

	if t.cfg.Run.Progress {
		var runErr error
		err := tqdm.With(iterators.Interval(t.epoch, epochs), "Epochs", func(v interface{}) (brk bool) {
			runErr = t.runEpoch(ctx, v.(int))
			return runErr != nil
		})
		if runErr != nil {
			return runErr
		}
		if err != nil {
			return err
		}
	} else {
		for e := t.epoch; e < epochs; e++ {
			if err := t.runEpoch(ctx, e); err != nil {
				return err
			}
		}
	}
	t.setState(Done)
	t.log.WithField("steps", t.step).Info("training done")
	return nil
}

func (t *Trainer) runEpoch(ctx context.Context, e int) error {
	t.setState(EpochTraining)
	t.net.Train()
	log := t.log.WithField("epoch", e)

	var running float64
	var count int
	for b, err := range t.train.Batches(ctx) {
		if err != nil {
			return fmt.Errorf("epoch %d: %w", e, err)
		}
		loss, err := t.trainStep(b)
		if err != nil {
			return fmt.Errorf("epoch %d step %d: %w", e, t.step, err)
		}
		running += loss
		count++

		if t.step%t.cfg.Train.TrainLossFreq == 0 {
			avg := running / float64(count)
			t.summary.AddScalar(TagTrainingLoss, avg, t.step)
			log.WithFields(logrus.Fields{"step": t.step, "loss": avg}).Debug("training loss")
			running, count = 0, 0
		}
		if t.step%t.cfg.Train.ValLossFreq == 0 {
			if err := t.validate(ctx); err != nil {
				return fmt.Errorf("epoch %d step %d: %w", e, t.step, err)
			}
		}
		t.step++
	}

	t.setState(Checkpointing)
	if err := t.persist(e); err != nil {
		return fmt.Errorf("epoch %d: %w", e, err)
	}
	t.epoch = e + 1
	return nil
}

func (t *Trainer) trainStep(b *collate.Batch) (float64, error) {
	out, err := t.net.Forward(b)
	if err != nil {
		return 0, err
	}
	loss, grad, err := t.loss.Forward(out.Logits, b.Emotions)
	if err != nil {
		return 0, err
	}
	if !finite(loss) {
		return 0, fmt.Errorf("trainer: loss is %v", loss)
	}
	t.opt.ZeroGrad()
	if err := t.net.Backward(grad); err != nil {
		return 0, err
	}
	t.opt.Step()
	return loss, nil
}

// validate runs a full validation pass in eval mode and logs the mean batch loss.
func (t *Trainer) validate(ctx context.Context) error {
	t.setState(PeriodicValidation)
	t.net.Eval()
	defer func() {
		t.net.Train()
		t.setState(EpochTraining)
	}()

	var losses []float64
	for b, err := range t.val.Batches(ctx) {
		if err != nil {
			return fmt.Errorf("validation: %w", err)
		}
		out, err := t.net.Forward(b)
		if err != nil {
			return fmt.Errorf("validation: %w", err)
		}
		loss, _, err := t.loss.Forward(out.Logits, b.Emotions)
		if err != nil {
			return fmt.Errorf("validation: %w", err)
		}
		losses = append(losses, loss)
	}

	if len(losses) == 0 {
		t.log.WithField("step", t.step).Warn("validation set is empty")
		return nil
	}
	mean, err := stats.Mean(losses)
	if err != nil {
		return err
	}
	t.summary.AddScalar(TagValidationLoss, mean, t.step)
	t.log.WithFields(logrus.Fields{"step": t.step, "loss": mean, "batches": len(losses)}).Info("validation loss")
	return nil
}
