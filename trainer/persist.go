package trainer

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/emonet-train/checkpoint"
	"github.com/maastricht-university/emonet-train/nn"
)

// persist writes the checkpoint for epoch e. A crash mid-write leaves a broken
// file behind.
func (t *Trainer) persist(e int) error {
	path := checkpoint.Path(t.cfg.Paths.SavedModels, t.cfg.Run.Name, e)
	n, err := checkpoint.Save(t.fs, path, &checkpoint.State{
		Meta: checkpoint.Meta{
			Run:     t.cfg.Run.Name,
			Epoch:   e,
			Step:    t.step,
			SavedAt: time.Now().UTC(),
		},
		StateDict: nn.StateDict(t.net.Params()),
		Optimizer: t.opt.StateDict(),
	})
	if err != nil {
		return err
	}
	t.log.WithFields(logrus.Fields{"epoch": e, "path": path, "size": humanize.Bytes(uint64(n))}).Info("checkpoint saved")
	return nil
}

// restore warm-starts from path and resumes the epoch and step counters.
func (t *Trainer) restore(path string) error {
	s, err := checkpoint.Load(t.fs, path)
	if err != nil {
		return err
	}
	if err := checkpoint.Restore(s, t.net.Params(), t.opt); err != nil {
		return err
	}
	t.epoch, t.step = s.Meta.Epoch+1, s.Meta.Step
	t.log.WithFields(logrus.Fields{"path": path, "epoch": t.epoch, "step": t.step}).Info("checkpoint restored")
	return nil
}
