package trainer

import (
	"fmt"
	"math"
	"os"

	"github.com/sirupsen/logrus"
)

func probeAccelerator() bool {
	_, err := os.Stat("/dev/nvidia0")
	return err == nil
}

func resolveDevice(mode string, probe func() bool) (Device, error) {
	switch mode {
	case "cpu":
		return Device{Name: "cpu"}, nil
	case "accelerator":
		return Device{Name: "accelerator", Accelerator: true}, nil
	case "auto", "":
		if probe() {
			return Device{Name: "accelerator", Accelerator: true}, nil
		}
		return Device{Name: "cpu"}, nil
	}
	return Device{}, fmt.Errorf("trainer: unknown device %q", mode)
}

// batchSize forces batches of one without an accelerator, as the training
// scripts always did, but says so.
func batchSize(want int, dev Device, clamp bool, log logrus.FieldLogger) int {
	if dev.Accelerator || !clamp || want == 1 {
		return want
	}
	log.WithFields(logrus.Fields{"requested": want, "device": dev.Name}).
		Warn("no accelerator, clamping batch size to 1 (set loader.clamp_on_cpu=false to keep it)")
	return 1
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
