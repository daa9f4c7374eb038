package trainer

type State int

const (
	Initializing State = iota
	EpochTraining
	PeriodicValidation
	Checkpointing
	Done
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case EpochTraining:
		return "epoch-training"
	case PeriodicValidation:
		return "periodic-validation"
	case Checkpointing:
		return "checkpointing"
	case Done:
		return "done"
	}
	return "unknown"
}

// Scalar tags written to the event log.
const (
	TagTrainingLoss   = "info/Training loss"
	TagValidationLoss = "info/Validation loss"
)

type Device struct {
	Name        string
	Accelerator bool
}
