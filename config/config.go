package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Service struct {
	URL string `yaml:"url" mapstructure:"url"`
}
type Services struct {
	Text Service `yaml:"text" mapstructure:"text"`
}
type Run struct {
	Name     string `yaml:"name" mapstructure:"name"`
	LogLvl   string `yaml:"log_level" mapstructure:"log_level"`
	Seed     int64  `yaml:"seed" mapstructure:"seed"`
	Device   string `yaml:"device" mapstructure:"device"` // cpu, accelerator, auto
	Progress bool   `yaml:"progress" mapstructure:"progress"`
}
type Data struct {
	TrainIndex string   `yaml:"train_index" mapstructure:"train_index"`
	ValIndex   string   `yaml:"val_index" mapstructure:"val_index"`
	Weights    string   `yaml:"weights" mapstructure:"weights"`
	Silence    bool     `yaml:"silence" mapstructure:"silence"`
	Padded     bool     `yaml:"padded" mapstructure:"padded"`
	Cleaners   []string `yaml:"cleaners" mapstructure:"cleaners"`
}
type Loader struct {
	BatchSize  int    `yaml:"batch_size" mapstructure:"batch_size"`
	NumWorkers int    `yaml:"num_workers" mapstructure:"num_workers"`
	Prefetch   int    `yaml:"prefetch_factor" mapstructure:"prefetch_factor"`
	Shuffle    bool   `yaml:"shuffle" mapstructure:"shuffle"`
	Collate    string `yaml:"collate" mapstructure:"collate"` // fixed, dynamic
	ClampOnCPU bool   `yaml:"clamp_on_cpu" mapstructure:"clamp_on_cpu"`
}
type Model struct {
	FeatureDim  int `yaml:"feature_dim" mapstructure:"feature_dim"`
	Hidden      int `yaml:"hidden" mapstructure:"hidden"`
	NumEmotions int `yaml:"num_emotions" mapstructure:"num_emotions"`
}
type Optim struct {
	LR          float64 `yaml:"lr" mapstructure:"lr"`
	WeightDecay float64 `yaml:"weight_decay" mapstructure:"weight_decay"`
	Beta1       float64 `yaml:"beta1" mapstructure:"beta1"`
	Beta2       float64 `yaml:"beta2" mapstructure:"beta2"`
	Eps         float64 `yaml:"eps" mapstructure:"eps"`
}
type Train struct {
	NumEpochs     int    `yaml:"num_epochs" mapstructure:"num_epochs"`
	TrainLossFreq int    `yaml:"train_loss_freq" mapstructure:"train_loss_freq"`
	ValLossFreq   int    `yaml:"val_loss_freq" mapstructure:"val_loss_freq"`
	Checkpoint    string `yaml:"checkpoint" mapstructure:"checkpoint"`
}
type Paths struct {
	SavedModels string `yaml:"saved_models" mapstructure:"saved_models"`
	Logs        string `yaml:"logs" mapstructure:"logs"`
}
type Root struct {
	Run      Run      `yaml:"run" mapstructure:"run"`
	Data     Data     `yaml:"data" mapstructure:"data"`
	Loader   Loader   `yaml:"loader" mapstructure:"loader"`
	Model    Model    `yaml:"model" mapstructure:"model"`
	Optim    Optim    `yaml:"optim" mapstructure:"optim"`
	Train    Train    `yaml:"train" mapstructure:"train"`
	Services Services `yaml:"services" mapstructure:"services"`
	Paths    Paths    `yaml:"paths" mapstructure:"paths"`
}

// SetDefaults registers the values used when neither the config file nor a flag
// provides one.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("run.log_level", "info")
	v.SetDefault("run.seed", 1)
	v.SetDefault("run.device", "auto")
	v.SetDefault("run.progress", true)
	v.SetDefault("data.train_index", "data/splits/train.csv")
	v.SetDefault("data.val_index", "data/splits/val.csv")
	v.SetDefault("data.weights", "data/weights.npy")
	v.SetDefault("data.silence", false)
	v.SetDefault("data.padded", true)
	v.SetDefault("data.cleaners", []string{"english_cleaners"})
	v.SetDefault("loader.batch_size", 4)
	v.SetDefault("loader.num_workers", 2)
	v.SetDefault("loader.prefetch_factor", 2)
	v.SetDefault("loader.shuffle", false)
	v.SetDefault("loader.collate", "fixed")
	v.SetDefault("loader.clamp_on_cpu", true)
	v.SetDefault("model.feature_dim", 80)
	v.SetDefault("model.hidden", 128)
	v.SetDefault("model.num_emotions", 4)
	v.SetDefault("optim.lr", 1e-3)
	v.SetDefault("optim.weight_decay", 0.001)
	v.SetDefault("optim.beta1", 0.9)
	v.SetDefault("optim.beta2", 0.999)
	v.SetDefault("optim.eps", 1e-8)
	v.SetDefault("train.num_epochs", 10)
	v.SetDefault("train.train_loss_freq", 10)
	v.SetDefault("train.val_loss_freq", 100)
	v.SetDefault("paths.saved_models", "saved_models")
	v.SetDefault("paths.logs", filepath.Join("logs", "tensorboard"))
}

// Load reads path, or the first config found under the CONFIG_ENV guesses when
// path is empty, into v and decodes the result. A missing guessed file is not an
// error: defaults and bound flags still apply.
func Load(v *viper.Viper, path string) (*Root, error) {
	SetDefaults(v)
	v.SetEnvPrefix("EMONET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	} else {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		guess := []string{
			filepath.Join("config", env, "config.yaml"),
			filepath.Join("configs", "config.yaml"),
		}
		for _, p := range guess {
			if _, err := os.Stat(p); err != nil {
				continue
			}
			v.SetConfigFile(p)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("config %s: %w", p, err)
			}
			break
		}
	}

	var cfg Root
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	if cfg.Run.Name == "" {
		cfg.Run.Name = "run-" + uuid.NewString()[:8]
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Root) Validate() error {
	var errs []error
	if c.Loader.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("loader.batch_size must be >= 1, got %d", c.Loader.BatchSize))
	}
	if c.Loader.NumWorkers < 0 {
		errs = append(errs, fmt.Errorf("loader.num_workers must be >= 0, got %d", c.Loader.NumWorkers))
	}
	if c.Loader.NumWorkers > 0 && c.Loader.Prefetch < 1 {
		errs = append(errs, fmt.Errorf("loader.prefetch_factor must be >= 1 with workers, got %d", c.Loader.Prefetch))
	}
	if c.Train.NumEpochs < 0 {
		errs = append(errs, fmt.Errorf("train.num_epochs must be >= 0, got %d", c.Train.NumEpochs))
	}
	if c.Train.TrainLossFreq < 1 || c.Train.ValLossFreq < 1 {
		errs = append(errs, errors.New("train.train_loss_freq and train.val_loss_freq must be >= 1"))
	}
	if c.Model.FeatureDim < 1 || c.Model.Hidden < 1 || c.Model.NumEmotions < 2 {
		errs = append(errs, errors.New("model dims must be positive and num_emotions >= 2"))
	}
	if c.Optim.LR <= 0 {
		errs = append(errs, fmt.Errorf("optim.lr must be > 0, got %g", c.Optim.LR))
	}
	switch c.Run.Device {
	case "cpu", "accelerator", "auto":
	default:
		errs = append(errs, fmt.Errorf("run.device %q: want cpu, accelerator or auto", c.Run.Device))
	}
	return errors.Join(errs...)
}

// Write dumps the effective configuration next to the run artifacts.
func Write(fs afero.Fs, path string, c *Root) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := fs.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("config encode: %w", err)
	}
	return enc.Close()
}
