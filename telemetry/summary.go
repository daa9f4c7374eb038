// Package telemetry records training scalars as a JSON-lines event log.
package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const EventsFile = "events.jsonl"

// SummaryWriter appends one JSON object per scalar:
//
//	{"level":"info","msg":"scalar","step":10,"tag":"info/Training loss","time":"...","value":1.38}
type SummaryWriter struct {
	file afero.File
	log  *logrus.Logger
}

func NewSummaryWriter(fs afero.Fs, dir string) (*SummaryWriter, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := fs.OpenFile(filepath.Join(dir, EventsFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.SetOutput(f)
	log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	log.SetLevel(logrus.InfoLevel)
	return &SummaryWriter{file: f, log: log}, nil
}

func (w *SummaryWriter) AddScalar(tag string, value float64, step int) {
	w.log.WithFields(logrus.Fields{"tag": tag, "value": value, "step": step}).Info("scalar")
}

func (w *SummaryWriter) Close() error { return w.file.Close() }

type Scalar struct {
	Tag   string    `json:"tag"`
	Value float64   `json:"value"`
	Step  int       `json:"step"`
	Time  time.Time `json:"time"`
}

// ReadScalars parses an events file, optionally keeping a single tag.
func ReadScalars(fs afero.Fs, path, tag string) ([]Scalar, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Scalar
	sc := bufio.NewScanner(f)
	for line := 1; sc.Scan(); line++ {
		var s Scalar
		if err := json.Unmarshal(sc.Bytes(), &s); err != nil {
			return nil, fmt.Errorf("events %s line %d: %w", path, line, err)
		}
		if tag == "" || s.Tag == tag {
			out = append(out, s)
		}
	}
	return out, sc.Err()
}
