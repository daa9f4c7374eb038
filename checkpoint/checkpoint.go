// Package checkpoint persists model and optimizer state between runs.
//
// A checkpoint is a tar archive with three msgpack entries: meta, state_dict and
// optimizer. Writes go straight to the destination path.
package checkpoint

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/afero"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/maastricht-university/emonet-train/nn"
)

const Version = "emonet.ckpt.v1"

const (
	entryMeta      = "meta.msgpack"
	entryStateDict = "state_dict.msgpack"
	entryOptimizer = "optimizer.msgpack"
)

// ErrIncompatible means a checkpoint does not fit the current model or optimizer.
var ErrIncompatible = errors.New("checkpoint: incompatible with current model")

type Meta struct {
	Version string    `msgpack:"version"`
	Run     string    `msgpack:"run"`
	Epoch   int       `msgpack:"epoch"`
	Step    int       `msgpack:"step"`
	SavedAt time.Time `msgpack:"saved_at"`
}

type State struct {
	Meta      Meta
	StateDict map[string]nn.Tensor
	Optimizer nn.AdamState
}

// Path is <dir>/<run>_<epoch>_.tar.
func Path(dir, run string, epoch int) string {
	return filepath.Join(dir, run+"_"+strconv.Itoa(epoch)+"_.tar")
}

// Save writes s to path and returns the number of bytes written.
func Save(fs afero.Fs, path string, s *State) (int64, error) {
	if s.Meta.Version == "" {
		s.Meta.Version = Version
	}
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range []struct {
		name string
		v    any
	}{
		{entryMeta, s.Meta},
		{entryStateDict, s.StateDict},
		{entryOptimizer, s.Optimizer},
	} {
		b, err := msgpack.Marshal(e.v)
		if err != nil {
			return 0, fmt.Errorf("checkpoint encode %s: %w", e.name, err)
		}
		hdr := &tar.Header{Name: e.name, Mode: 0o644, Size: int64(len(b)), ModTime: s.Meta.SavedAt}
		if err := tw.WriteHeader(hdr); err != nil {
			return 0, err
		}
		if _, err := tw.Write(b); err != nil {
			return 0, err
		}
	}
	if err := tw.Close(); err != nil {
		return 0, err
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	if err := afero.WriteFile(fs, path, buf.Bytes(), 0o644); err != nil {
		return 0, err
	}
	return int64(buf.Len()), nil
}

func Load(fs afero.Fs, path string) (*State, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var s State
	seen := map[string]bool{}
	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("checkpoint %s: %w", path, err)
		}
		var dst any
		switch hdr.Name {
		case entryMeta:
			dst = &s.Meta
		case entryStateDict:
			dst = &s.StateDict
		case entryOptimizer:
			dst = &s.Optimizer
		default:
			continue
		}
		if err := msgpack.NewDecoder(tr).Decode(dst); err != nil {
			return nil, fmt.Errorf("checkpoint %s decode %s: %w", path, hdr.Name, err)
		}
		seen[hdr.Name] = true
	}
	for _, name := range []string{entryMeta, entryStateDict, entryOptimizer} {
		if !seen[name] {
			return nil, fmt.Errorf("checkpoint %s: missing %s", path, name)
		}
	}
	if s.Meta.Version != Version {
		return nil, fmt.Errorf("%w: version %q", ErrIncompatible, s.Meta.Version)
	}
	return &s, nil
}

// Optimizer is the optimizer side of a restore.
type Optimizer interface {
	StateDict() nn.AdamState
	LoadStateDict(nn.AdamState) error
}

// Restore loads s into params and opt. Any shape disagreement is ErrIncompatible;
// the optimizer is only touched once the parameters loaded.
func Restore(s *State, params []*nn.Param, opt Optimizer) error {
	if err := nn.LoadStateDict(params, s.StateDict); err != nil {
		return fmt.Errorf("%w: %v", ErrIncompatible, err)
	}
	if err := opt.LoadStateDict(s.Optimizer); err != nil {
		return fmt.Errorf("%w: %v", ErrIncompatible, err)
	}
	return nil
}
