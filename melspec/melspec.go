// Package melspec reads and writes precomputed mel-spectrogram artifacts.
//
// An artifact is a msgpack record holding a features x frames float64 matrix in
// row-major order.
package melspec

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/mat"
)

const Version = "melspec.v1"

var ErrEmpty = errors.New("melspec: empty spectrogram")

type record struct {
	Version  string    `msgpack:"version"`
	Features int       `msgpack:"features"`
	Frames   int       `msgpack:"frames"`
	Data     []float64 `msgpack:"data"`
}

// Load reads the artifact at path.
func Load(fs afero.Fs, path string) (*mat.Dense, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	return Decode(b)
}

func Decode(b []byte) (*mat.Dense, error) {
	var r record
	if err := msgpack.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("melspec decode: %w", err)
	}
	if r.Version != Version {
		return nil, fmt.Errorf("melspec decode: unsupported version %q", r.Version)
	}
	if r.Features < 1 || r.Frames < 1 {
		return nil, ErrEmpty
	}
	if len(r.Data) != r.Features*r.Frames {
		return nil, fmt.Errorf("melspec decode: %d values for %dx%d", len(r.Data), r.Features, r.Frames)
	}
	return mat.NewDense(r.Features, r.Frames, r.Data), nil
}

func Encode(m mat.Matrix) ([]byte, error) {
	f, t := m.Dims()
	if f == 0 || t == 0 {
		return nil, ErrEmpty
	}
	d := mat.DenseCopyOf(m)
	return msgpack.Marshal(record{Version: Version, Features: f, Frames: t, Data: d.RawMatrix().Data})
}

// Save writes m to path, creating parent directories.
func Save(fs afero.Fs, path string, m mat.Matrix) error {
	b, err := Encode(m)
	if err != nil {
		return err
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(fs, path, b, 0o644)
}
