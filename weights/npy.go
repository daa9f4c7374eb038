// Package weights loads and computes the per-class loss weights.
package weights

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

var ErrFormat = errors.New("weights: not a supported .npy vector")

var npyMagic = []byte("\x93NUMPY")

var (
	descrRe   = regexp.MustCompile(`'descr':\s*'([<>|=]?[a-z][0-9]+)'`)
	shapeRe   = regexp.MustCompile(`'shape':\s*\(([^)]*)\)`)
)

// Load reads a 1-D float64 or float32 array saved by numpy.save.
func Load(fs afero.Fs, path string) ([]float64, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	w, err := Decode(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return w, nil
}

func Decode(b []byte) ([]float64, error) {
	if len(b) < 10 || !bytes.Equal(b[:6], npyMagic) {
		return nil, fmt.Errorf("%w: bad magic", ErrFormat)
	}
	var hlen, off int
	switch b[6] {
	case 1:
		hlen, off = int(binary.LittleEndian.Uint16(b[8:10])), 10
	case 2, 3:
		if len(b) < 12 {
			return nil, fmt.Errorf("%w: truncated header", ErrFormat)
		}
		hlen, off = int(binary.LittleEndian.Uint32(b[8:12])), 12
	default:
		return nil, fmt.Errorf("%w: version %d", ErrFormat, b[6])
	}
	if len(b) < off+hlen {
		return nil, fmt.Errorf("%w: truncated header", ErrFormat)
	}
	header := string(b[off : off+hlen])
	body := b[off+hlen:]

	dm := descrRe.FindStringSubmatch(header)
	if dm == nil {
		return nil, fmt.Errorf("%w: no descr", ErrFormat)
	}
	sm := shapeRe.FindStringSubmatch(header)
	if sm == nil {
		return nil, fmt.Errorf("%w: no shape", ErrFormat)
	}
	n, err := vectorLen(sm[1])
	if err != nil {
		return nil, err
	}

	var order binary.ByteOrder = binary.LittleEndian
	descr := dm[1]
	if strings.HasPrefix(descr, ">") {
		order = binary.BigEndian
	}
	descr = strings.TrimLeft(descr, "<>|=")

	out := make([]float64, n)
	switch descr {
	case "f8":
		if len(body) < 8*n {
			return nil, fmt.Errorf("%w: want %d bytes of data, got %d", ErrFormat, 8*n, len(body))
		}
		for i := range out {
			out[i] = math.Float64frombits(order.Uint64(body[8*i:]))
		}
	case "f4":
		if len(body) < 4*n {
			return nil, fmt.Errorf("%w: want %d bytes of data, got %d", ErrFormat, 4*n, len(body))
		}
		for i := range out {
			out[i] = float64(math.Float32frombits(order.Uint32(body[4*i:])))
		}
	default:
		return nil, fmt.Errorf("%w: dtype %s", ErrFormat, dm[1])
	}
	return out, nil
}

// vectorLen accepts "(n,)" style shapes, and "(n, 1)" / "(1, n)".
func vectorLen(shape string) (int, error) {
	n := 1
	dims := 0
	for _, f := range strings.Split(shape, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		d, err := strconv.Atoi(f)
		if err != nil {
			return 0, fmt.Errorf("%w: shape %q", ErrFormat, shape)
		}
		if d != 1 {
			dims++
		}
		n *= d
	}
	if dims > 1 {
		return 0, fmt.Errorf("%w: shape (%s) is not a vector", ErrFormat, shape)
	}
	return n, nil
}

// Encode produces a version 1.0 little-endian f8 .npy vector.
func Encode(w []float64) []byte {
	header := fmt.Sprintf("{'descr': '<f8', 'fortran_order': False, 'shape': (%d,), }", len(w))
	// magic + version + length + header + '\n' must be a multiple of 64
	total := len(npyMagic) + 2 + 2 + len(header) + 1
	if rem := total % 64; rem != 0 {
		header += strings.Repeat(" ", 64-rem)
	}
	header += "\n"

	var buf bytes.Buffer
	buf.Write(npyMagic)
	buf.Write([]byte{1, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)
	for _, v := range w {
		_ = binary.Write(&buf, binary.LittleEndian, v)
	}
	return buf.Bytes()
}

func Save(fs afero.Fs, path string, w []float64) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(fs, path, Encode(w), 0o644)
}
