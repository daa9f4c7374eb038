// Package nn holds trainable parameters, the loss and the optimizer.
package nn

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var ErrShape = errors.New("nn: shape mismatch")

// Param is a trainable matrix and its accumulated gradient.
type Param struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense
}

func NewParam(name string, rows, cols int, data []float64) *Param {
	return &Param{Name: name, Value: mat.NewDense(rows, cols, data), Grad: mat.NewDense(rows, cols, nil)}
}

func (p *Param) ZeroGrad() { p.Grad.Zero() }

// Tensor is the serialized form of a matrix.
type Tensor struct {
	Rows int       `msgpack:"rows"`
	Cols int       `msgpack:"cols"`
	Data []float64 `msgpack:"data"`
}

func ToTensor(m *mat.Dense) Tensor {
	r, c := m.Dims()
	data := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		data = append(data, m.RawRowView(i)...)
	}
	return Tensor{Rows: r, Cols: c, Data: data}
}

// CopyInto overwrites m with t, failing unless the shapes agree.
func (t Tensor) CopyInto(m *mat.Dense) error {
	r, c := m.Dims()
	if t.Rows != r || t.Cols != c || len(t.Data) != r*c {
		return fmt.Errorf("%w: have %dx%d, got %dx%d", ErrShape, r, c, t.Rows, t.Cols)
	}
	m.Copy(mat.NewDense(r, c, append([]float64(nil), t.Data...)))
	return nil
}

// StateDict maps parameter names to their values.
func StateDict(params []*Param) map[string]Tensor {
	out := make(map[string]Tensor, len(params))
	for _, p := range params {
		out[p.Name] = ToTensor(p.Value)
	}
	return out
}

// LoadStateDict requires exactly the parameters in params, with matching shapes.
// Nothing is written unless every entry is compatible.
func LoadStateDict(params []*Param, state map[string]Tensor) error {
	if len(state) != len(params) {
		return fmt.Errorf("%w: %d tensors for %d parameters", ErrShape, len(state), len(params))
	}
	for _, p := range params {
		t, ok := state[p.Name]
		if !ok {
			return fmt.Errorf("%w: missing %s", ErrShape, p.Name)
		}
		r, c := p.Value.Dims()
		if t.Rows != r || t.Cols != c || len(t.Data) != r*c {
			return fmt.Errorf("%s: %w: have %dx%d, got %dx%d", p.Name, ErrShape, r, c, t.Rows, t.Cols)
		}
	}
	for _, p := range params {
		if err := state[p.Name].CopyInto(p.Value); err != nil {
			return fmt.Errorf("%s: %w", p.Name, err)
		}
	}
	return nil
}
