package nn

import (
	"fmt"
	"math"
)

type AdamConfig struct {
	LR          float64
	Beta1       float64
	Beta2       float64
	Eps         float64
	WeightDecay float64 // L2 penalty added to the gradient
}

// Adam follows torch.optim.Adam without amsgrad.
type Adam struct {
	cfg      AdamConfig
	params   []*Param
	step     int
	expAvg   map[string][]float64
	expAvgSq map[string][]float64
}

func NewAdam(params []*Param, cfg AdamConfig) *Adam {
	if cfg.Beta1 == 0 && cfg.Beta2 == 0 {
		cfg.Beta1, cfg.Beta2 = 0.9, 0.999
	}
	if cfg.Eps == 0 {
		cfg.Eps = 1e-8
	}
	a := &Adam{
		cfg:      cfg,
		params:   params,
		expAvg:   make(map[string][]float64, len(params)),
		expAvgSq: make(map[string][]float64, len(params)),
	}
	for _, p := range params {
		r, c := p.Value.Dims()
		a.expAvg[p.Name] = make([]float64, r*c)
		a.expAvgSq[p.Name] = make([]float64, r*c)
	}
	return a
}

func (a *Adam) ZeroGrad() {
	for _, p := range a.params {
		p.ZeroGrad()
	}
}

func (a *Adam) Steps() int { return a.step }

func (a *Adam) Step() {
	a.step++
	b1, b2 := a.cfg.Beta1, a.cfg.Beta2
	bc1 := 1 - math.Pow(b1, float64(a.step))
	bc2 := 1 - math.Pow(b2, float64(a.step))
	stepSize := a.cfg.LR / bc1
	sqrtBC2 := math.Sqrt(bc2)

	for _, p := range a.params {
		m, v := a.expAvg[p.Name], a.expAvgSq[p.Name]
		r, c := p.Value.Dims()
		for i := 0; i < r; i++ {
			val, grad := p.Value.RawRowView(i), p.Grad.RawRowView(i)
			for j := 0; j < c; j++ {
				k := i*c + j
				g := grad[j] + a.cfg.WeightDecay*val[j]
				m[k] = b1*m[k] + (1-b1)*g
				v[k] = b2*v[k] + (1-b2)*g*g
				val[j] -= stepSize * m[k] / (math.Sqrt(v[k])/sqrtBC2 + a.cfg.Eps)
			}
		}
	}
}

type AdamState struct {
	Step        int                  `msgpack:"step"`
	LR          float64              `msgpack:"lr"`
	Beta1       float64              `msgpack:"beta1"`
	Beta2       float64              `msgpack:"beta2"`
	Eps         float64              `msgpack:"eps"`
	WeightDecay float64              `msgpack:"weight_decay"`
	ExpAvg      map[string][]float64 `msgpack:"exp_avg"`
	ExpAvgSq    map[string][]float64 `msgpack:"exp_avg_sq"`
}

func (a *Adam) StateDict() AdamState {
	s := AdamState{
		Step:        a.step,
		LR:          a.cfg.LR,
		Beta1:       a.cfg.Beta1,
		Beta2:       a.cfg.Beta2,
		Eps:         a.cfg.Eps,
		WeightDecay: a.cfg.WeightDecay,
		ExpAvg:      make(map[string][]float64, len(a.params)),
		ExpAvgSq:    make(map[string][]float64, len(a.params)),
	}
	for _, p := range a.params {
		s.ExpAvg[p.Name] = append([]float64(nil), a.expAvg[p.Name]...)
		s.ExpAvgSq[p.Name] = append([]float64(nil), a.expAvgSq[p.Name]...)
	}
	return s
}

// LoadStateDict restores moments and hyperparameters, like torch it keeps the
// saved learning rate. Nothing changes on error.
func (a *Adam) LoadStateDict(s AdamState) error {
	for _, p := range a.params {
		r, c := p.Value.Dims()
		m, v := s.ExpAvg[p.Name], s.ExpAvgSq[p.Name]
		if len(m) != r*c || len(v) != r*c {
			return fmt.Errorf("adam %s: %w: want %d moments, got %d/%d", p.Name, ErrShape, r*c, len(m), len(v))
		}
	}
	if len(s.ExpAvg) != len(a.params) {
		return fmt.Errorf("adam: %w: %d moment sets for %d parameters", ErrShape, len(s.ExpAvg), len(a.params))
	}
	a.step = s.Step
	a.cfg = AdamConfig{LR: s.LR, Beta1: s.Beta1, Beta2: s.Beta2, Eps: s.Eps, WeightDecay: s.WeightDecay}
	for _, p := range a.params {
		a.expAvg[p.Name] = append([]float64(nil), s.ExpAvg[p.Name]...)
		a.expAvgSq[p.Name] = append([]float64(nil), s.ExpAvgSq[p.Name]...)
	}
	return nil
}
