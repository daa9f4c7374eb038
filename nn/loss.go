package nn

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// WeightedCrossEntropy is softmax cross-entropy with per-class weights, reduced
// as sum(w[y] * nll) / sum(w[y]). Nil weights mean every class weighs 1.
type WeightedCrossEntropy struct {
	Weights []float64
}

// Forward returns the loss and its gradient with respect to logits.
func (l *WeightedCrossEntropy) Forward(logits *mat.Dense, targets []int) (float64, *mat.Dense, error) {
	n, classes := logits.Dims()
	if len(targets) != n {
		return 0, nil, fmt.Errorf("%w: %d targets for %d rows", ErrShape, len(targets), n)
	}
	if l.Weights != nil && len(l.Weights) != classes {
		return 0, nil, fmt.Errorf("%w: %d class weights for %d classes", ErrShape, len(l.Weights), classes)
	}

	grad := mat.NewDense(n, classes, nil)
	var loss, total float64
	for i, y := range targets {
		if y < 0 || y >= classes {
			return 0, nil, fmt.Errorf("nn: target %d outside [0, %d)", y, classes)
		}
		w := 1.0
		if l.Weights != nil {
			w = l.Weights[y]
		}
		row := logits.RawRowView(i)
		probs := softmax(row)
		loss += w * (logSumExp(row) - row[y])
		total += w

		g := grad.RawRowView(i)
		for j, p := range probs {
			g[j] = w * p
		}
		g[y] -= w
	}
	if total == 0 {
		return 0, nil, errors.New("nn: batch has zero total class weight")
	}
	grad.Scale(1/total, grad)
	return loss / total, grad, nil
}

func softmax(row []float64) []float64 {
	hi := math.Inf(-1)
	for _, v := range row {
		hi = math.Max(hi, v)
	}
	out := make([]float64, len(row))
	var sum float64
	for i, v := range row {
		out[i] = math.Exp(v - hi)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func logSumExp(row []float64) float64 {
	hi := math.Inf(-1)
	for _, v := range row {
		hi = math.Max(hi, v)
	}
	var sum float64
	for _, v := range row {
		sum += math.Exp(v - hi)
	}
	return hi + math.Log(sum)
}

// Softmax returns row-wise probabilities.
func Softmax(logits *mat.Dense) *mat.Dense {
	n, c := logits.Dims()
	out := mat.NewDense(n, c, nil)
	for i := 0; i < n; i++ {
		copy(out.RawRowView(i), softmax(logits.RawRowView(i)))
	}
	return out
}
