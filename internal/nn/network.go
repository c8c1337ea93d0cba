package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Forward runs one feature row through the network and returns the class
// probabilities. Hidden layers use tanh, the output layer softmax.
// Panics raised by the matrix code are returned as errors.
func (p *Parameters) Forward(x []float64) (probs []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			probs = nil
			err = fmt.Errorf("forward pass: %v", r)
		}
	}()

	features, _, _, _ := p.Dims()
	if len(x) != features {
		return nil, fmt.Errorf("forward pass: got %d features, want %d", len(x), features)
	}

	// Input: 1 x features
	hidden := mat.NewDense(1, len(x), append([]float64(nil), x...))

	for i := range p.layers {
		hidden = affine(hidden, p.layers[i])
		if i < len(p.layers)-1 {
			hidden.Apply(func(_, _ int, v float64) float64 { return math.Tanh(v) }, hidden)
		}
	}

	return Softmax(hidden.RawRowView(0)), nil
}

// affine computes x*W + b with b broadcast over the rows of x.
func affine(x *mat.Dense, l layer) *mat.Dense {
	var z mat.Dense
	z.Mul(x, l.weights)
	z.Apply(func(_, j int, v float64) float64 { return v + l.bias[j] }, &z)
	return &z
}

// Softmax returns exp(s_i) / sum_j exp(s_j).
//
// The row maximum is not subtracted first. Scores above ~709 overflow and
// produce NaN; callers check the result with Finite.
func Softmax(scores []float64) []float64 {
	out := make([]float64, len(scores))
	for i, s := range scores {
		out[i] = math.Exp(s)
	}
	sum := floats.Sum(out)
	for i := range out {
		out[i] /= sum
	}
	return out
}

// ArgMax returns the index of the first largest value.
func ArgMax(values []float64) int {
	return floats.MaxIdx(values)
}

// Finite reports whether every value is neither NaN nor infinite.
func Finite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
