package optim

import (
	"math"

	"github.com/san-kum/kinest/internal/estim"
)

// edge keeps logits finite for values sitting on a bound.
const edge = 1e-9

// bounds maps box-constrained parameters θ ∈ [lo, hi] to unconstrained
// coordinates u through the logistic function.
type bounds struct {
	lo, width []float64
}

func newBounds(free []estim.Parameter) bounds {
	b := bounds{lo: make([]float64, len(free)), width: make([]float64, len(free))}
	for i, p := range free {
		b.lo[i] = p.Lower
		b.width[i] = p.Width()
	}
	return b
}

func (b bounds) toTheta(u []float64) []float64 {
	theta := make([]float64, len(u))
	for i, v := range u {
		theta[i] = b.lo[i] + b.width[i]/(1+math.Exp(-v))
	}
	return theta
}

func (b bounds) toU(theta []float64) []float64 {
	u := make([]float64, len(theta))
	for i, v := range theta {
		q := (v - b.lo[i]) / b.width[i]
		q = math.Min(math.Max(q, edge), 1-edge)
		u[i] = math.Log(q / (1 - q))
	}
	return u
}
