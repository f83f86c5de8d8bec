package selection

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/kinest/internal/estim"
	"gonum.org/v1/gonum/stat/distuv"
)

// Criterion picks the number of ranked parameters to estimate from a
// completed (or partial) MSE curve.
type Criterion interface {
	Name() string
	// Choose returns the chosen K and one score per curve point.
	Choose(c Curve) (int, []float64, error)
}

// Stopper is implemented by criteria that can end the walk before every
// ranked parameter has been freed.
type Stopper interface {
	Done(c Curve) bool
}

// NewCriterion returns the criterion registered under name.
func NewCriterion(name string, threshold, alpha float64) (Criterion, error) {
	switch strings.ToLower(name) {
	case "", "wu":
		return Wu{}, nil
	case "threshold":
		if threshold <= 0 || math.IsNaN(threshold) {
			return nil, estim.Configf("selection", "threshold must be positive, got %g", threshold)
		}
		return Threshold{Threshold: threshold}, nil
	case "ftest", "f-test":
		if !(alpha > 0 && alpha < 1) {
			return nil, estim.Configf("selection", "alpha must lie in (0, 1), got %g", alpha)
		}
		return FTest{Alpha: alpha}, nil
	}
	return nil, estim.Configf("selection", "unknown criterion: %s", name)
}

// Criteria lists the registered criterion names.
func Criteria() []string {
	return []string{"wu", "threshold", "ftest"}
}

// Wu is the corrected critical ratio of Wu, McLean, Harris and McAuley
// (2011). The model with the smallest rCC wins; the full model has rCC = 0.
type Wu struct{}

func (Wu) Name() string { return "wu" }

func (Wu) Choose(c Curve) (int, []float64, error) {
	if err := c.validate(); err != nil {
		return 0, nil, err
	}
	last := c[len(c)-1]
	p := float64(last.K)
	n := float64(last.NumData)
	if n <= 0 {
		return 0, nil, estim.Inputf("selection", "wu criterion needs the number of data points")
	}

	scores := make([]float64, len(c))
	best := len(c) - 1
	for i, pt := range c {
		if pt.K == last.K {
			continue
		}
		k := float64(pt.K)
		rc := (pt.Objective - last.Objective) / (p - k)
		ub := math.Max(rc-1, 2/(p-k+2)*(rc+1))
		scores[i] = (p - k) / n * (ub - 1)
		if scores[i] < scores[best] {
			best = i
		}
	}
	return c[best].K, scores, nil
}

// Threshold stops at the first K whose successor improves the MSE by less
// than the given relative amount.
type Threshold struct {
	Threshold float64
}

func (t Threshold) Name() string { return fmt.Sprintf("threshold(%g)", t.Threshold) }

func (t Threshold) Choose(c Curve) (int, []float64, error) {
	if err := c.validate(); err != nil {
		return 0, nil, err
	}
	scores := make([]float64, len(c))
	for i := 0; i+1 < len(c); i++ {
		scores[i] = improvement(c[i].MSE, c[i+1].MSE)
		if scores[i] < t.Threshold {
			return c[i].K, scores[:i+1], nil
		}
	}
	return c[len(c)-1].K, scores, nil
}

func (t Threshold) Done(c Curve) bool {
	if len(c) < 2 {
		return false
	}
	return improvement(c[len(c)-2].MSE, c[len(c)-1].MSE) < t.Threshold
}

func improvement(prev, next float64) float64 {
	if prev <= 0 {
		return 0
	}
	return (prev - next) / prev
}

// FTest adds parameters while the nested-model F test rejects the smaller
// model at level Alpha.
type FTest struct {
	Alpha float64
}

func (f FTest) Name() string { return fmt.Sprintf("ftest(%g)", f.Alpha) }

func (f FTest) Choose(c Curve) (int, []float64, error) {
	if err := c.validate(); err != nil {
		return 0, nil, err
	}
	scores := make([]float64, len(c))
	for i := 0; i+1 < len(c); i++ {
		scores[i] = pValue(c[i], c[i+1])
		if scores[i] >= f.Alpha {
			return c[i].K, scores[:i+1], nil
		}
	}
	return c[len(c)-1].K, scores, nil
}

func (f FTest) Done(c Curve) bool {
	if len(c) < 2 {
		return false
	}
	return pValue(c[len(c)-2], c[len(c)-1]) >= f.Alpha
}

// pValue tests whether the larger model improves significantly on the
// smaller one. Degenerate inputs report 1.
func pValue(small, large Point) float64 {
	q := float64(large.K - small.K)
	dof := float64(large.NumData - large.K)
	if q <= 0 || dof <= 0 {
		return 1
	}
	num := (small.Objective - large.Objective) / q
	if num <= 0 {
		return 1
	}
	if large.Objective <= 0 {
		return 0
	}
	stat := num / (large.Objective / dof)
	if math.IsNaN(stat) {
		return 1
	}
	p := 1 - distuv.F{D1: q, D2: dof}.CDF(stat)
	return math.Min(math.Max(p, 0), 1)
}
