// Package sensitivity turns the Hessian of a fitted least-squares problem
// into per-parameter sensitivity scores.
package sensitivity

import (
	"log/slog"
	"math"

	"github.com/san-kum/kinest/internal/estim"
	"gonum.org/v1/gonum/mat"
)

const (
	DefaultParamScaling       = 0.5
	DefaultMeasurementScaling = 0.001
)

// Scaling holds the relative uncertainties applied to the Hessian.
type Scaling struct {
	// Params maps each free parameter to its fractional uncertainty. When
	// nil, per-parameter Uncertainty values are used, falling back to the
	// bound-derived default.
	Params map[string]float64
	// Measurement is the relative measurement uncertainty; zero selects
	// DefaultMeasurementScaling.
	Measurement float64
	// Logger receives default-scaling warnings; nil means slog.Default().
	Logger *slog.Logger
}

// Log returns the logger scaling diagnostics are written to.
func (sc Scaling) Log() *slog.Logger {
	if sc.Logger != nil {
		return sc.Logger
	}
	return slog.Default()
}

// Matrix is the sensitivity data extracted from one Hessian.
type Matrix struct {
	Names []string
	// H is the unscaled trailing block: one row per free parameter, one
	// column per model degree of freedom.
	H      *mat.Dense
	Scaled *mat.Dense
	Scores []float64
	// Factors are the column multipliers param_scaling/meas_scaling.
	Factors []float64
}

// Score returns the sensitivity score of the named parameter.
func (m *Matrix) Score(name string) (float64, bool) {
	for i, n := range m.Names {
		if n == name {
			return m.Scores[i], true
		}
	}
	return 0, false
}

// boundScaling is (ub-lb)/2 relative to (ub-lb), i.e. a 50% uncertainty.
func boundScaling(p estim.Parameter) float64 {
	w := p.Width()
	return (w / 2) / w
}

// Resolve returns the parameter factors and measurement scaling for the free
// parameters of ps, applying defaults.
func (sc Scaling) Resolve(ps estim.ParameterSet) (map[string]float64, float64, error) {
	meas := sc.Measurement
	switch {
	case meas == 0:
		meas = DefaultMeasurementScaling
		sc.Log().Warn("no measurement scaling provided, using default", "meas_scaling", meas)
	case meas < 0 || math.IsNaN(meas) || math.IsInf(meas, 0):
		return nil, 0, estim.Configf("scaling", "measurement scaling must be positive, got %g", meas)
	}

	free := ps.Free()
	params := make(map[string]float64, len(free))
	if sc.Params == nil {
		defaulted := 0
		for _, p := range free {
			if p.Uncertainty > 0 {
				params[p.Name] = p.Uncertainty
				continue
			}
			params[p.Name] = boundScaling(p)
			defaulted++
		}
		if defaulted > 0 {
			sc.Log().Warn("no parameter scaling provided, uncertainties derived from bounds", "parameters", defaulted)
		}
		return params, meas, nil
	}

	for _, p := range free {
		v, ok := sc.Params[p.Name]
		if !ok {
			return nil, 0, estim.Configf("scaling", "missing parameter scaling for %q", p.Name)
		}
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, 0, estim.Configf("scaling", "parameter scaling for %q must be positive, got %g", p.Name, v)
		}
		params[p.Name] = v
	}
	return params, meas, nil
}

// Extract slices the trailing free-parameter rows of the square Hessian h,
// scales column i of that block by param_scaling/meas_scaling of the i-th
// free parameter and scores each parameter by the L2 norm of its scaled
// column.
func Extract(h mat.Matrix, ps estim.ParameterSet, sc Scaling) (*Matrix, error) {
	free := ps.Free()
	p := len(free)
	if p == 0 {
		return nil, estim.Configf("sensitivity", "no free parameters")
	}
	if h == nil {
		return nil, estim.Inputf("sensitivity", "nil hessian")
	}
	r, c := h.Dims()
	if r != c {
		return nil, estim.Inputf("sensitivity", "hessian must be square, got %dx%d", r, c)
	}
	if r < p {
		return nil, estim.Inputf("sensitivity", "hessian has %d rows for %d free parameters", r, p)
	}

	factors, meas, err := sc.Resolve(ps)
	if err != nil {
		return nil, err
	}

	block := mat.DenseCopyOf(h).Slice(r-p, r, 0, c)
	raw := mat.DenseCopyOf(block)
	scaled := mat.DenseCopyOf(block)

	out := &Matrix{
		Names:   make([]string, p),
		H:       raw,
		Scaled:  scaled,
		Scores:  make([]float64, p),
		Factors: make([]float64, p),
	}
	for i, prm := range free {
		f := factors[prm.Name] / meas
		out.Names[i] = prm.Name
		out.Factors[i] = f
		for row := 0; row < p; row++ {
			scaled.Set(row, i, raw.At(row, i)*f)
		}
	}
	for i := range free {
		out.Scores[i] = mat.Norm(scaled.ColView(i), 2)
	}
	return out, nil
}
