package estim

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

type SolverStats struct {
	Method      string
	Status      string
	Iterations  int
	FuncEvals   int
	Runtime     time.Duration
	Multistarts int
}

// Results holds solved trajectories and solver diagnostics. Matrices are
// indexed time (or wavelength) by component.
type Results struct {
	Name        string
	Generated   time.Time
	Times       []float64
	Components  []string
	Z           *mat.Dense
	DZdt        *mat.Dense
	MeasTimes   []float64
	C           *mat.Dense
	Wavelengths []float64
	S           *mat.Dense
	D           *mat.Dense
	P           map[string]float64
	SigmaSq     map[string]float64
	Objective   float64
	MSE         float64
	NumData     int
	Metrics     map[string]float64
	Stats       SolverStats
}

// Matrix returns the named trajectory matrix, or nil.
func (r *Results) Matrix(name string) *mat.Dense {
	switch name {
	case "Z":
		return r.Z
	case "dZdt":
		return r.DZdt
	case "C":
		return r.C
	case "S":
		return r.S
	case "D":
		return r.D
	}
	return nil
}

// VarNorm returns the norm of the named variable. For matrices ord is 1
// (max column sum), 2 (largest singular value) or math.Inf(1) (max row
// sum). P is a vector and accepts any ord > 0, including math.Inf(1).
func (r *Results) VarNorm(name string, ord float64) (float64, error) {
	if name == "P" {
		v := r.paramVector()
		if v == nil {
			return 0, Inputf("results", "no parameter values")
		}
		if math.IsNaN(ord) || ord <= 0 {
			return 0, Inputf("results", "invalid vector norm order %v", ord)
		}
		return floats.Norm(v, ord), nil
	}
	m := r.Matrix(name)
	if m == nil {
		return 0, Inputf("results", "no variable %q", name)
	}
	switch {
	case ord == 1 || math.IsInf(ord, 1):
		return mat.Norm(m, ord), nil
	case ord == 2:
		var svd mat.SVD
		if !svd.Factorize(m, mat.SVDNone) {
			return 0, Inputf("results", "svd of %s failed", name)
		}
		return svd.Values(nil)[0], nil
	}
	return 0, Inputf("results", "invalid matrix norm order %v", ord)
}

func (r *Results) paramVector() []float64 {
	if len(r.P) == 0 {
		return nil
	}
	names := r.ParamNames()
	data := make([]float64, len(names))
	for i, n := range names {
		data[i] = r.P[n]
	}
	return data
}

// ParamNames returns the parameter names sorted lexically.
func (r *Results) ParamNames() []string {
	names := make([]string, 0, len(r.P))
	for n := range r.P {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (r *Results) String() string {
	var b strings.Builder
	b.WriteString("\nRESULTS\n")
	for _, name := range []string{"Z", "C", "S", "D", "dZdt"} {
		if m := r.Matrix(name); m != nil {
			fmt.Fprintf(&b, "%s:\n%v\n\n", name, mat.Formatted(m, mat.Prefix(" "), mat.Squeeze()))
		}
	}
	if len(r.P) > 0 {
		b.WriteString("P:\n")
		for _, n := range r.ParamNames() {
			fmt.Fprintf(&b, " %s = %g\n", n, r.P[n])
		}
	}
	if len(r.SigmaSq) > 0 {
		b.WriteString("Sigmas2:\n")
		keys := make([]string, 0, len(r.SigmaSq))
		for k := range r.SigmaSq {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s = %g\n", k, r.SigmaSq[k])
		}
	}
	if !math.IsNaN(r.Objective) {
		fmt.Fprintf(&b, "objective: %g  mse: %g  n: %d\n", r.Objective, r.MSE, r.NumData)
	}
	return b.String()
}
