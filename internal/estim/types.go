package estim

import (
	"context"

	"gonum.org/v1/gonum/mat"
)

// Objective describes a named objective term of a model.
type Objective struct {
	Name   string
	Active bool
}

// Model is the mutable adapter at the solver boundary. Implementations hold
// the parameter state a Solver reads and writes.
type Model interface {
	Parameters() ParameterSet
	SetParameters(ps ParameterSet) error
	Objectives() []Objective
	SetObjectiveActive(name string, active bool) error
}

type SolveOptions struct {
	// Variances maps measured component names, plus "device" for spectra,
	// to noise variances.
	Variances map[string]float64
}

// Solver runs a blocking nonlinear least-squares fit over the model's free
// parameters and writes the estimates back into the model.
type Solver interface {
	Solve(ctx context.Context, m Model, opts SolveOptions) (*Results, error)
}

// HessianSolver also reports the Hessian of the fitted objective. Rows and
// columns cover every model degree of freedom with the free parameters as
// the trailing block, in parameter iteration order.
type HessianSolver interface {
	Solver
	SolveHessian(ctx context.Context, m Model, opts SolveOptions) (*mat.Dense, *Results, error)
}
