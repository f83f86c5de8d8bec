package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/kinest/internal/config"
	"github.com/san-kum/kinest/internal/estim"
	"github.com/san-kum/kinest/internal/optim"
	"github.com/san-kum/kinest/internal/selection"
)

type Registry struct {
	solvers  map[string]func(config.SolverConfig) (estim.HessianSolver, error)
	criteria map[string]func(config.SelectionConfig) (selection.Criterion, error)
}

func NewRegistry() *Registry {
	r := &Registry{
		solvers:  make(map[string]func(config.SolverConfig) (estim.HessianSolver, error)),
		criteria: make(map[string]func(config.SelectionConfig) (selection.Criterion, error)),
	}

	for _, method := range optim.Methods() {
		r.solvers[method] = func(c config.SolverConfig) (estim.HessianSolver, error) {
			return optim.NewLeastSquares(optim.Options{
				Method:        method,
				MaxIterations: c.MaxIterations,
				GradTol:       c.GradTol,
				Multistart:    c.Multistart,
				Hessian:       optim.HessianForm(c.Hessian),
			})
		}
	}

	for _, name := range selection.Criteria() {
		r.criteria[name] = func(c config.SelectionConfig) (selection.Criterion, error) {
			return selection.NewCriterion(name, c.Threshold, c.Alpha)
		}
	}

	return r
}

func (r *Registry) GetSolver(c config.SolverConfig) (estim.HessianSolver, error) {
	fn, ok := r.solvers[c.Method]
	if !ok {
		return nil, fmt.Errorf("unknown solver: %s", c.Method)
	}
	return fn(c)
}

func (r *Registry) GetCriterion(c config.SelectionConfig) (selection.Criterion, error) {
	fn, ok := r.criteria[c.Criterion]
	if !ok {
		return nil, fmt.Errorf("unknown criterion: %s", c.Criterion)
	}
	return fn(c)
}

func (r *Registry) ListSolvers() []string {
	return sortedKeys(r.solvers)
}

func (r *Registry) ListCriteria() []string {
	return sortedKeys(r.criteria)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
