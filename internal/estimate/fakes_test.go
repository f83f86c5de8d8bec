package estimate_test

import (
	"context"
	"fmt"

	"github.com/san-kum/kinest/internal/estim"
	"gonum.org/v1/gonum/mat"
)

type fakeModel struct {
	ps         estim.ParameterSet
	objectives []estim.Objective
}

func newFakeModel() *fakeModel {
	return &fakeModel{
		ps: estim.MustParameterSet(
			estim.Parameter{Name: "k1", Value: 1, Lower: 0, Upper: 10},
			estim.Parameter{Name: "k2", Value: 2, Lower: 0, Upper: 10},
			estim.Parameter{Name: "k3", Value: 3, Lower: 0, Upper: 10},
			estim.Parameter{Name: "k4", Value: 0.3, Lower: 0, Upper: 1, Fixed: true},
		),
		objectives: []estim.Objective{
			{Name: "concentration", Active: true},
			{Name: "prior", Active: true},
		},
	}
}

func (m *fakeModel) Parameters() estim.ParameterSet { return m.ps }

func (m *fakeModel) SetParameters(ps estim.ParameterSet) error {
	m.ps = ps
	return nil
}

func (m *fakeModel) Objectives() []estim.Objective {
	return append([]estim.Objective(nil), m.objectives...)
}

func (m *fakeModel) SetObjectiveActive(name string, active bool) error {
	for i := range m.objectives {
		if m.objectives[i].Name == name {
			m.objectives[i].Active = active
			return nil
		}
	}
	return fmt.Errorf("no objective %q", name)
}

// fakeSolver moves every free parameter to 42 and reports an objective that
// drops as informative parameters are freed.
type fakeSolver struct {
	err    error
	panics bool

	calls     int
	seenFree  [][]string
	seenObjs  [][]estim.Objective
	seenVals  []map[string]float64
	hessian   *mat.Dense
	objective map[string]float64
}

func (s *fakeSolver) Solve(ctx context.Context, m estim.Model, opts estim.SolveOptions) (*estim.Results, error) {
	s.calls++
	ps := m.Parameters()
	s.seenFree = append(s.seenFree, ps.FreeNames())
	s.seenObjs = append(s.seenObjs, m.Objectives())
	s.seenVals = append(s.seenVals, ps.Values())
	if s.panics {
		panic("solver blew up")
	}
	if s.err != nil {
		return nil, s.err
	}

	obj := 50.0
	moved := make(map[string]float64)
	for _, n := range ps.FreeNames() {
		obj -= s.objective[n]
		moved[n] = 42
	}
	if err := m.SetParameters(ps.WithValues(moved)); err != nil {
		return nil, err
	}
	return &estim.Results{Objective: obj, MSE: obj / 100, NumData: 100}, nil
}

func (s *fakeSolver) SolveHessian(ctx context.Context, m estim.Model, opts estim.SolveOptions) (*mat.Dense, *estim.Results, error) {
	res, err := s.Solve(ctx, m, opts)
	if err != nil {
		return nil, nil, err
	}
	return s.hessian, res, nil
}
