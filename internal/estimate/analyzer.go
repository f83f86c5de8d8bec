package estimate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/san-kum/kinest/internal/estim"
	"github.com/san-kum/kinest/internal/ranking"
	"github.com/san-kum/kinest/internal/selection"
	"github.com/san-kum/kinest/internal/sensitivity"
	"gonum.org/v1/gonum/mat"
)

// Analyzer runs the estimability pipeline: a full fit that reports the
// Hessian, Yao ranking, then a Wu-style walk over the ranking.
type Analyzer struct {
	Solver       estim.HessianSolver
	Orchestrator *Orchestrator
	Scaling      sensitivity.Scaling
	Criterion    selection.Criterion
	Variances    map[string]float64
	Logger       *slog.Logger
}

type Report struct {
	Ranking    *ranking.Result
	Selection  *selection.Selection
	ToEstimate []string
	// ToFix includes parameters that were already fixed before the run.
	ToFix    []string
	Hessian  *mat.Dense
	Fit      *estim.Results
	Duration time.Duration
}

func (a *Analyzer) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

// Rank fits m with its current free parameters and ranks them. The model's
// parameters are reset to their initial state afterwards.
func (a *Analyzer) Rank(ctx context.Context, m estim.Model) (*ranking.Result, *mat.Dense, *estim.Results, error) {
	if a.Solver == nil {
		return nil, nil, nil, estim.Configf("analyze", "no solver configured")
	}
	initial := m.Parameters()
	defer func() {
		if err := m.SetParameters(initial); err != nil {
			a.logger().Error("reset parameters", "err", err)
		}
	}()

	h, fit, err := a.Solver.SolveHessian(ctx, m, estim.SolveOptions{Variances: a.Variances})
	if err != nil {
		return nil, nil, nil, &estim.AnalysisError{Op: "hessian", Wrapped: fmt.Errorf("%w: %w", estim.ErrSolver, err)}
	}
	sc := a.Scaling
	if sc.Logger == nil {
		sc.Logger = a.logger()
	}
	rk, err := ranking.Yao(h, initial, sc)
	if err != nil {
		return nil, nil, nil, err
	}
	a.logger().Info("parameters ranked", "order", rk.Ranked, "unranked", rk.Unranked)
	return rk, h, fit, nil
}

// Run ranks the free parameters of m and selects the subset to estimate.
// Each refit holds the not-yet-freed parameters at their initial values.
func (a *Analyzer) Run(ctx context.Context, m estim.Model) (*Report, error) {
	start := time.Now()
	initial := m.Parameters()

	rk, h, fit, err := a.Rank(ctx, m)
	if err != nil {
		return nil, err
	}

	orch := a.Orchestrator
	if orch == nil {
		orch = &Orchestrator{Logger: a.Logger}
	}
	fixed := initial.Values()
	refit := func(ctx context.Context, free []string) (*estim.Results, error) {
		return orch.SolveWithVariable(ctx, m, a.Solver, free, Options{
			FixedValues:   fixed,
			RestoreValues: true,
			Variances:     a.Variances,
		})
	}
	defer func() {
		if err := m.SetParameters(initial); err != nil {
			a.logger().Error("reset parameters", "err", err)
		}
	}()

	sel, err := (&selection.Selector{Criterion: a.Criterion, Logger: a.Logger}).Select(ctx, rk.Ordered(), refit)
	if err != nil {
		return nil, err
	}

	keep := make(map[string]bool, len(sel.Estimate))
	for _, n := range sel.Estimate {
		keep[n] = true
	}
	var toFix []string
	for _, n := range initial.Names() {
		if !keep[n] {
			toFix = append(toFix, n)
		}
	}

	return &Report{
		Ranking:    rk,
		Selection:  sel,
		ToEstimate: sel.Estimate,
		ToFix:      toFix,
		Hessian:    h,
		Fit:        fit,
		Duration:   time.Since(start),
	}, nil
}

// FixAndRemove drops the named parameters from ps and returns them with
// their current values so a model can hold them as constants.
func FixAndRemove(ps estim.ParameterSet, names []string) (estim.ParameterSet, map[string]float64, error) {
	if unknown := ps.Unknown(names); len(unknown) > 0 {
		return estim.ParameterSet{}, nil, estim.Configf("fix", "unknown parameters: %v", unknown)
	}
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}

	removed := make(map[string]float64, len(names))
	var kept []estim.Parameter
	for _, p := range ps.All() {
		if drop[p.Name] {
			removed[p.Name] = p.Value
			continue
		}
		kept = append(kept, p)
	}
	reduced, err := estim.NewParameterSet(kept...)
	if err != nil {
		return estim.ParameterSet{}, nil, err
	}
	return reduced, removed, nil
}
