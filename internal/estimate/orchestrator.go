// Package estimate runs constrained solves and the full estimability
// pipeline on top of a Model and Solver.
package estimate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/kinest/internal/estim"
)

type Options struct {
	// FixedValues overrides the value of parameters held fixed for the
	// solve. Parameters not listed keep their current value.
	FixedValues map[string]float64
	// RestoreValues puts the variable parameters back to their pre-call
	// values instead of keeping the solved estimates.
	RestoreValues bool
	Variances     map[string]float64
}

// Orchestrator solves a model with only a chosen subset of parameters free.
// It is not safe to run two solves against the same model concurrently.
type Orchestrator struct {
	Logger *slog.Logger
}

func (o *Orchestrator) logger() *slog.Logger {
	if o != nil && o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// SolveWithVariable fixes every parameter not in variable, deactivates the
// model's active objectives and runs s. On return, including after a solver
// error or panic, non-variable parameters get their previous values and
// fixed flags back and the objectives are reactivated. Variable parameters
// stay free and keep the solved values unless opts.RestoreValues is set.
func (o *Orchestrator) SolveWithVariable(ctx context.Context, m estim.Model, s estim.Solver, variable []string, opts Options) (res *estim.Results, err error) {
	if m == nil || s == nil {
		return nil, estim.Configf("solve", "model and solver are required")
	}
	if len(variable) == 0 {
		return nil, estim.Configf("solve", "no variable parameters given")
	}

	before := m.Parameters()
	if unknown := before.Unknown(variable); len(unknown) > 0 {
		return nil, estim.Configf("solve", "unknown parameters: %v", unknown)
	}
	for n := range opts.FixedValues {
		if !before.Contains(n) {
			return nil, estim.Configf("solve", "fixed value for unknown parameter %q", n)
		}
	}

	isVar := make(map[string]bool, len(variable))
	for _, n := range variable {
		isVar[n] = true
		p, _ := before.Get(n)
		if w := p.Width(); math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
			return nil, estim.Configf("solve", "variable parameter %q needs finite bounds, got [%g, %g]", n, p.Lower, p.Upper)
		}
	}

	flags := make(map[string]bool, before.Len())
	values := make(map[string]float64, len(opts.FixedValues))
	for _, p := range before.All() {
		flags[p.Name] = !isVar[p.Name]
		if isVar[p.Name] {
			continue
		}
		if v, ok := opts.FixedValues[p.Name]; ok {
			values[p.Name] = v
		}
	}
	constrained, err := before.WithFixedFlags(flags)
	if err != nil {
		return nil, err
	}
	if err := m.SetParameters(constrained.WithValues(values)); err != nil {
		return nil, fmt.Errorf("apply constrained parameters: %w", err)
	}

	log := o.logger()
	var deactivated []string
	for _, obj := range m.Objectives() {
		if !obj.Active {
			continue
		}
		if err := m.SetObjectiveActive(obj.Name, false); err != nil {
			o.restore(m, before, isVar, opts.RestoreValues, deactivated)
			return nil, fmt.Errorf("deactivate objective %q: %w", obj.Name, err)
		}
		deactivated = append(deactivated, obj.Name)
	}
	log.Debug("constrained solve", "variable", variable, "deactivated", deactivated)

	defer func() {
		r := recover()
		if rerr := o.restore(m, before, isVar, opts.RestoreValues, deactivated); rerr != nil {
			err = errors.Join(err, rerr)
		}
		if r != nil {
			panic(r)
		}
	}()

	res, err = s.Solve(ctx, m, estim.SolveOptions{Variances: opts.Variances})
	if err != nil {
		log.Warn("constrained solve failed", "variable", variable, "err", err)
		return nil, &estim.AnalysisError{Op: "solve", Wrapped: fmt.Errorf("%w: %w", estim.ErrSolver, err)}
	}
	if res != nil {
		res.P = m.Parameters().Values()
	}
	return res, nil
}

func (o *Orchestrator) restore(m estim.Model, before estim.ParameterSet, isVar map[string]bool, restoreValues bool, objectives []string) error {
	current := m.Parameters()
	values := make(map[string]float64, before.Len())
	flags := make(map[string]bool, before.Len())
	for _, p := range before.All() {
		if isVar[p.Name] {
			flags[p.Name] = false
			if !restoreValues {
				continue
			}
		} else {
			flags[p.Name] = p.Fixed
		}
		values[p.Name] = p.Value
	}

	var errs []error
	restored, err := current.WithValues(values).WithFixedFlags(flags)
	if err == nil {
		err = m.SetParameters(restored)
	}
	if err != nil {
		errs = append(errs, fmt.Errorf("restore parameters: %w", err))
	}
	for _, name := range objectives {
		if err := m.SetObjectiveActive(name, true); err != nil {
			errs = append(errs, fmt.Errorf("reactivate objective %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
