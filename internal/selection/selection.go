// Package selection decides how many ranked parameters can be estimated.
//
// Parameters are freed one at a time in rank order and the model is refit
// after each step. A Criterion reads the resulting objective/MSE curve and
// returns the cut point.
package selection

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/san-kum/kinest/internal/estim"
)

// Point is one refit along the ranking.
type Point struct {
	K         int
	Free      []string
	Objective float64
	MSE       float64
	NumData   int
}

// Curve is ordered by K starting at 1.
type Curve []Point

func (c Curve) validate() error {
	if len(c) == 0 {
		return estim.Inputf("selection", "empty curve")
	}
	for i, pt := range c {
		if pt.K != i+1 {
			return estim.Inputf("selection", "curve point %d has K=%d", i, pt.K)
		}
	}
	return nil
}

// FitFunc refits the model with only the named parameters free.
type FitFunc func(ctx context.Context, free []string) (*estim.Results, error)

type Selection struct {
	Estimate  []string
	Fix       []string
	Curve     Curve
	Scores    []float64
	K         int
	Criterion string
}

func (s *Selection) String() string {
	return fmt.Sprintf("%s: estimate %v, fix %v", s.Criterion, s.Estimate, s.Fix)
}

type Selector struct {
	Criterion Criterion
	Logger    *slog.Logger
}

func NewSelector(c Criterion) *Selector {
	return &Selector{Criterion: c}
}

func (s *Selector) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Select walks the ranking, calling fit with the first k parameters free
// for k = 1..len(ranking), and partitions the ranking at the chosen K.
func (s *Selector) Select(ctx context.Context, ranking []string, fit FitFunc) (*Selection, error) {
	if len(ranking) == 0 {
		return nil, estim.Configf("selection", "empty ranking")
	}
	seen := make(map[string]bool, len(ranking))
	for _, n := range ranking {
		if seen[n] {
			return nil, estim.Configf("selection", "duplicate parameter %q in ranking", n)
		}
		seen[n] = true
	}
	crit := s.Criterion
	if crit == nil {
		crit = Wu{}
	}
	stopper, _ := crit.(Stopper)
	log := s.logger()

	var curve Curve
	for k := 1; k <= len(ranking); k++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		free := append([]string(nil), ranking[:k]...)
		res, err := fit(ctx, free)
		if err != nil {
			return nil, fmt.Errorf("refit with %d free parameters: %w", k, err)
		}
		curve = append(curve, Point{
			K:         k,
			Free:      free,
			Objective: res.Objective,
			MSE:       res.MSE,
			NumData:   res.NumData,
		})
		log.Info("refit", "k", k, "added", ranking[k-1], "objective", res.Objective, "mse", res.MSE)

		if stopper != nil && stopper.Done(curve) {
			log.Debug("criterion stopped walk", "criterion", crit.Name(), "k", k)
			break
		}
	}

	k, scores, err := crit.Choose(curve)
	if err != nil {
		return nil, err
	}
	sel := &Selection{
		Estimate:  append([]string(nil), ranking[:k]...),
		Fix:       append([]string(nil), ranking[k:]...),
		Curve:     curve,
		Scores:    scores,
		K:         k,
		Criterion: crit.Name(),
	}
	log.Info("selection done", "criterion", sel.Criterion, "estimate", sel.Estimate, "fix", sel.Fix)
	return sel, nil
}
