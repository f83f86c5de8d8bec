package optim

import (
	"context"
	"math"
)

// GridSearch evaluates an objective on the Cartesian product of per-parameter
// value lists and keeps the best point.
type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	evaluated  int
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Evaluated returns the number of points visited by the last Search.
func (g *GridSearch) Evaluated() int { return g.evaluated }

// Search returns the grid point with the lowest objective. Points whose
// evaluation fails or is not finite are skipped.
func (g *GridSearch) Search(
	ctx context.Context,
	objective func(params map[string]float64) (float64, error),
) (map[string]float64, float64, error) {
	g.evaluated = 0
	best := math.Inf(1)
	var bestParams map[string]float64

	if err := g.searchRecursive(ctx, 0, make(map[string]float64), objective, &best, &bestParams); err != nil {
		return nil, 0, err
	}
	return bestParams, best, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	objective func(map[string]float64) (float64, error),
	best *float64,
	bestParams *map[string]float64,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.paramNames) {
		g.evaluated++
		val, err := objective(current)
		if err != nil || math.IsNaN(val) || math.IsInf(val, 0) {
			return nil
		}
		if val < *best {
			*best = val
			*bestParams = make(map[string]float64, len(current))
			for k, v := range current {
				(*bestParams)[k] = v
			}
		}
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, objective, best, bestParams); err != nil {
			return err
		}
	}
	return nil
}

// Linspace returns n points spread over the interior of [lo, hi], at the
// midpoints of n equal cells.
func Linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	step := (hi - lo) / float64(n)
	for i := range out {
		out[i] = lo + (float64(i)+0.5)*step
	}
	return out
}
