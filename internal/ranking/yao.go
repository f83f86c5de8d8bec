// Package ranking orders free parameters from most to least estimable.
//
// The ordering follows the orthogonalisation scheme of Yao et al. (2003):
// the parameter with the largest scaled sensitivity is ranked first, then
// each step regresses the sensitivity matrix on the already-ranked columns
// and picks the parameter that is worst predicted by them.
package ranking

import (

	"github.com/san-kum/kinest/internal/estim"
	"github.com/san-kum/kinest/internal/sensitivity"
	"gonum.org/v1/gonum/mat"
)

// tieTol is the relative tolerance under which two norms count as equal.
const tieTol = 1e-12

type Result struct {
	// Ranked holds parameter names, most estimable first.
	Ranked []string
	// Unranked holds the parameters left over after a singular step, in
	// insertion order.
	Unranked []string
	Scores   map[string]float64
	// Residuals is the residual norm each parameter had when it was
	// selected. The first ranked parameter reports its score.
	Residuals   map[string]float64
	Singular    bool
	Sensitivity *sensitivity.Matrix
}

// Ordered returns Ranked followed by Unranked.
func (r *Result) Ordered() []string {
	out := make([]string, 0, len(r.Ranked)+len(r.Unranked))
	out = append(out, r.Ranked...)
	return append(out, r.Unranked...)
}

// Rank returns the 1-based rank of name, or 0 if it was not ranked.
func (r *Result) Rank(name string) int {
	for i, n := range r.Ranked {
		if n == name {
			return i + 1
		}
	}
	return 0
}

// Yao ranks the free parameters of ps using the Hessian h. Fixed parameters
// are ignored. A singular regression step stops the ranking and leaves the
// rest of the parameters in Unranked; it is not an error.
func Yao(h mat.Matrix, ps estim.ParameterSet, sc sensitivity.Scaling) (*Result, error) {
	sm, err := sensitivity.Extract(h, ps, sc)
	if err != nil {
		return nil, err
	}

	p := len(sm.Names)
	res := &Result{
		Scores:      make(map[string]float64, p),
		Residuals:   make(map[string]float64, p),
		Sensitivity: sm,
	}
	for i, n := range sm.Names {
		res.Scores[n] = sm.Scores[i]
	}

	log := sc.Log()
	ranked := make([]bool, p)
	order := make([]int, 0, p)

	first := argmax(sm.Scores, ranked)
	order = append(order, first)
	ranked[first] = true
	res.Residuals[sm.Names[first]] = sm.Scores[first]
	log.Debug("yao rank", "step", 1, "param", sm.Names[first], "score", sm.Scores[first])

	// Zᵀ: one column per free parameter, one row per degree of freedom.
	zt := mat.DenseCopyOf(sm.H.T())
	n, _ := zt.Dims()

	for len(order) < p {
		k := len(order)
		x := mat.NewDense(n, k, nil)
		for j, idx := range order {
			x.SetCol(j, mat.Row(nil, idx, sm.H))
		}

		var xtx, inv mat.Dense
		xtx.Mul(x.T(), x)
		if err := inv.Inverse(&xtx); err != nil {
			res.Singular = true
			log.Warn("ranking terminated early, design matrix is singular",
				"ranked", k, "unranked", p-k, "err", err)
			break
		}

		var xinv, proj, zhat, resid mat.Dense
		xinv.Mul(x, &inv)
		proj.Mul(&xinv, x.T())
		zhat.Mul(&proj, zt)
		resid.Sub(zt, &zhat)

		norms := make([]float64, p)
		for j := 0; j < p; j++ {
			norms[j] = mat.Norm(resid.ColView(j), 2)
		}
		next := argmax(norms, ranked)
		order = append(order, next)
		ranked[next] = true
		res.Residuals[sm.Names[next]] = norms[next]
		log.Debug("yao rank", "step", k+1, "param", sm.Names[next], "residual", norms[next])
	}

	res.Ranked = make([]string, len(order))
	for i, idx := range order {
		res.Ranked[i] = sm.Names[idx]
	}
	for i, n := range sm.Names {
		if !ranked[i] {
			res.Unranked = append(res.Unranked, n)
		}
	}
	return res, nil
}

// argmax returns the index of the largest value not yet taken. Ties go to
// the lowest index.
func argmax(v []float64, taken []bool) int {
	best := -1
	for i, x := range v {
		if taken[i] {
			continue
		}
		if best < 0 || x > v[best]+tieTol*abs(v[best]) {
			best = i
		}
	}
	return best
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
