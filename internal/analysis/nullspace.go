package analysis

import (
	"math"

	"github.com/san-kum/kinest/internal/estim"
	"gonum.org/v1/gonum/mat"
)

// Nullspace returns a basis for the right null space of a as the columns of
// the result. A singular value s counts as zero when s < max(atol, rtol*s_max).
// Columns follow the SVD order of the right singular vectors. The result is
// nil when the null space is trivial.
func Nullspace(a mat.Matrix, atol, rtol float64) (*mat.Dense, error) {
	if err := validate("nullspace", a); err != nil {
		return nil, err
	}
	if atol < 0 || rtol < 0 {
		return nil, estim.Inputf("nullspace", "negative tolerance atol=%g rtol=%g", atol, rtol)
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFullV); !ok {
		return nil, estim.Inputf("nullspace", "factorization failed")
	}
	s := svd.Values(nil)
	tol := math.Max(atol, rtol*s[0])

	nnz := 0
	for _, v := range s {
		if v >= tol {
			nnz++
		}
	}

	_, n := a.Dims()
	if nnz == n {
		return nil, nil
	}

	var v mat.Dense
	svd.VTo(&v)
	return mat.DenseCopyOf(v.Slice(0, n, nnz, n)), nil
}

// Nullity returns the dimension of the null space of a.
func Nullity(a mat.Matrix, atol, rtol float64) (int, error) {
	ns, err := Nullspace(a, atol, rtol)
	if err != nil || ns == nil {
		return 0, err
	}
	_, c := ns.Dims()
	return c, nil
}
