package analysis

import (
	"math"

	"github.com/san-kum/kinest/internal/estim"
	"gonum.org/v1/gonum/mat"
)

const (
	DefaultRankEps  = 1e-10
	DefaultNullAtol = 1e-13
	DefaultNullRtol = 0.0
)

// FromRows builds a matrix from row slices. Ragged or empty input is
// rejected.
func FromRows(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, estim.Inputf("matrix", "empty matrix")
	}
	c := len(rows[0])
	data := make([]float64, 0, len(rows)*c)
	for i, row := range rows {
		if len(row) != c {
			return nil, estim.Inputf("matrix", "row %d has %d columns, want %d", i, len(row), c)
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), c, data), nil
}

func validate(op string, a mat.Matrix) error {
	if a == nil {
		return estim.Inputf(op, "nil matrix")
	}
	r, c := a.Dims()
	if r == 0 || c == 0 {
		return estim.Inputf(op, "matrix has zero dimension %dx%d", r, c)
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := a.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return estim.Inputf(op, "non-finite entry at (%d,%d)", i, j)
			}
		}
	}
	return nil
}

// SingularValues returns the singular values of a in descending order.
func SingularValues(a mat.Matrix) ([]float64, error) {
	if err := validate("svd", a); err != nil {
		return nil, err
	}
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDNone); !ok {
		return nil, estim.Inputf("svd", "factorization failed")
	}
	return svd.Values(nil), nil
}

// Rank returns the number of singular values of a whose magnitude exceeds
// eps.
func Rank(a mat.Matrix, eps float64) (int, error) {
	s, err := SingularValues(a)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, v := range s {
		if math.Abs(v) > eps {
			n++
		}
	}
	return n, nil
}
