package analysis

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/kinest/internal/estim"
	"gonum.org/v1/gonum/mat"
)

func TestRank(t *testing.T) {
	tests := []struct {
		name string
		rows [][]float64
		want int
	}{
		{"identity", [][]float64{{1, 0}, {0, 1}}, 2},
		{"dependent rows", [][]float64{{1, 0}, {2, 0}}, 1},
		{"zero", [][]float64{{0, 0}, {0, 0}}, 0},
		{"wide", [][]float64{{1, 1, 0}, {0, 1, 1}}, 2},
		{"padded", [][]float64{{1, 2, 3}, {0, 1, 4}, {1, 3, 7}, {2, 4, 6}}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := FromRows(tt.rows)
			if err != nil {
				t.Fatal(err)
			}
			got, err := Rank(a, DefaultRankEps)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Rank() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRank_EpsGaps(t *testing.T) {
	a := mat.NewDiagDense(3, []float64{10, 1, 1e-3})

	tests := []struct {
		eps  float64
		want int
	}{
		{1e-10, 3},
		{1e-2, 2},
		{5, 1},
		{20, 0},
	}
	for _, tt := range tests {
		got, err := Rank(a, tt.eps)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("Rank(eps=%g) = %d, want %d", tt.eps, got, tt.want)
		}
	}
}

func TestRank_InvalidInput(t *testing.T) {
	if _, err := Rank(nil, DefaultRankEps); !errors.Is(err, estim.ErrInvalidInput) {
		t.Errorf("nil: expected ErrInvalidInput, got %v", err)
	}
	if _, err := Rank(&mat.Dense{}, DefaultRankEps); !errors.Is(err, estim.ErrInvalidInput) {
		t.Errorf("empty: expected ErrInvalidInput, got %v", err)
	}
	nan := mat.NewDense(1, 2, []float64{1, math.NaN()})
	if _, err := Rank(nan, DefaultRankEps); !errors.Is(err, estim.ErrInvalidInput) {
		t.Errorf("NaN: expected ErrInvalidInput, got %v", err)
	}
	if _, err := FromRows([][]float64{{1, 2}, {3}}); !errors.Is(err, estim.ErrInvalidInput) {
		t.Errorf("ragged: expected ErrInvalidInput, got %v", err)
	}
}

func TestRank_DoesNotMutate(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	before := mat.DenseCopyOf(a)
	if _, err := Rank(a, DefaultRankEps); err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(a, before) {
		t.Error("Rank modified its input")
	}
}
