package analysis

import (
	"errors"
	"testing"

	"github.com/san-kum/kinest/internal/estim"
)

func TestAnalyzePseudoEquivalency(t *testing.T) {
	pem, _ := FromRows([][]float64{{1, 1, 0}, {0, 1, 1}})

	tests := []struct {
		name     string
		dataRank int
		want     Verdict
	}{
		{"matching", 2, Standard},
		{"one extra", 3, UnwantedContributions},
		{"mismatch", 5, UnaccountedSpecies},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep, err := AnalyzePseudoEquivalency(pem, tt.dataRank)
			if err != nil {
				t.Fatal(err)
			}
			if rep.Rank != 2 {
				t.Errorf("expected PEM rank 2, got %d", rep.Rank)
			}
			if rep.NullspaceRank != 1 {
				t.Errorf("expected nullspace rank 1, got %d", rep.NullspaceRank)
			}
			if rep.AbsorbingSpecies != 2 {
				t.Errorf("expected 2 absorbing species, got %d", rep.AbsorbingSpecies)
			}
			if rep.Verdict != tt.want {
				t.Errorf("verdict = %v, want %v", rep.Verdict, tt.want)
			}
		})
	}
}

func TestAnalyzePseudoEquivalency_FullRank(t *testing.T) {
	pem, _ := FromRows([][]float64{{1, 0}, {0, 1}})
	rep, err := AnalyzePseudoEquivalency(pem, 2)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Nullspace != nil || rep.AbsorbingSpecies != 2 {
		t.Errorf("unexpected report %s", rep)
	}
}

func TestAnalyzePseudoEquivalency_BadRank(t *testing.T) {
	pem, _ := FromRows([][]float64{{1, 0}})
	if _, err := AnalyzePseudoEquivalency(pem, -1); !errors.Is(err, estim.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}
