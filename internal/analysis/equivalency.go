package analysis

import (
	"fmt"

	"github.com/san-kum/kinest/internal/estim"
	"gonum.org/v1/gonum/mat"
)

type Verdict int

const (
	// Standard means no unwanted spectral contributions are expected.
	Standard Verdict = iota
	// UnwantedContributions means one extra absorbing contribution is present.
	UnwantedContributions
	// UnaccountedSpecies means the model likely misses species or has
	// several unknown contributions.
	UnaccountedSpecies
)

func (v Verdict) String() string {
	switch v {
	case Standard:
		return "solve standard problem assuming no unwanted contributions"
	case UnwantedContributions:
		return "solve with unwanted contributions"
	default:
		return "there may be unaccounted species or multiple unknown contributions"
	}
}

type EquivalencyReport struct {
	Rank             int
	Nullspace        *mat.Dense
	NullspaceRank    int
	Components       int
	AbsorbingSpecies int
	DataRank         int
	Verdict          Verdict
}

func (r *EquivalencyReport) String() string {
	return fmt.Sprintf("rank=%d nullspace_rank=%d absorbing=%d data_rank=%d: %s",
		r.Rank, r.NullspaceRank, r.AbsorbingSpecies, r.DataRank, r.Verdict)
}

// AnalyzePseudoEquivalency compares the number of independently absorbing
// species implied by the pseudo-equivalency matrix pem with dataRank, the
// rank of the measured absorbance matrix.
func AnalyzePseudoEquivalency(pem mat.Matrix, dataRank int) (*EquivalencyReport, error) {
	if dataRank < 0 {
		return nil, estim.Configf("pseudo-equivalency", "data rank must be non-negative, got %d", dataRank)
	}
	rkp, err := Rank(pem, DefaultRankEps)
	if err != nil {
		return nil, err
	}
	ns, err := Nullspace(pem, DefaultNullAtol, DefaultNullRtol)
	if err != nil {
		return nil, err
	}

	rankns := 0
	if ns != nil {
		if rankns, err = Rank(ns, DefaultRankEps); err != nil {
			return nil, err
		}
	}

	_, comps := pem.Dims()
	ncr := comps
	if rankns > 0 {
		ncr = comps - rankns
	}

	rep := &EquivalencyReport{
		Rank:             rkp,
		Nullspace:        ns,
		NullspaceRank:    rankns,
		Components:       comps,
		AbsorbingSpecies: ncr,
		DataRank:         dataRank,
	}
	switch {
	case ncr == dataRank:
		rep.Verdict = Standard
	case ncr == dataRank-1:
		rep.Verdict = UnwantedContributions
	default:
		rep.Verdict = UnaccountedSpecies
	}
	return rep, nil
}
