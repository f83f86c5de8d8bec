package experiment

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/kinest/internal/config"
	"github.com/san-kum/kinest/internal/estim"
	"github.com/san-kum/kinest/internal/logging"
)

func TestEnsemble(t *testing.T) {
	cfg := config.GetPreset("series", "abc")
	ens := NewEnsemble(cfg, 3, 10)
	ens.Workers = 2
	ens.Logger = logging.Discard()

	res, err := ens.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Reports) != 3 {
		t.Fatalf("got %d reports, want 3", len(res.Reports))
	}
	for i, seed := range res.Seeds {
		if seed != int64(10+i) {
			t.Errorf("seed[%d] = %d", i, seed)
		}
	}
	for _, name := range []string{"k1", "k2"} {
		if f := res.Frequency(name); f < 0 || f > 1 {
			t.Errorf("frequency(%s) = %g", name, f)
		}
		if r := res.MeanRank[name]; r < 1 || r > 2 {
			t.Errorf("mean rank(%s) = %g", name, r)
		}
	}
	if got := res.MeanRank["k1"] + res.MeanRank["k2"]; math.Abs(got-3) > 1e-9 {
		t.Errorf("mean ranks sum to %g, want 3", got)
	}
	if len(res.Names()) != 2 {
		t.Errorf("Names() = %v", res.Names())
	}
	if cfg.Seed != 1 {
		t.Errorf("ensemble modified the base config seed: %d", cfg.Seed)
	}
}

func TestEnsemble_Errors(t *testing.T) {
	cfg := config.GetPreset("series", "abc")
	if _, err := NewEnsemble(cfg, 0, 1).Run(context.Background()); !errors.Is(err, estim.ErrConfiguration) {
		t.Errorf("zero runs: got %v", err)
	}

	cfg.Data.Concentrations = "data.csv"
	if _, err := NewEnsemble(cfg, 2, 1).Run(context.Background()); !errors.Is(err, estim.ErrConfiguration) {
		t.Errorf("file data: got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewEnsemble(config.GetPreset("series", "abc"), 2, 1).Run(ctx); err == nil {
		t.Error("expected error from cancelled context")
	}
}
