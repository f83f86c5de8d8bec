package experiment

import (
	"context"
	"log/slog"
	"runtime"
	"sort"

	"github.com/san-kum/kinest/internal/config"
	"github.com/san-kum/kinest/internal/estim"
	"github.com/san-kum/kinest/internal/estimate"
	"golang.org/x/sync/errgroup"
)

// Ensemble repeats the analysis on synthetic data drawn with successive
// seeds and tallies how often each parameter is selected.
type Ensemble struct {
	cfg       *config.Config
	numRuns   int
	seedStart int64
	// Workers bounds concurrent replicates; zero means GOMAXPROCS.
	Workers int
	Logger  *slog.Logger
}

func NewEnsemble(cfg *config.Config, numRuns int, seedStart int64) *Ensemble {
	return &Ensemble{cfg: cfg, numRuns: numRuns, seedStart: seedStart}
}

type EnsembleResult struct {
	Seeds   []int64
	Reports []*estimate.Report
	// Selected counts the replicates that chose each parameter for
	// estimation.
	Selected map[string]int
	// MeanRank is the average 1-based position in the ranking. Unranked
	// parameters count as one past the last ranked position.
	MeanRank map[string]float64
}

// Frequency returns the share of replicates that selected name.
func (r *EnsembleResult) Frequency(name string) float64 {
	if len(r.Reports) == 0 {
		return 0
	}
	return float64(r.Selected[name]) / float64(len(r.Reports))
}

// Names returns parameters ordered by mean rank.
func (r *EnsembleResult) Names() []string {
	names := make([]string, 0, len(r.MeanRank))
	for name := range r.MeanRank {
		names = append(names, name)
	}
	sort.SliceStable(names, func(i, j int) bool {
		if r.MeanRank[names[i]] != r.MeanRank[names[j]] {
			return r.MeanRank[names[i]] < r.MeanRank[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

func (e *Ensemble) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Run analyzes every replicate. Each replicate owns its network and
// solver, so they run concurrently. The first error cancels the rest.
func (e *Ensemble) Run(ctx context.Context) (*EnsembleResult, error) {
	if e.numRuns < 1 {
		return nil, estim.Configf("ensemble", "need at least one run, got %d", e.numRuns)
	}
	if e.cfg.Data.HasFiles() || e.cfg.Data.Synthetic == nil {
		return nil, estim.Configf("ensemble", "replicates need synthetic data")
	}

	workers := e.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	reports := make([]*estimate.Report, e.numRuns)
	seeds := make([]int64, e.numRuns)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < e.numRuns; i++ {
		seeds[i] = e.seedStart + int64(i)
		g.Go(func() error {
			cfg := *e.cfg
			cfg.Seed = seeds[i]

			exp := New(&cfg, e.logger().With("seed", cfg.Seed))
			if err := exp.Setup(NewRegistry()); err != nil {
				return err
			}
			rep, err := exp.Analyze(ctx)
			if err != nil {
				return err
			}
			reports[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &EnsembleResult{
		Seeds:    seeds,
		Reports:  reports,
		Selected: make(map[string]int),
		MeanRank: make(map[string]float64),
	}
	for _, rep := range reports {
		for _, name := range rep.ToEstimate {
			res.Selected[name]++
		}
		ranked := len(rep.Ranking.Ranked)
		for _, name := range rep.Ranking.Ordered() {
			pos := rep.Ranking.Rank(name)
			if pos == 0 {
				pos = ranked + 1
			}
			res.MeanRank[name] += float64(pos) / float64(e.numRuns)
		}
	}
	e.logger().Info("ensemble finished", "runs", e.numRuns, "selected", res.Selected)
	return res, nil
}
