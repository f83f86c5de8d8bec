package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/san-kum/kinest/internal/config"
	"github.com/san-kum/kinest/internal/dataset"
	"github.com/san-kum/kinest/internal/estim"
	"github.com/san-kum/kinest/internal/estimate"
	"github.com/san-kum/kinest/internal/kinetics"
	"github.com/san-kum/kinest/internal/optim"
	"github.com/san-kum/kinest/internal/ranking"
	"github.com/san-kum/kinest/internal/selection"
	"github.com/san-kum/kinest/internal/sensitivity"
)

// Experiment wires a config into a network, a solver and a selection
// criterion.
type Experiment struct {
	cfg        *config.Config
	network    *kinetics.Network
	solver     estim.HessianSolver
	criterion  selection.Criterion
	randSource *rand.Rand
	logger     *slog.Logger
}

func New(cfg *config.Config, logger *slog.Logger) *Experiment {
	if logger == nil {
		logger = slog.Default()
	}
	return &Experiment{
		cfg:        cfg,
		randSource: rand.New(rand.NewSource(cfg.Seed)),
		logger:     logger,
	}
}

func (e *Experiment) Setup(reg *Registry) error {
	if err := e.cfg.Validate(); err != nil {
		return err
	}
	ps, err := e.cfg.ParameterSet()
	if err != nil {
		return err
	}
	n, err := kinetics.New(e.cfg.ComponentNames(), e.cfg.InitialConcentrations(), e.cfg.Reactions(), ps)
	if err != nil {
		return err
	}
	n.EnablePrior(e.cfg.Model.PriorWeight)

	if e.cfg.Data.Spectra != "" {
		spectra, err := dataset.Load(e.cfg.Data.Spectra)
		if err != nil {
			return err
		}
		if err := n.SetSpectra(spectra); err != nil {
			return err
		}
	}
	if err := e.loadData(n); err != nil {
		return err
	}

	solver, err := reg.GetSolver(e.cfg.Solver)
	if err != nil {
		return err
	}
	if ls, ok := solver.(*optim.LeastSquares); ok {
		ls.Logger = e.logger
	}
	criterion, err := reg.GetCriterion(e.cfg.Selection)
	if err != nil {
		return err
	}

	e.network = n
	e.solver = solver
	e.criterion = criterion
	e.logger.Debug("experiment ready", "config", e.cfg.Name, "components", n.Components(),
		"free", ps.FreeNames(), "observations", n.NumObservations())
	return nil
}

// loadData attaches the measured data to n. Files take precedence; the
// synthetic section is only used when no file is configured.
func (e *Experiment) loadData(n *kinetics.Network) error {
	d := e.cfg.Data
	if !d.HasFiles() {
		syn := d.Synthetic
		if syn.Absorbance {
			abs, err := n.SynthesizeAbsorbance(syn.True, syn.SampleTimes(), syn.Noise, e.randSource)
			if err != nil {
				return err
			}
			return n.SetAbsorbance(abs)
		}
		c, err := n.Synthesize(syn.True, syn.SampleTimes(), syn.Noise, e.randSource)
		if err != nil {
			return err
		}
		return e.setConcentrations(n, c)
	}

	if d.Concentrations != "" {
		c, err := dataset.Load(d.Concentrations)
		if err != nil {
			return err
		}
		if err := e.setConcentrations(n, c); err != nil {
			return err
		}
	}
	if d.Absorbance != "" {
		abs, err := dataset.LoadAbsorbance(d.Absorbance)
		if err != nil {
			return err
		}
		if err := n.SetAbsorbance(abs); err != nil {
			return err
		}
	}
	return nil
}

func (e *Experiment) setConcentrations(n *kinetics.Network, c *dataset.Concentrations) error {
	if len(e.cfg.Data.Measured) > 0 {
		var err error
		if c, err = c.Select(e.cfg.Data.Measured); err != nil {
			return err
		}
	}
	return n.SetData(c)
}

func (e *Experiment) Network() *kinetics.Network { return e.network }

func (e *Experiment) Config() *config.Config { return e.cfg }

func (e *Experiment) analyzer() (*estimate.Analyzer, error) {
	if e.network == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	return &estimate.Analyzer{
		Solver:       e.solver,
		Orchestrator: &estimate.Orchestrator{Logger: e.logger},
		Scaling: sensitivity.Scaling{
			Params:      e.cfg.Scaling.Parameters,
			Measurement: e.cfg.Scaling.Measurement,
		},
		Criterion: e.criterion,
		Variances: e.cfg.Variances,
		Logger:    e.logger,
	}, nil
}

// Rank fits every free parameter and returns the Yao ranking.
func (e *Experiment) Rank(ctx context.Context) (*ranking.Result, *estim.Results, error) {
	a, err := e.analyzer()
	if err != nil {
		return nil, nil, err
	}
	rk, _, fit, err := a.Rank(ctx, e.network)
	return rk, fit, err
}

// Analyze ranks the parameters and picks the estimable subset.
func (e *Experiment) Analyze(ctx context.Context) (*estimate.Report, error) {
	a, err := e.analyzer()
	if err != nil {
		return nil, err
	}
	return a.Run(ctx, e.network)
}

// Estimate fits the model. Parameters in remove are frozen at their current
// values and dropped from the problem first. With an empty variable list
// every remaining free parameter is estimated.
func (e *Experiment) Estimate(ctx context.Context, variable, remove []string) (*estim.Results, error) {
	if e.network == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	if len(remove) > 0 {
		reduced, frozen, err := estimate.FixAndRemove(e.network.Parameters(), remove)
		if err != nil {
			return nil, err
		}
		if err := e.network.Freeze(reduced, frozen); err != nil {
			return nil, err
		}
		e.logger.Info("parameters removed", "frozen", frozen)
	}

	opts := estim.SolveOptions{Variances: e.cfg.Variances}
	if len(variable) == 0 {
		return e.solver.Solve(ctx, e.network, opts)
	}
	orch := &estimate.Orchestrator{Logger: e.logger}
	return orch.SolveWithVariable(ctx, e.network, e.solver, variable, estimate.Options{Variances: e.cfg.Variances})
}
