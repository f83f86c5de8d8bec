// Package automation runs scripted sequences of analyses and sweeps over
// the synthetic noise level.
package automation

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/san-kum/kinest/internal/config"
	"github.com/san-kum/kinest/internal/estim"
	"github.com/san-kum/kinest/internal/experiment"
	"github.com/san-kum/kinest/internal/storage"
	"gopkg.in/yaml.v3"
)

// Scenario is a scripted sequence of analyses.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep names a model by preset ("family/name") or config file and
// the command to run on it.
type ScenarioStep struct {
	Preset   string   `yaml:"preset,omitempty"`
	Config   string   `yaml:"config,omitempty"`
	Kind     string   `yaml:"kind"`
	Variable []string `yaml:"variable,omitempty"`
	Remove   []string `yaml:"remove,omitempty"`
	Seed     *int64   `yaml:"seed,omitempty"`
	Noise    *float64 `yaml:"noise,omitempty"`
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if len(scenario.Steps) == 0 {
		return nil, estim.Configf("scenario", "%s has no steps", path)
	}
	return &scenario, nil
}

func (s ScenarioStep) config() (*config.Config, error) {
	var cfg *config.Config
	switch {
	case s.Config != "":
		c, err := config.Load(s.Config)
		if err != nil {
			return nil, err
		}
		cfg = c
	case s.Preset != "":
		family, name, _ := strings.Cut(s.Preset, "/")
		cfg = config.GetPreset(family, name)
		if cfg == nil {
			return nil, estim.Configf("scenario", "unknown preset %q", s.Preset)
		}
	default:
		return nil, estim.Configf("scenario", "step needs a preset or a config")
	}
	if s.Seed != nil {
		cfg.Seed = *s.Seed
	}
	if s.Noise != nil {
		if cfg.Data.Synthetic == nil {
			return nil, estim.Configf("scenario", "noise override needs synthetic data")
		}
		syn := *cfg.Data.Synthetic
		syn.Noise = *s.Noise
		cfg.Data.Synthetic = &syn
	}
	return cfg, nil
}

// RunStep executes one step and returns what it produced.
func RunStep(ctx context.Context, step ScenarioStep, logger *slog.Logger) (*storage.Run, error) {
	cfg, err := step.config()
	if err != nil {
		return nil, err
	}
	exp := experiment.New(cfg, logger)
	if err := exp.Setup(experiment.NewRegistry()); err != nil {
		return nil, err
	}

	run := &storage.Run{Kind: step.Kind, Config: cfg.Name, Seed: cfg.Seed}
	switch step.Kind {
	case "rank":
		run.Ranking, run.Results, err = exp.Rank(ctx)
	case "analyze", "":
		run.Kind = "analyze"
		rep, aerr := exp.Analyze(ctx)
		if aerr != nil {
			return nil, aerr
		}
		run.Ranking, run.Selection, run.Results = rep.Ranking, rep.Selection, rep.Fit
	case "estimate":
		run.Results, err = exp.Estimate(ctx, step.Variable, step.Remove)
	default:
		return nil, estim.Configf("scenario", "unknown step kind %q", step.Kind)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// RunScenario executes every step in order. Completed runs are returned
// together with the error of the first failing step.
func RunScenario(ctx context.Context, scenario *Scenario, logger *slog.Logger) ([]*storage.Run, error) {
	if logger == nil {
		logger = slog.Default()
	}
	runs := make([]*storage.Run, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		logger.Info("running step", "step", i+1, "of", len(scenario.Steps), "preset", step.Preset, "kind", step.Kind)
		run, err := RunStep(ctx, step, logger)
		if err != nil {
			return runs, fmt.Errorf("step %d: %w", i+1, err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// NoiseSweep repeats the analysis of one synthetic config at evenly spaced
// noise levels.
type NoiseSweep struct {
	Config   *config.Config
	NoiseMin float64
	NoiseMax float64
	NumSteps int
}

type SweepResult struct {
	Noise    float64
	Estimate []string
	Fix      []string
	MSE      float64
}

// RunSweep analyzes the config at every noise level using the same seed.
func RunSweep(ctx context.Context, sweep *NoiseSweep, logger *slog.Logger) ([]SweepResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if sweep.Config == nil || sweep.Config.Data.Synthetic == nil {
		return nil, estim.Configf("sweep", "noise sweep needs synthetic data")
	}
	if sweep.NumSteps < 1 || sweep.NoiseMin < 0 || sweep.NoiseMax < sweep.NoiseMin {
		return nil, estim.Configf("sweep", "invalid range [%g, %g] with %d steps", sweep.NoiseMin, sweep.NoiseMax, sweep.NumSteps)
	}

	step := 0.0
	if sweep.NumSteps > 1 {
		step = (sweep.NoiseMax - sweep.NoiseMin) / float64(sweep.NumSteps-1)
	}

	results := make([]SweepResult, 0, sweep.NumSteps)
	for i := 0; i < sweep.NumSteps; i++ {
		noise := sweep.NoiseMin + float64(i)*step

		cfg := *sweep.Config
		syn := *cfg.Data.Synthetic
		syn.Noise = noise
		cfg.Data.Synthetic = &syn

		exp := experiment.New(&cfg, logger)
		if err := exp.Setup(experiment.NewRegistry()); err != nil {
			return nil, err
		}
		rep, err := exp.Analyze(ctx)
		if err != nil {
			return nil, fmt.Errorf("noise %g: %w", noise, err)
		}

		results = append(results, SweepResult{
			Noise:    noise,
			Estimate: rep.ToEstimate,
			Fix:      rep.ToFix,
			MSE:      rep.Fit.MSE,
		})
		logger.Info("sweep", "step", i+1, "of", sweep.NumSteps, "noise", noise, "estimate", rep.ToEstimate)
	}
	return results, nil
}
