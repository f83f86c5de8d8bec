package config

import (
	"math"
	"os"

	"github.com/san-kum/kinest/internal/estim"
	"github.com/san-kum/kinest/internal/kinetics"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMethod        = "lbfgs"
	DefaultMaxIterations = 200
	DefaultHessian       = "reduced"
	DefaultCriterion     = "wu"
	DefaultThreshold     = 0.05
	DefaultAlpha         = 0.05
	DefaultPoints        = 30
	DefaultDuration      = 10.0
	DefaultLogLevel      = "info"
)

type Config struct {
	Name      string             `yaml:"name"`
	Model     ModelConfig        `yaml:"model"`
	Data      DataConfig         `yaml:"data"`
	Variances map[string]float64 `yaml:"variances,omitempty"`
	Scaling   ScalingConfig      `yaml:"scaling"`
	Solver    SolverConfig       `yaml:"solver"`
	Selection SelectionConfig    `yaml:"selection"`
	Seed      int64              `yaml:"seed"`
	LogLevel  string             `yaml:"log_level"`
}

type ModelConfig struct {
	Components  []ComponentConfig `yaml:"components"`
	Reactions   []ReactionConfig  `yaml:"reactions"`
	Parameters  []ParameterConfig `yaml:"parameters"`
	PriorWeight float64           `yaml:"prior_weight,omitempty"`
}

type ComponentConfig struct {
	Name    string  `yaml:"name"`
	Initial float64 `yaml:"initial"`
}

type ReactionConfig struct {
	From string `yaml:"from"`
	To   string `yaml:"to,omitempty"`
	Rate string `yaml:"rate"`
}

type ParameterConfig struct {
	Name string `yaml:"name"`
	// Value defaults to the midpoint of the bounds.
	Value       *float64 `yaml:"value,omitempty"`
	Lower       float64  `yaml:"lower"`
	Upper       float64  `yaml:"upper"`
	Fixed       bool     `yaml:"fixed,omitempty"`
	Uncertainty float64  `yaml:"uncertainty,omitempty"`
}

type DataConfig struct {
	Concentrations string `yaml:"concentrations,omitempty"`
	// Absorbance is a time by wavelength matrix fitted through Spectra.
	Absorbance string `yaml:"absorbance,omitempty"`
	Spectra    string `yaml:"spectra,omitempty"`
	// Measured restricts the fit to these components; empty means all
	// columns in the data.
	Measured  []string         `yaml:"measured,omitempty"`
	Synthetic *SyntheticConfig `yaml:"synthetic,omitempty"`
}

// HasFiles reports whether measured data is read from disk. Synthetic
// data is only generated when it is not.
func (d DataConfig) HasFiles() bool {
	return d.Concentrations != "" || d.Absorbance != ""
}

// SyntheticConfig generates data from the model itself when no
// concentration file is given.
type SyntheticConfig struct {
	True     map[string]float64 `yaml:"true"`
	Duration float64            `yaml:"duration"`
	Points   int                `yaml:"points"`
	Noise    float64            `yaml:"noise"`
	// Absorbance generates an absorbance matrix over the spectra
	// wavelengths instead of concentrations.
	Absorbance bool `yaml:"absorbance,omitempty"`
}

type ScalingConfig struct {
	Parameters  map[string]float64 `yaml:"parameters,omitempty"`
	Measurement float64            `yaml:"measurement,omitempty"`
}

type SolverConfig struct {
	Method        string  `yaml:"method"`
	MaxIterations int     `yaml:"max_iterations"`
	GradTol       float64 `yaml:"grad_tol,omitempty"`
	Multistart    int     `yaml:"multistart,omitempty"`
	Hessian       string  `yaml:"hessian"`
}

type SelectionConfig struct {
	Criterion string  `yaml:"criterion"`
	Threshold float64 `yaml:"threshold,omitempty"`
	Alpha     float64 `yaml:"alpha,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Solver: SolverConfig{
			Method:        DefaultMethod,
			MaxIterations: DefaultMaxIterations,
			Hessian:       DefaultHessian,
		},
		Selection: SelectionConfig{
			Criterion: DefaultCriterion,
			Threshold: DefaultThreshold,
			Alpha:     DefaultAlpha,
		},
		LogLevel: DefaultLogLevel,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the structure of the model and data sections. Parameter
// bounds and names are checked again when the parameter set is built.
func (c *Config) Validate() error {
	if len(c.Model.Components) == 0 {
		return estim.Configf("config", "model has no components")
	}
	if len(c.Model.Reactions) == 0 {
		return estim.Configf("config", "model has no reactions")
	}
	if !c.Data.HasFiles() && c.Data.Synthetic == nil {
		return estim.Configf("config", "data needs a concentrations or absorbance file, or a synthetic section")
	}
	if c.Data.Spectra == "" && (c.Data.Absorbance != "" || (!c.Data.HasFiles() && c.Data.Synthetic.Absorbance)) {
		return estim.Configf("config", "absorbance data needs a spectra file")
	}
	if s := c.Data.Synthetic; s != nil {
		if s.Noise < 0 || math.IsNaN(s.Noise) {
			return estim.Configf("config", "synthetic noise must be non-negative")
		}
		for name := range s.True {
			if !c.hasParameter(name) {
				return estim.Configf("config", "synthetic value for unknown parameter %q", name)
			}
		}
	}
	if c.Model.PriorWeight < 0 {
		return estim.Configf("config", "prior weight must be non-negative")
	}
	for name, v := range c.Variances {
		if v <= 0 {
			return estim.Configf("config", "variance of %q must be positive", name)
		}
	}
	_, err := c.ParameterSet()
	return err
}

func (c *Config) hasParameter(name string) bool {
	for _, p := range c.Model.Parameters {
		if p.Name == name {
			return true
		}
	}
	return false
}

func (c *Config) ParameterSet() (estim.ParameterSet, error) {
	params := make([]estim.Parameter, len(c.Model.Parameters))
	for i, p := range c.Model.Parameters {
		v := math.NaN()
		if p.Value != nil {
			v = *p.Value
		}
		params[i] = estim.Parameter{
			Name:        p.Name,
			Value:       v,
			Lower:       p.Lower,
			Upper:       p.Upper,
			Fixed:       p.Fixed,
			Uncertainty: p.Uncertainty,
		}
	}
	return estim.NewParameterSet(params...)
}

func (c *Config) ComponentNames() []string {
	names := make([]string, len(c.Model.Components))
	for i, comp := range c.Model.Components {
		names[i] = comp.Name
	}
	return names
}

func (c *Config) InitialConcentrations() map[string]float64 {
	out := make(map[string]float64, len(c.Model.Components))
	for _, comp := range c.Model.Components {
		out[comp.Name] = comp.Initial
	}
	return out
}

func (c *Config) Reactions() []kinetics.Reaction {
	out := make([]kinetics.Reaction, len(c.Model.Reactions))
	for i, r := range c.Model.Reactions {
		out[i] = kinetics.Reaction{From: r.From, To: r.To, Rate: r.Rate}
	}
	return out
}

// SampleTimes returns the synthetic measurement grid, excluding t = 0.
func (s *SyntheticConfig) SampleTimes() []float64 {
	n := s.Points
	if n <= 0 {
		n = DefaultPoints
	}
	d := s.Duration
	if d <= 0 {
		d = DefaultDuration
	}
	times := make([]float64, n)
	for i := range times {
		times[i] = d * float64(i+1) / float64(n)
	}
	return times
}
