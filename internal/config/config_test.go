package config

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/san-kum/kinest/internal/estim"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Solver.Method != DefaultMethod {
		t.Errorf("expected method %s, got %s", DefaultMethod, cfg.Solver.Method)
	}
	if cfg.Selection.Criterion != "wu" {
		t.Errorf("expected wu criterion, got %s", cfg.Selection.Criterion)
	}
	if cfg.Solver.MaxIterations <= 0 {
		t.Error("max iterations should be positive")
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("series", "abc")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if len(cfg.Model.Reactions) != 2 {
		t.Errorf("expected 2 reactions, got %d", len(cfg.Model.Reactions))
	}
	if cfg.Solver.Method != DefaultMethod {
		t.Errorf("preset missing solver defaults: %+v", cfg.Solver)
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if GetPreset("series", "nonexistent") != nil {
		t.Error("expected nil for nonexistent preset")
	}
	if GetPreset("nonexistent", "abc") != nil {
		t.Error("expected nil for nonexistent family")
	}
}

func TestListPresets(t *testing.T) {
	if len(ListPresets("series")) == 0 {
		t.Error("expected presets for series")
	}
	if ListPresets("nonexistent") != nil {
		t.Error("expected nil for nonexistent family")
	}
}

func TestPresetsValidate(t *testing.T) {
	for _, family := range Families() {
		for _, name := range ListPresets(family) {
			cfg := GetPreset(family, name)
			if err := cfg.Validate(); err != nil {
				t.Errorf("%s/%s: %v", family, name, err)
			}
		}
	}
}

func TestSaveLoad(t *testing.T) {
	cfg := GetPreset("reversible", "equilibrium")
	path := filepath.Join(t.TempDir(), "cfg.yaml")

	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if back.Model.PriorWeight != 0.1 {
		t.Errorf("prior weight = %g", back.Model.PriorWeight)
	}
	ps, err := back.ParameterSet()
	if err != nil {
		t.Fatal(err)
	}
	if kf, _ := ps.Get("kf"); kf.Value != 1 {
		t.Errorf("kf = %g", kf.Value)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no components", func(c *Config) { c.Model.Components = nil }},
		{"no reactions", func(c *Config) { c.Model.Reactions = nil }},
		{"no data", func(c *Config) { c.Data = DataConfig{} }},
		{"negative noise", func(c *Config) { c.Data.Synthetic.Noise = -1 }},
		{"unknown true value", func(c *Config) { c.Data.Synthetic.True = map[string]float64{"zz": 1} }},
		{"bad variance", func(c *Config) { c.Variances = map[string]float64{"A": 0} }},
		{"inverted bounds", func(c *Config) { c.Model.Parameters[0].Lower = 10 }},
		{"absorbance file without spectra", func(c *Config) { c.Data.Absorbance = "d.csv" }},
		{"synthetic absorbance without spectra", func(c *Config) { c.Data.Synthetic.Absorbance = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetPreset("series", "abc")
			// presets share slices with the registry
			cfg.Model.Parameters = append([]ParameterConfig(nil), cfg.Model.Parameters...)
			syn := *cfg.Data.Synthetic
			cfg.Data.Synthetic = &syn
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, estim.ErrConfiguration) {
				t.Errorf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestValidate_AbsorbanceOnly(t *testing.T) {
	cfg := GetPreset("series", "abc")
	cfg.Data = DataConfig{Absorbance: "d.csv", Spectra: "s.csv"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("absorbance file with spectra should validate: %v", err)
	}
	if !cfg.Data.HasFiles() {
		t.Error("HasFiles false with an absorbance file")
	}
}

func TestSampleTimes(t *testing.T) {
	times := (&SyntheticConfig{Duration: 2, Points: 4}).SampleTimes()
	want := []float64{0.5, 1, 1.5, 2}
	for i := range want {
		if times[i] != want[i] {
			t.Errorf("times = %v, want %v", times, want)
			break
		}
	}
}
