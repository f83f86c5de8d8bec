package config

import "sort"

func ptr(v float64) *float64 { return &v }

var Presets = map[string]map[string]*Config{
	"series": {
		"abc": {
			Name: "series/abc",
			Model: ModelConfig{
				Components: []ComponentConfig{{Name: "A", Initial: 1}, {Name: "B"}, {Name: "C"}},
				Reactions:  []ReactionConfig{{From: "A", To: "B", Rate: "k1"}, {From: "B", To: "C", Rate: "k2"}},
				Parameters: []ParameterConfig{
					{Name: "k1", Value: ptr(1.5), Lower: 0.1, Upper: 5, Uncertainty: 0.2},
					{Name: "k2", Value: ptr(0.8), Lower: 0.05, Upper: 2, Uncertainty: 0.2},
				},
			},
			Data: DataConfig{Synthetic: &SyntheticConfig{
				True: map[string]float64{"k1": 2, "k2": 0.5}, Duration: 8, Points: 30, Noise: 0.005,
			}},
			Variances: map[string]float64{"A": 2.5e-5, "B": 2.5e-5, "C": 2.5e-5},
			Seed:      1,
		},
		"abcd": {
			Name: "series/abcd",
			Model: ModelConfig{
				Components: []ComponentConfig{{Name: "A", Initial: 1}, {Name: "B"}, {Name: "C"}, {Name: "D"}},
				Reactions: []ReactionConfig{
					{From: "A", To: "B", Rate: "k1"},
					{From: "B", To: "C", Rate: "k2"},
					{From: "C", To: "D", Rate: "k3"},
				},
				Parameters: []ParameterConfig{
					{Name: "k1", Value: ptr(1), Lower: 0.1, Upper: 5},
					{Name: "k2", Value: ptr(1), Lower: 0.1, Upper: 5},
					{Name: "k3", Value: ptr(0.1), Lower: 0.01, Upper: 1},
				},
			},
			Data: DataConfig{
				Measured: []string{"A", "D"},
				Synthetic: &SyntheticConfig{
					True: map[string]float64{"k1": 1.5, "k2": 0.9, "k3": 0.2}, Duration: 15, Points: 40, Noise: 0.01,
				},
			},
			Seed: 2,
		},
	},
	"parallel": {
		"branching": {
			Name: "parallel/branching",
			Model: ModelConfig{
				Components: []ComponentConfig{{Name: "A", Initial: 1}, {Name: "B"}, {Name: "C"}, {Name: "D"}},
				Reactions: []ReactionConfig{
					{From: "A", To: "B", Rate: "k1"},
					{From: "A", To: "C", Rate: "k2"},
					{From: "B", To: "D", Rate: "k3"},
				},
				Parameters: []ParameterConfig{
					{Name: "k1", Value: ptr(0.5), Lower: 0.01, Upper: 3},
					{Name: "k2", Value: ptr(0.5), Lower: 0.01, Upper: 3},
					{Name: "k3", Value: ptr(0.5), Lower: 0.01, Upper: 3},
				},
			},
			Data: DataConfig{
				Measured: []string{"A", "B"},
				Synthetic: &SyntheticConfig{
					True: map[string]float64{"k1": 0.8, "k2": 0.3, "k3": 0.4}, Duration: 10, Points: 30, Noise: 0.005,
				},
			},
			Seed: 3,
		},
	},
	"reversible": {
		"equilibrium": {
			Name: "reversible/equilibrium",
			Model: ModelConfig{
				Components: []ComponentConfig{{Name: "A", Initial: 1}, {Name: "B"}, {Name: "C"}},
				Reactions: []ReactionConfig{
					{From: "A", To: "B", Rate: "kf"},
					{From: "B", To: "A", Rate: "kb"},
					{From: "B", To: "C", Rate: "k3"},
				},
				Parameters: []ParameterConfig{
					{Name: "kf", Value: ptr(1), Lower: 0.01, Upper: 5},
					{Name: "kb", Value: ptr(0.5), Lower: 0.01, Upper: 5},
					{Name: "k3", Value: ptr(0.1), Lower: 0.001, Upper: 1},
				},
				PriorWeight: 0.1,
			},
			Data: DataConfig{
				Measured: []string{"A", "C"},
				Synthetic: &SyntheticConfig{
					True: map[string]float64{"kf": 1.2, "kb": 0.6, "k3": 0.15}, Duration: 20, Points: 40, Noise: 0.005,
				},
			},
			Seed: 4,
		},
	},
}

// GetPreset returns a copy of the named preset with solver and selection
// defaults filled in, or nil.
func GetPreset(family, preset string) *Config {
	familyPresets, ok := Presets[family]
	if !ok {
		return nil
	}
	p, ok := familyPresets[preset]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Name = p.Name
	cfg.Model = p.Model
	cfg.Data = p.Data
	cfg.Variances = p.Variances
	cfg.Seed = p.Seed
	return cfg
}

func ListPresets(family string) []string {
	familyPresets, ok := Presets[family]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(familyPresets))
	for name := range familyPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func Families() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
