// Package kinetics models first-order reaction networks.
//
// Every reaction consumes one component at a rate proportional to its
// concentration, so the system is linear: dC/dt = K·C with
// C(t) = expm(K t)·C0. No numerical integration is needed.
package kinetics

import (
	"math"

	"github.com/san-kum/kinest/internal/dataset"
	"github.com/san-kum/kinest/internal/estim"
	"gonum.org/v1/gonum/mat"
)

const PriorObjective = "prior"

// DeviceVariance is the variances key that weights absorbance residuals.
const DeviceVariance = "device"

// Reaction converts From into To at the rate named by Rate. An empty To
// removes From from the system.
type Reaction struct {
	From string
	To   string
	Rate string
}

// Network is a first-order reaction network that implements estim.Model.
// It is not safe for concurrent use.
type Network struct {
	components []string
	index      map[string]int
	c0         []float64
	reactions  []Reaction

	params    estim.ParameterSet
	constants map[string]float64
	priors    map[string]float64

	priorWeight float64
	priorActive bool

	data    *dataset.Concentrations
	spectra *dataset.Spectra

	absorbance *dataset.Absorbance
	// absS holds the spectra rows matching the absorbance wavelengths.
	absS *mat.Dense
}

// New builds a network. initial maps components to their concentration at
// t = 0; missing components start at zero.
func New(components []string, initial map[string]float64, reactions []Reaction, ps estim.ParameterSet) (*Network, error) {
	if len(components) == 0 {
		return nil, estim.Configf("network", "no components")
	}
	n := &Network{
		components: append([]string(nil), components...),
		index:      make(map[string]int, len(components)),
		c0:         make([]float64, len(components)),
		reactions:  append([]Reaction(nil), reactions...),
		constants:  make(map[string]float64),
	}
	for i, c := range components {
		if c == "" {
			return nil, estim.Configf("network", "component %d has no name", i)
		}
		if _, dup := n.index[c]; dup {
			return nil, estim.Configf("network", "duplicate component %q", c)
		}
		n.index[c] = i
	}
	for c, v := range initial {
		i, ok := n.index[c]
		if !ok {
			return nil, estim.Configf("network", "initial value for unknown component %q", c)
		}
		if v < 0 || math.IsNaN(v) {
			return nil, estim.Configf("network", "initial value of %q must be non-negative", c)
		}
		n.c0[i] = v
	}
	for i, r := range reactions {
		if _, ok := n.index[r.From]; !ok {
			return nil, estim.Configf("network", "reaction %d consumes unknown component %q", i, r.From)
		}
		if _, ok := n.index[r.To]; r.To != "" && !ok {
			return nil, estim.Configf("network", "reaction %d produces unknown component %q", i, r.To)
		}
		if r.From == r.To {
			return nil, estim.Configf("network", "reaction %d maps %q onto itself", i, r.From)
		}
	}
	if err := n.SetParameters(ps); err != nil {
		return nil, err
	}
	n.priors = ps.Values()
	return n, nil
}

func (n *Network) Components() []string { return append([]string(nil), n.components...) }

func (n *Network) Reactions() []Reaction { return append([]Reaction(nil), n.reactions...) }

func (n *Network) Initial() []float64 { return append([]float64(nil), n.c0...) }

func (n *Network) Parameters() estim.ParameterSet { return n.params }

// SetParameters replaces the parameter set. Every rate must resolve to a
// parameter or a frozen constant.
func (n *Network) SetParameters(ps estim.ParameterSet) error {
	for _, r := range n.reactions {
		_, frozen := n.constants[r.Rate]
		if !ps.Contains(r.Rate) && !frozen {
			return estim.Configf("network", "no parameter for rate %q", r.Rate)
		}
	}
	for _, name := range ps.Names() {
		if !n.usesRate(name) {
			return estim.Configf("network", "parameter %q is not used by any reaction", name)
		}
		p, _ := ps.Get(name)
		if p.Value < 0 {
			return estim.Configf("network", "rate %q must be non-negative, got %g", name, p.Value)
		}
	}
	n.params = ps
	return nil
}

func (n *Network) usesRate(name string) bool {
	for _, r := range n.reactions {
		if r.Rate == name {
			return true
		}
	}
	return false
}

// Freeze turns the given parameters into constants and removes them from
// the parameter set.
func (n *Network) Freeze(reduced estim.ParameterSet, values map[string]float64) error {
	for name, v := range values {
		if !n.usesRate(name) {
			return estim.Configf("network", "cannot freeze unknown rate %q", name)
		}
		n.constants[name] = v
	}
	return n.SetParameters(reduced)
}

// Constants returns the frozen rates.
func (n *Network) Constants() map[string]float64 {
	out := make(map[string]float64, len(n.constants))
	for k, v := range n.constants {
		out[k] = v
	}
	return out
}

// EnablePrior adds an objective that pulls free rates toward their initial
// guesses, weighted by each parameter's uncertainty.
func (n *Network) EnablePrior(weight float64) {
	n.priorWeight = weight
	n.priorActive = weight > 0
}

func (n *Network) Objectives() []estim.Objective {
	if n.priorWeight <= 0 {
		return nil
	}
	return []estim.Objective{{Name: PriorObjective, Active: n.priorActive}}
}

func (n *Network) SetObjectiveActive(name string, active bool) error {
	if name != PriorObjective || n.priorWeight <= 0 {
		return estim.Configf("network", "unknown objective %q", name)
	}
	n.priorActive = active
	return nil
}

// SetData attaches measured concentrations. Measured components must be
// part of the network.
func (n *Network) SetData(c *dataset.Concentrations) error {
	if c == nil || c.Rows() == 0 {
		return estim.Inputf("network", "no concentration data")
	}
	for _, name := range c.Components {
		if _, ok := n.index[name]; !ok {
			return estim.Inputf("network", "data column %q is not a network component", name)
		}
	}
	n.data = c
	return nil
}

func (n *Network) Data() *dataset.Concentrations { return n.data }

// SetSpectra attaches pure-component absorbances so results carry the
// predicted absorbance matrix D = C·Sᵀ. Attached absorbance data must stay
// covered by the new spectra.
func (n *Network) SetSpectra(s *dataset.Spectra) error {
	if s == nil {
		if n.absorbance != nil {
			return estim.Inputf("network", "absorbance data needs pure-component spectra")
		}
		n.spectra = nil
		return nil
	}
	sel, err := s.Select(n.components)
	if err != nil {
		return err
	}
	if n.absorbance != nil {
		absS, err := matchWavelengths(sel, n.absorbance.Wavelengths)
		if err != nil {
			return err
		}
		n.absS = absS
	}
	n.spectra = sel
	return nil
}

// SetAbsorbance attaches a measured absorbance matrix as a second
// observation source, predicted as C·Sᵀ from the attached spectra. Every
// wavelength must appear in the spectra. A nil matrix detaches it.
func (n *Network) SetAbsorbance(a *dataset.Absorbance) error {
	if a == nil {
		n.absorbance, n.absS = nil, nil
		return nil
	}
	if len(a.Times) == 0 || len(a.Wavelengths) == 0 {
		return estim.Inputf("network", "no absorbance data")
	}
	if n.spectra == nil {
		return estim.Inputf("network", "absorbance data needs pure-component spectra")
	}
	absS, err := matchWavelengths(n.spectra, a.Wavelengths)
	if err != nil {
		return err
	}
	n.absorbance, n.absS = a, absS
	return nil
}

func (n *Network) Absorbance() *dataset.Absorbance { return n.absorbance }

// matchWavelengths returns the rows of s at the given wavelengths.
func matchWavelengths(s *dataset.Spectra, wavelengths []float64) (*mat.Dense, error) {
	_, nc := s.Values.Dims()
	out := mat.NewDense(len(wavelengths), nc, nil)
	for i, w := range wavelengths {
		row := -1
		for j, sw := range s.Index {
			if math.Abs(sw-w) <= 1e-9*math.Max(1, math.Abs(w)) {
				row = j
				break
			}
		}
		if row < 0 {
			return nil, estim.Inputf("network", "no spectrum at wavelength %g", w)
		}
		out.SetRow(i, mat.Row(nil, row, s.Values))
	}
	return out, nil
}

// rate resolves a rate from values, the frozen constants or the current
// parameter set, in that order.
func (n *Network) rate(name string, values map[string]float64) float64 {
	if v, ok := values[name]; ok {
		return v
	}
	if v, ok := n.constants[name]; ok {
		return v
	}
	p, _ := n.params.Get(name)
	return p.Value
}

// RateMatrix returns K such that dC/dt = K·C.
func (n *Network) RateMatrix(values map[string]float64) *mat.Dense {
	nc := len(n.components)
	k := mat.NewDense(nc, nc, nil)
	for _, r := range n.reactions {
		from := n.index[r.From]
		v := n.rate(r.Rate, values)
		k.Set(from, from, k.At(from, from)-v)
		if r.To != "" {
			to := n.index[r.To]
			k.Set(to, from, k.At(to, from)+v)
		}
	}
	return k
}

// Predict returns concentrations at the given times, one row per time.
func (n *Network) Predict(values map[string]float64, times []float64) (*mat.Dense, error) {
	if len(times) == 0 {
		return nil, estim.Inputf("network", "no prediction times")
	}
	k := n.RateMatrix(values)
	nc := len(n.components)
	c0 := mat.NewVecDense(nc, n.c0)

	out := mat.NewDense(len(times), nc, nil)
	var kt, e mat.Dense
	var c mat.VecDense
	for i, t := range times {
		if t < 0 || math.IsNaN(t) {
			return nil, estim.Inputf("network", "invalid time %g", t)
		}
		kt.Scale(t, k)
		e.Exp(&kt)
		c.MulVec(&e, c0)
		for j := 0; j < nc; j++ {
			out.Set(i, j, c.AtVec(j))
		}
	}
	return out, nil
}
