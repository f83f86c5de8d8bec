package estim

import (
	"math"
	"strings"
)

// Parameter is a named scalar kinetic parameter.
type Parameter struct {
	Name  string
	Value float64
	Lower float64
	Upper float64
	Fixed bool
	// Uncertainty is the fractional confidence in the initial guess; zero
	// means none was supplied.
	Uncertainty float64
}

// Width returns the length of the bound interval.
func (p Parameter) Width() float64 {
	return p.Upper - p.Lower
}

// InBounds reports whether v lies in [Lower, Upper].
func (p Parameter) InBounds(v float64) bool {
	return v >= p.Lower && v <= p.Upper
}

// ParameterSet is an immutable ordered collection of parameters. Every
// mutating operation returns a new set.
type ParameterSet struct {
	params []Parameter
	index  map[string]int
}

// NewParameterSet validates params and returns them as a set in the given
// order. A NaN value defaults to the midpoint of the bounds.
func NewParameterSet(params ...Parameter) (ParameterSet, error) {
	ps := ParameterSet{
		params: make([]Parameter, len(params)),
		index:  make(map[string]int, len(params)),
	}
	for i, p := range params {
		if strings.TrimSpace(p.Name) == "" {
			return ParameterSet{}, Configf("parameters", "parameter %d has no name", i)
		}
		if _, dup := ps.index[p.Name]; dup {
			return ParameterSet{}, Configf("parameters", "duplicate parameter %q", p.Name)
		}
		if p.Lower > p.Upper {
			return ParameterSet{}, Configf("parameters", "parameter %q has lower bound %g above upper bound %g", p.Name, p.Lower, p.Upper)
		}
		if !p.Fixed && !finiteInterval(p.Lower, p.Upper) {
			return ParameterSet{}, Configf("parameters", "free parameter %q needs finite bounds, got [%g, %g]", p.Name, p.Lower, p.Upper)
		}
		if p.Uncertainty < 0 || math.IsNaN(p.Uncertainty) {
			return ParameterSet{}, Configf("parameters", "parameter %q has invalid uncertainty %g", p.Name, p.Uncertainty)
		}
		if math.IsNaN(p.Value) {
			p.Value = (p.Lower + p.Upper) / 2
		}
		ps.params[i] = p
		ps.index[p.Name] = i
	}
	return ps, nil
}

// MustParameterSet is like NewParameterSet but panics on error.
func MustParameterSet(params ...Parameter) ParameterSet {
	ps, err := NewParameterSet(params...)
	if err != nil {
		panic(err)
	}
	return ps
}

func finiteInterval(lo, hi float64) bool {
	return !math.IsInf(lo, 0) && !math.IsInf(hi, 0) && !math.IsNaN(lo) && !math.IsNaN(hi) && hi > lo
}

func (s ParameterSet) Len() int { return len(s.params) }

// All returns a copy of the parameters in insertion order.
func (s ParameterSet) All() []Parameter {
	out := make([]Parameter, len(s.params))
	copy(out, s.params)
	return out
}

func (s ParameterSet) Get(name string) (Parameter, bool) {
	i, ok := s.index[name]
	if !ok {
		return Parameter{}, false
	}
	return s.params[i], true
}

func (s ParameterSet) Contains(name string) bool {
	_, ok := s.index[name]
	return ok
}

func (s ParameterSet) Names() []string {
	names := make([]string, len(s.params))
	for i, p := range s.params {
		names[i] = p.Name
	}
	return names
}

// Free returns the non-fixed parameters in insertion order.
func (s ParameterSet) Free() []Parameter {
	out := make([]Parameter, 0, len(s.params))
	for _, p := range s.params {
		if !p.Fixed {
			out = append(out, p)
		}
	}
	return out
}

func (s ParameterSet) FreeNames() []string {
	free := s.Free()
	names := make([]string, len(free))
	for i, p := range free {
		names[i] = p.Name
	}
	return names
}

func (s ParameterSet) Values() map[string]float64 {
	out := make(map[string]float64, len(s.params))
	for _, p := range s.params {
		out[p.Name] = p.Value
	}
	return out
}

func (s ParameterSet) FixedFlags() map[string]bool {
	out := make(map[string]bool, len(s.params))
	for _, p := range s.params {
		out[p.Name] = p.Fixed
	}
	return out
}

// Unknown returns the names not present in the set, preserving order.
func (s ParameterSet) Unknown(names []string) []string {
	var missing []string
	for _, n := range names {
		if !s.Contains(n) {
			missing = append(missing, n)
		}
	}
	return missing
}

func (s ParameterSet) clone() ParameterSet {
	c := ParameterSet{
		params: make([]Parameter, len(s.params)),
		index:  s.index,
	}
	copy(c.params, s.params)
	return c
}

// Fix returns a copy with the named parameters fixed. Unknown names are
// ignored.
func (s ParameterSet) Fix(names ...string) ParameterSet {
	c := s.clone()
	for _, n := range names {
		if i, ok := c.index[n]; ok {
			c.params[i].Fixed = true
		}
	}
	return c
}

// Unfix returns a copy with the named parameters free. Unknown names are
// ignored; freeing a parameter without finite bounds is a configuration
// error.
func (s ParameterSet) Unfix(names ...string) (ParameterSet, error) {
	flags := make(map[string]bool, len(names))
	for _, n := range names {
		flags[n] = false
	}
	return s.WithFixedFlags(flags)
}

// WithValues returns a copy with the given values applied.
func (s ParameterSet) WithValues(values map[string]float64) ParameterSet {
	c := s.clone()
	for n, v := range values {
		if i, ok := c.index[n]; ok {
			c.params[i].Value = v
		}
	}
	return c
}

// WithFixedFlags returns a copy with the given fixed flags applied. It
// fails if a parameter without finite bounds would become free.
func (s ParameterSet) WithFixedFlags(flags map[string]bool) (ParameterSet, error) {
	c := s.clone()
	for n, f := range flags {
		i, ok := c.index[n]
		if !ok {
			continue
		}
		p := &c.params[i]
		if !f && !finiteInterval(p.Lower, p.Upper) {
			return ParameterSet{}, Configf("parameters", "free parameter %q needs finite bounds, got [%g, %g]", n, p.Lower, p.Upper)
		}
		p.Fixed = f
	}
	return c, nil
}
