package kinetics

import (
	"math"
	"math/rand"
	"time"

	"github.com/san-kum/kinest/internal/dataset"
	"github.com/san-kum/kinest/internal/estim"
	"gonum.org/v1/gonum/mat"
)

// Observations returns the measured data flattened row-major with weights
// 1/variance: concentrations (time, then component) followed by absorbance
// (time, then wavelength). Components without a variance get weight 1;
// absorbance uses the DeviceVariance entry.
func (n *Network) Observations(variances map[string]float64) ([]float64, []float64, error) {
	if n.data == nil && n.absorbance == nil {
		return nil, nil, estim.Inputf("network", "no measured data attached")
	}
	size := n.NumObservations()
	y := make([]float64, 0, size)
	w := make([]float64, 0, size)
	if n.data != nil {
		rows, _ := n.data.Values.Dims()
		for i := 0; i < rows; i++ {
			for j, name := range n.data.Components {
				weight, err := weightOf(variances, name)
				if err != nil {
					return nil, nil, err
				}
				y = append(y, n.data.Values.At(i, j))
				w = append(w, weight)
			}
		}
	}
	if n.absorbance != nil {
		weight, err := weightOf(variances, DeviceVariance)
		if err != nil {
			return nil, nil, err
		}
		rows, cols := n.absorbance.Values.Dims()
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				y = append(y, n.absorbance.Values.At(i, j))
				w = append(w, weight)
			}
		}
	}
	return y, w, nil
}

func weightOf(variances map[string]float64, name string) (float64, error) {
	v, ok := variances[name]
	if !ok {
		return 1, nil
	}
	if v <= 0 || math.IsNaN(v) {
		return 0, estim.Configf("network", "variance of %q must be positive, got %g", name, v)
	}
	return 1 / v, nil
}

// NumObservations is the number of measured values across all sources.
func (n *Network) NumObservations() int {
	total := 0
	if n.data != nil {
		total += n.data.Rows() * len(n.data.Components)
	}
	if n.absorbance != nil {
		total += len(n.absorbance.Times) * len(n.absorbance.Wavelengths)
	}
	return total
}

// Predictions returns the model output in the order of Observations.
func (n *Network) Predictions(values map[string]float64) ([]float64, error) {
	if n.data == nil && n.absorbance == nil {
		return nil, estim.Inputf("network", "no measured data attached")
	}
	out := make([]float64, 0, n.NumObservations())
	if n.data != nil {
		z, err := n.Predict(values, n.data.Index)
		if err != nil {
			return nil, err
		}
		for i := range n.data.Index {
			for _, name := range n.data.Components {
				out = append(out, z.At(i, n.index[name]))
			}
		}
	}
	if n.absorbance != nil {
		d, err := n.predictAbsorbance(values, n.absorbance.Times, n.absS)
		if err != nil {
			return nil, err
		}
		rows, cols := d.Dims()
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				out = append(out, d.At(i, j))
			}
		}
	}
	return out, nil
}

// predictAbsorbance returns C·Sᵀ at times, one row per time.
func (n *Network) predictAbsorbance(values map[string]float64, times []float64, s *mat.Dense) (*mat.Dense, error) {
	c, err := n.Predict(values, times)
	if err != nil {
		return nil, err
	}
	var d mat.Dense
	d.Mul(c, s.T())
	return &d, nil
}

// Penalty returns the residuals of the prior objective for the free rates,
// or nil while it is inactive.
func (n *Network) Penalty(values map[string]float64) []float64 {
	if !n.priorActive || n.priorWeight <= 0 {
		return nil
	}
	scale := math.Sqrt(n.priorWeight)
	var out []float64
	for _, p := range n.params.Free() {
		prior := n.priors[p.Name]
		sigma := p.Width() / 2
		if p.Uncertainty > 0 && prior != 0 {
			sigma = p.Uncertainty * math.Abs(prior)
		}
		out = append(out, scale*(n.rate(p.Name, values)-prior)/sigma)
	}
	return out
}

// Results evaluates the network at the concentration times, or the
// absorbance times when only absorbance is measured. S and D are set when
// spectra are attached.
func (n *Network) Results(values map[string]float64) (*estim.Results, error) {
	var times []float64
	switch {
	case n.data != nil:
		times = append(times, n.data.Index...)
	case n.absorbance != nil:
		times = append(times, n.absorbance.Times...)
	default:
		return nil, estim.Inputf("network", "no measured data attached")
	}
	z, err := n.Predict(values, times)
	if err != nil {
		return nil, err
	}

	k := n.RateMatrix(values)
	var dz mat.Dense
	dz.Mul(z, k.T())

	res := &estim.Results{
		Generated:  time.Now(),
		Times:      times,
		Components: n.Components(),
		Z:          z,
		DZdt:       &dz,
		MeasTimes:  times,
		C:          mat.DenseCopyOf(z),
		P:          n.params.WithValues(values).Values(),
		Objective:  math.NaN(),
	}
	for name, v := range n.constants {
		res.P[name] = v
	}
	if n.spectra != nil {
		res.Wavelengths = append([]float64(nil), n.spectra.Index...)
		res.S = mat.DenseCopyOf(n.spectra.Values)
		var d mat.Dense
		d.Mul(res.C, res.S.T())
		res.D = &d
	}
	return res, nil
}

// Synthesize generates noisy measurements of every component at times.
// sigma is the standard deviation of additive Gaussian noise; negative
// draws are clipped to zero.
func (n *Network) Synthesize(values map[string]float64, times []float64, sigma float64, rng *rand.Rand) (*dataset.Concentrations, error) {
	z, err := n.Predict(values, times)
	if err != nil {
		return nil, err
	}
	if sigma > 0 {
		r, c := z.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				z.Set(i, j, math.Max(0, z.At(i, j)+sigma*rng.NormFloat64()))
			}
		}
	}
	return &dataset.Concentrations{
		Key:        "time",
		Index:      append([]float64(nil), times...),
		Components: n.Components(),
		Values:     z,
	}, nil
}

// SynthesizeAbsorbance generates a noisy absorbance matrix at times over
// every wavelength of the attached spectra.
func (n *Network) SynthesizeAbsorbance(values map[string]float64, times []float64, sigma float64, rng *rand.Rand) (*dataset.Absorbance, error) {
	if n.spectra == nil {
		return nil, estim.Inputf("network", "absorbance synthesis needs pure-component spectra")
	}
	d, err := n.predictAbsorbance(values, times, n.spectra.Values)
	if err != nil {
		return nil, err
	}
	if sigma > 0 {
		r, c := d.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				d.Set(i, j, d.At(i, j)+sigma*rng.NormFloat64())
			}
		}
	}
	return &dataset.Absorbance{
		Times:       append([]float64(nil), times...),
		Wavelengths: append([]float64(nil), n.spectra.Index...),
		Values:      d,
	}, nil
}
