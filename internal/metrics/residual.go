// Package metrics accumulates goodness-of-fit statistics over paired
// predictions and measurements.
package metrics

import "math"

type Metric interface {
	Name() string
	Observe(predicted, measured, weight float64)
	Value() float64
	Reset()
}

// WeightedSSE is Σ w·(pred-meas)², the least-squares objective.
type WeightedSSE struct {
	sum float64
}

func NewWeightedSSE() *WeightedSSE { return &WeightedSSE{} }

func (m *WeightedSSE) Name() string { return "wsse" }

func (m *WeightedSSE) Observe(predicted, measured, weight float64) {
	d := predicted - measured
	m.sum += weight * d * d
}

func (m *WeightedSSE) Value() float64 { return m.sum }

func (m *WeightedSSE) Reset() { m.sum = 0 }

// MSE is the unweighted mean squared error.
type MSE struct {
	sum     float64
	samples int
}

func NewMSE() *MSE { return &MSE{} }

func (m *MSE) Name() string { return "mse" }

func (m *MSE) Observe(predicted, measured, _ float64) {
	d := predicted - measured
	m.sum += d * d
	m.samples++
}

func (m *MSE) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.sum / float64(m.samples)
}

func (m *MSE) Reset() {
	m.sum = 0
	m.samples = 0
}

type MaxAbsError struct {
	max float64
}

func NewMaxAbsError() *MaxAbsError { return &MaxAbsError{} }

func (m *MaxAbsError) Name() string { return "max_abs" }

func (m *MaxAbsError) Observe(predicted, measured, _ float64) {
	m.max = math.Max(m.max, math.Abs(predicted-measured))
}

func (m *MaxAbsError) Value() float64 { return m.max }

func (m *MaxAbsError) Reset() { m.max = 0 }

// Evaluate feeds every pair into each metric after resetting it and returns
// the values keyed by metric name. A nil weights slice means unit weights.
func Evaluate(predicted, measured, weights []float64, ms ...Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		m.Reset()
		for i := range predicted {
			w := 1.0
			if weights != nil {
				w = weights[i]
			}
			m.Observe(predicted[i], measured[i], w)
		}
		out[m.Name()] = m.Value()
	}
	return out
}

// Default returns the metrics reported for every fit.
func Default() []Metric {
	return []Metric{NewWeightedSSE(), NewMSE(), NewMaxAbsError()}
}
