package sensitivity

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/san-kum/kinest/internal/estim"
	"gonum.org/v1/gonum/mat"
)

func threeParams(t *testing.T) estim.ParameterSet {
	t.Helper()
	return estim.MustParameterSet(
		estim.Parameter{Name: "k1", Value: 1, Lower: 0, Upper: 2},
		estim.Parameter{Name: "k2", Value: 1, Lower: 0, Upper: 4},
		estim.Parameter{Name: "k3", Value: 1, Lower: 0, Upper: 8},
	)
}

func TestExtract_Defaults(t *testing.T) {
	h := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 2,
	})

	m, err := Extract(h, threeParams(t), Scaling{})
	if err != nil {
		t.Fatal(err)
	}

	want := []float64{500, 500, 1000}
	for i, w := range want {
		if math.Abs(m.Scores[i]-w) > 1e-9 {
			t.Errorf("score[%d] = %f, want %f", i, m.Scores[i], w)
		}
	}
	if m.H.At(2, 2) != 2 {
		t.Error("unscaled block was modified")
	}
}

func TestExtract_TrailingRows(t *testing.T) {
	// two state degrees of freedom followed by two parameters
	h := mat.NewDense(4, 4, []float64{
		9, 9, 9, 9,
		9, 9, 9, 9,
		3, 0, 1, 0,
		4, 1, 0, 1,
	})
	ps := estim.MustParameterSet(
		estim.Parameter{Name: "a", Value: 1, Lower: 0, Upper: 1},
		estim.Parameter{Name: "b", Value: 1, Lower: 0, Upper: 1},
	)

	m, err := Extract(h, ps, Scaling{Params: map[string]float64{"a": 1, "b": 1}, Measurement: 1})
	if err != nil {
		t.Fatal(err)
	}
	r, c := m.H.Dims()
	if r != 2 || c != 4 {
		t.Fatalf("H dims = %dx%d, want 2x4", r, c)
	}
	if math.Abs(m.Scores[0]-5) > 1e-12 {
		t.Errorf("score a = %f, want 5", m.Scores[0])
	}
	if math.Abs(m.Scores[1]-1) > 1e-12 {
		t.Errorf("score b = %f, want 1", m.Scores[1])
	}
}

func TestExtract_Linearity(t *testing.T) {
	h := mat.NewDense(3, 3, []float64{
		2, 1, 0,
		1, 3, 1,
		0, 1, 4,
	})
	ps := threeParams(t)
	base := Scaling{Params: map[string]float64{"k1": 0.1, "k2": 0.2, "k3": 0.3}, Measurement: 0.01}

	m1, err := Extract(h, ps, base)
	if err != nil {
		t.Fatal(err)
	}

	for _, f := range []float64{0.5, 2, 7.5} {
		scaled := Scaling{Params: map[string]float64{"k1": 0.1, "k2": 0.2 * f, "k3": 0.3}, Measurement: 0.01}
		m2, err := Extract(h, ps, scaled)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(m2.Scores[1]-f*m1.Scores[1]) > 1e-9*m1.Scores[1]*f {
			t.Errorf("factor %g: score %f, want %f", f, m2.Scores[1], f*m1.Scores[1])
		}
		if m2.Scores[0] != m1.Scores[0] || m2.Scores[2] != m1.Scores[2] {
			t.Errorf("factor %g changed other scores", f)
		}
	}
}

func TestExtract_SkipsFixed(t *testing.T) {
	ps := threeParams(t).Fix("k1")
	h := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		2, 3, 0,
		0, 4, 5,
	})
	m, err := Extract(h, ps, Scaling{Params: map[string]float64{"k2": 1, "k3": 1}, Measurement: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Names) != 2 || m.Names[0] != "k2" || m.Names[1] != "k3" {
		t.Fatalf("unexpected names %v", m.Names)
	}
	if s, _ := m.Score("k2"); math.Abs(s-2) > 1e-12 {
		t.Errorf("score k2 = %f, want 2", s)
	}
	if s, _ := m.Score("k3"); math.Abs(s-5) > 1e-12 {
		t.Errorf("score k3 = %f, want 5", s)
	}
}

func TestExtract_Errors(t *testing.T) {
	ps := threeParams(t)
	square := mat.NewDense(3, 3, nil)

	tests := []struct {
		name string
		h    mat.Matrix
		ps   estim.ParameterSet
		sc   Scaling
		want error
	}{
		{"missing scaling", square, ps, Scaling{Params: map[string]float64{"k1": 1}}, estim.ErrConfiguration},
		{"negative measurement", square, ps, Scaling{Measurement: -1}, estim.ErrConfiguration},
		{"zero param scaling", square, ps, Scaling{Params: map[string]float64{"k1": 0, "k2": 1, "k3": 1}}, estim.ErrConfiguration},
		{"non-square", mat.NewDense(3, 4, nil), ps, Scaling{}, estim.ErrInvalidInput},
		{"too small", mat.NewDense(2, 2, nil), ps, Scaling{}, estim.ErrInvalidInput},
		{"nil", nil, ps, Scaling{}, estim.ErrInvalidInput},
		{"all fixed", square, ps.Fix("k1", "k2", "k3"), Scaling{}, estim.ErrConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(tt.h, tt.ps, tt.sc)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestResolve_UsesParameterUncertainty(t *testing.T) {
	ps := estim.MustParameterSet(
		estim.Parameter{Name: "k1", Value: 1, Lower: 0, Upper: 2, Uncertainty: 0.09},
		estim.Parameter{Name: "k2", Value: 1, Lower: 0, Upper: 2},
	)
	params, meas, err := Scaling{}.Resolve(ps)
	if err != nil {
		t.Fatal(err)
	}
	if params["k1"] != 0.09 || params["k2"] != DefaultParamScaling {
		t.Errorf("unexpected factors %v", params)
	}
	if meas != DefaultMeasurementScaling {
		t.Errorf("measurement scaling = %g", meas)
	}
}

func TestResolve_WarnsOnScalingLogger(t *testing.T) {
	var buf bytes.Buffer
	sc := Scaling{Logger: slog.New(slog.NewTextHandler(&buf, nil)).With("seed", 3)}

	if _, _, err := sc.Resolve(threeParams(t)); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{"no measurement scaling provided", "uncertainties derived from bounds", "seed=3"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
