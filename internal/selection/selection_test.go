package selection

import (
	"context"
	"errors"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/san-kum/kinest/internal/estim"
)

type step struct {
	obj, mse float64
}

func fakeFit(steps []step, n int, calls *int) FitFunc {
	return func(ctx context.Context, free []string) (*estim.Results, error) {
		*calls++
		s := steps[len(free)-1]
		return &estim.Results{Objective: s.obj, MSE: s.mse, NumData: n}, nil
	}
}

func TestWu_FullModelWins(t *testing.T) {
	g := NewWithT(t)
	calls := 0
	fit := fakeFit([]step{{50, 0.5}, {10, 0.1}, {9, 0.09}}, 100, &calls)

	sel, err := NewSelector(Wu{}).Select(context.Background(), []string{"k2", "k1", "k3"}, fit)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(sel.K).To(Equal(3))
	g.Expect(sel.Estimate).To(Equal([]string{"k2", "k1", "k3"}))
	g.Expect(sel.Fix).To(BeEmpty())
	g.Expect(calls).To(Equal(3))
}

func TestWu_PicksElbow(t *testing.T) {
	g := NewWithT(t)
	calls := 0
	fit := fakeFit([]step{{50, 0.5}, {10, 0.1}, {9.99, 0.0999}}, 100, &calls)

	sel, err := NewSelector(Wu{}).Select(context.Background(), []string{"a", "b", "c"}, fit)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(sel.K).To(Equal(2))
	g.Expect(sel.Estimate).To(Equal([]string{"a", "b"}))
	g.Expect(sel.Fix).To(Equal([]string{"c"}))
	g.Expect(sel.Scores[1]).To(BeNumerically("<", 0))
	g.Expect(sel.Scores[2]).To(BeZero())
}

func TestThreshold_StopsEarly(t *testing.T) {
	g := NewWithT(t)
	calls := 0
	fit := fakeFit([]step{{10, 1}, {5, 0.5}, {4.9, 0.49}, {4.8, 0.48}}, 10, &calls)

	sel, err := NewSelector(Threshold{Threshold: 0.05}).Select(context.Background(), []string{"a", "b", "c", "d"}, fit)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(sel.K).To(Equal(2))
	g.Expect(sel.Fix).To(Equal([]string{"c", "d"}))
	g.Expect(calls).To(Equal(3))
	g.Expect(sel.Curve).To(HaveLen(3))
}

func TestFTest(t *testing.T) {
	g := NewWithT(t)
	calls := 0
	fit := fakeFit([]step{{100, 2}, {20, 0.4}, {19.9, 0.398}}, 50, &calls)

	sel, err := NewSelector(FTest{Alpha: 0.05}).Select(context.Background(), []string{"a", "b", "c"}, fit)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(sel.K).To(Equal(2))
	g.Expect(sel.Scores[0]).To(BeNumerically("<", 0.05))
}

func TestSelect_Errors(t *testing.T) {
	fitErr := errors.New("diverged")
	failing := func(ctx context.Context, free []string) (*estim.Results, error) {
		return nil, fitErr
	}

	tests := []struct {
		name    string
		ranking []string
		fit     FitFunc
		want    error
	}{
		{"empty ranking", nil, failing, estim.ErrConfiguration},
		{"duplicate", []string{"a", "a"}, failing, estim.ErrConfiguration},
		{"fit failure", []string{"a"}, failing, fitErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSelector(nil).Select(context.Background(), tt.ranking, tt.fit)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSelect_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, err := NewSelector(nil).Select(ctx, []string{"a"}, fakeFit([]step{{1, 1}}, 1, &calls))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Errorf("fit called %d times after cancel", calls)
	}
}

func TestNewCriterion(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		alpha     float64
		wantErr   bool
	}{
		{"wu", 0, 0, false},
		{"", 0, 0, false},
		{"threshold", 0.1, 0, false},
		{"threshold", 0, 0, true},
		{"ftest", 0, 0.05, false},
		{"ftest", 0, 1, true},
		{"bogus", 0, 0, true},
	}

	for _, tt := range tests {
		c, err := NewCriterion(tt.name, tt.threshold, tt.alpha)
		if tt.wantErr {
			if !errors.Is(err, estim.ErrConfiguration) {
				t.Errorf("%q: expected configuration error, got %v", tt.name, err)
			}
			continue
		}
		if err != nil || c == nil {
			t.Errorf("%q: unexpected error %v", tt.name, err)
		}
	}
}
