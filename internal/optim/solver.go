// Package optim fits model parameters by weighted nonlinear least squares.
package optim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/san-kum/kinest/internal/estim"
	"github.com/san-kum/kinest/internal/metrics"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// Problem is a model that can be fit by least squares. Observations and
// Predictions must use the same ordering.
type Problem interface {
	estim.Model
	Observations(variances map[string]float64) (y, w []float64, err error)
	Predictions(values map[string]float64) ([]float64, error)
	// Penalty returns extra residuals from active auxiliary objectives.
	Penalty(values map[string]float64) []float64
	Results(values map[string]float64) (*estim.Results, error)
}

type HessianForm string

const (
	// Reduced is the Gauss-Newton Hessian SᵀWS over the free parameters.
	Reduced HessianForm = "reduced"
	// Augmented is [[W, WS], [SᵀW, SᵀWS]] over every observation followed
	// by the free parameters.
	Augmented HessianForm = "augmented"
)

type Options struct {
	Method        string
	MaxIterations int
	GradTol       float64
	// Multistart is the number of grid points per free parameter used to
	// pick a starting point. Values below 2 disable the grid.
	Multistart int
	Hessian    HessianForm
	// Step is the finite-difference step for gradients and Jacobians.
	Step float64
}

func DefaultOptions() Options {
	return Options{
		Method:        "lbfgs",
		MaxIterations: 200,
		GradTol:       1e-8,
		Hessian:       Reduced,
		Step:          1e-6,
	}
}

// Methods lists the supported optimizer names.
func Methods() []string {
	return []string{"nelder-mead", "lbfgs", "bfgs", "gradient-descent"}
}

func newMethod(name string) (optimize.Method, bool, error) {
	switch strings.ToLower(name) {
	case "nelder-mead", "neldermead":
		return &optimize.NelderMead{}, false, nil
	case "", "lbfgs":
		return &optimize.LBFGS{}, true, nil
	case "bfgs":
		return &optimize.BFGS{}, true, nil
	case "gradient-descent", "gd":
		return &optimize.GradientDescent{}, true, nil
	}
	return nil, false, estim.Configf("solver", "unknown method: %s", name)
}

// LeastSquares implements estim.HessianSolver for any Problem.
type LeastSquares struct {
	opts   Options
	Logger *slog.Logger
}

func NewLeastSquares(opts Options) (*LeastSquares, error) {
	if _, _, err := newMethod(opts.Method); err != nil {
		return nil, err
	}
	switch opts.Hessian {
	case "":
		opts.Hessian = Reduced
	case Reduced, Augmented:
	default:
		return nil, estim.Configf("solver", "unknown hessian form: %s", opts.Hessian)
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultOptions().MaxIterations
	}
	if opts.Step <= 0 {
		opts.Step = DefaultOptions().Step
	}
	return &LeastSquares{opts: opts}, nil
}

func (s *LeastSquares) Options() Options { return s.opts }

func (s *LeastSquares) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *LeastSquares) Solve(ctx context.Context, m estim.Model, opts estim.SolveOptions) (*estim.Results, error) {
	fit, err := s.fit(ctx, m, opts)
	if err != nil {
		return nil, err
	}
	return fit.results, nil
}

func (s *LeastSquares) SolveHessian(ctx context.Context, m estim.Model, opts estim.SolveOptions) (*mat.Dense, *estim.Results, error) {
	fit, err := s.fit(ctx, m, opts)
	if err != nil {
		return nil, nil, err
	}
	if len(fit.free) == 0 {
		return nil, nil, estim.Configf("solver", "no free parameters for the hessian")
	}
	h, err := s.hessian(fit)
	if err != nil {
		return nil, nil, err
	}
	return h, fit.results, nil
}

type fitState struct {
	prob    Problem
	free    []estim.Parameter
	base    map[string]float64
	y, w    []float64
	theta   []float64
	results *estim.Results
}

func (f *fitState) values(theta []float64) map[string]float64 {
	vals := make(map[string]float64, len(f.base))
	for k, v := range f.base {
		vals[k] = v
	}
	for i, p := range f.free {
		vals[p.Name] = theta[i]
	}
	return vals
}

// residuals returns sqrt(w)·(pred-y) followed by any penalty terms.
func (f *fitState) residuals(theta []float64) ([]float64, error) {
	vals := f.values(theta)
	pred, err := f.prob.Predictions(vals)
	if err != nil {
		return nil, err
	}
	if len(pred) != len(f.y) {
		return nil, estim.Inputf("solver", "got %d predictions for %d observations", len(pred), len(f.y))
	}
	r := make([]float64, len(pred), len(pred)+len(f.free))
	for i := range pred {
		r[i] = math.Sqrt(f.w[i]) * (pred[i] - f.y[i])
	}
	return append(r, f.prob.Penalty(vals)...), nil
}

func (s *LeastSquares) fit(ctx context.Context, m estim.Model, opts estim.SolveOptions) (*fitState, error) {
	prob, ok := m.(Problem)
	if !ok {
		return nil, estim.Configf("solver", "model %T does not expose residuals", m)
	}
	y, w, err := prob.Observations(opts.Variances)
	if err != nil {
		return nil, err
	}
	if len(y) == 0 {
		return nil, estim.Inputf("solver", "no observations")
	}

	ps := prob.Parameters()
	f := &fitState{prob: prob, free: ps.Free(), base: ps.Values(), y: y, w: w}
	f.theta = make([]float64, len(f.free))
	for i, p := range f.free {
		f.theta[i] = p.Value
	}

	start := time.Now()
	stats := estim.SolverStats{Method: s.opts.Method}

	if len(f.free) > 0 {
		if err := s.minimize(ctx, f, &stats); err != nil {
			return nil, err
		}
		if err := prob.SetParameters(ps.WithValues(f.values(f.theta))); err != nil {
			return nil, fmt.Errorf("write estimates: %w", err)
		}
	} else {
		stats.Status = "NoFreeParameters"
	}
	stats.Runtime = time.Since(start)

	vals := f.values(f.theta)
	res, err := prob.Results(vals)
	if err != nil {
		return nil, err
	}
	pred, err := prob.Predictions(vals)
	if err != nil {
		return nil, err
	}
	res.Metrics = metrics.Evaluate(pred, y, w, metrics.Default()...)
	res.Objective = res.Metrics["wsse"]
	res.MSE = res.Metrics["mse"]
	res.NumData = len(y)
	res.SigmaSq = opts.Variances
	res.Stats = stats
	f.results = res

	s.logger().Debug("fit done", "method", stats.Method, "status", stats.Status,
		"iterations", stats.Iterations, "objective", res.Objective, "runtime", stats.Runtime)
	return f, nil
}

func (s *LeastSquares) minimize(ctx context.Context, f *fitState, stats *estim.SolverStats) error {
	b := newBounds(f.free)
	var evalErr error

	objective := func(u []float64) float64 {
		r, err := f.residuals(b.toTheta(u))
		if err != nil {
			if evalErr == nil {
				evalErr = err
			}
			return math.Inf(1)
		}
		return sumSquares(r)
	}

	if s.opts.Multistart >= 2 {
		names := make([]string, len(f.free))
		ranges := make([][]float64, len(f.free))
		for i, p := range f.free {
			names[i] = p.Name
			ranges[i] = Linspace(p.Lower, p.Upper, s.opts.Multistart)
		}
		grid := NewGridSearch(names, ranges)
		best, val, err := grid.Search(ctx, func(params map[string]float64) (float64, error) {
			theta := make([]float64, len(f.free))
			for i, p := range f.free {
				theta[i] = params[p.Name]
			}
			r, err := f.residuals(theta)
			if err != nil {
				return 0, err
			}
			return sumSquares(r), nil
		})
		if err != nil {
			return err
		}
		stats.Multistarts = grid.Evaluated()
		if best != nil && val < objective(b.toU(f.theta)) {
			for i, p := range f.free {
				f.theta[i] = best[p.Name]
			}
		}
	}

	method, needsGrad, _ := newMethod(s.opts.Method)
	problem := optimize.Problem{
		Func: objective,
		Status: func() (optimize.Status, error) {
			if err := ctx.Err(); err != nil {
				return optimize.Failure, err
			}
			return optimize.NotTerminated, nil
		},
	}
	if needsGrad {
		step := s.opts.Step
		problem.Grad = func(grad, u []float64) {
			fd.Gradient(grad, objective, u, &fd.Settings{Formula: fd.Central, Step: step})
		}
	}
	settings := &optimize.Settings{
		MajorIterations:   s.opts.MaxIterations,
		GradientThreshold: s.opts.GradTol,
	}

	u0 := b.toU(f.theta)
	result, err := optimize.Minimize(problem, u0, settings, method)
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	if evalErr != nil {
		return evalErr
	}
	if result == nil {
		return err
	}
	if err != nil {
		// iteration limits and stalled line searches still leave a usable
		// location
		s.logger().Warn("optimizer stopped early", "status", result.Status, "err", err)
	}
	if math.IsInf(result.F, 0) || math.IsNaN(result.F) {
		return errors.Join(errors.New("optimizer found no finite objective"), err)
	}

	f.theta = b.toTheta(result.X)
	stats.Status = result.Status.String()
	stats.Iterations = result.MajorIterations
	stats.FuncEvals = result.FuncEvaluations
	return nil
}

func sumSquares(r []float64) float64 {
	var sum float64
	for _, v := range r {
		sum += v * v
	}
	return sum
}

// hessian builds the requested Hessian form from the observation Jacobian
// S = ∂pred/∂θ at the fitted parameters.
func (s *LeastSquares) hessian(f *fitState) (*mat.Dense, error) {
	m, p := len(f.y), len(f.free)
	var evalErr error
	pred := func(dst, theta []float64) {
		out, err := f.prob.Predictions(f.values(theta))
		if err != nil {
			evalErr = err
			return
		}
		copy(dst, out)
	}

	sens := mat.NewDense(m, p, nil)
	fd.Jacobian(sens, pred, f.theta, &fd.JacobianSettings{Formula: fd.Central, Step: s.opts.Step})
	if evalErr != nil {
		return nil, evalErr
	}

	// WS
	ws := mat.DenseCopyOf(sens)
	for i := 0; i < m; i++ {
		for j := 0; j < p; j++ {
			ws.Set(i, j, f.w[i]*sens.At(i, j))
		}
	}
	var stws mat.Dense
	stws.Mul(sens.T(), ws)

	if s.opts.Hessian != Augmented {
		return &stws, nil
	}

	h := mat.NewDense(m+p, m+p, nil)
	for i := 0; i < m; i++ {
		h.Set(i, i, f.w[i])
	}
	h.Slice(0, m, m, m+p).(*mat.Dense).Copy(ws)
	h.Slice(m, m+p, 0, m).(*mat.Dense).Copy(ws.T())
	h.Slice(m, m+p, m, m+p).(*mat.Dense).Copy(&stws)
	return h, nil
}
