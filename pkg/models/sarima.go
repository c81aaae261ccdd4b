// Package models implements the seasonal ARIMA model used to forecast daily
// counts.
//
// SARIMA(p,d,q)(P,D,Q,s) where:
//   - p: Non-seasonal AutoRegressive order
//   - d: Non-seasonal Differencing order
//   - q: Non-seasonal Moving Average order
//   - P: Seasonal AutoRegressive order
//   - D: Seasonal Differencing order
//   - Q: Seasonal Moving Average order
//   - s: Seasonal period (7 for daily data with a weekly pattern)
//
// A Trainer fits the model and returns an Artifact, a self-contained value
// holding every parameter and state needed to forecast. Artifacts are plain
// data: they can be persisted and reloaded without the Trainer and reproduce
// the same forecasts.
package models

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/HatiCode/ticketcast/pkg/series"
)

const (
	defaultMaxIterations  = 2000
	defaultMaxEvaluations = 20000
	defaultTolerance      = 1e-10
	// convergeWindow is the number of major iterations over which the
	// objective must stop improving by more than the tolerance.
	convergeWindow = 100
)

// Trainer fits SARIMA models with fixed orders by conditional maximum
// likelihood.
//
// The differenced series w = (1-B)^d (1-B^s)^D y is modeled as
//
//	φ(B)Φ(B^s) w_t = θ(B)Θ(B^s) e_t,  e_t ~ N(0, σ²)
//
// The Gaussian likelihood is evaluated conditionally on the first p+P*s
// differenced observations (pre-sample innovations set to zero) with σ²
// concentrated out, and maximized with Nelder-Mead over an unconstrained
// reparameterization that keeps the AR part stationary and the MA part
// invertible.
type Trainer struct {
	Order         Order
	SeasonalOrder SeasonalOrder

	// MaxIterations bounds optimizer major iterations. Zero uses the default.
	MaxIterations int
	// MaxEvaluations bounds objective evaluations. Zero uses the default.
	MaxEvaluations int
	// Tolerance is the absolute and relative objective change below which
	// the optimizer is considered converged. Zero uses the default.
	Tolerance float64

	logger *slog.Logger
}

// NewTrainer creates a Trainer for SARIMA(order)(seasonal).
func NewTrainer(order Order, seasonal SeasonalOrder, logger *slog.Logger) *Trainer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trainer{
		Order:         order,
		SeasonalOrder: seasonal,
		logger:        logger,
	}
}

// Name returns the model identifier, e.g. "sarima(1,1,1)(1,1,1,7)".
func (t *Trainer) Name() string {
	return modelName(t.Order, t.SeasonalOrder)
}

// Fit estimates the model on ds and returns the fitted artifact.
//
// Orders are used as given; they are not searched or checked against the
// data beyond the number of observations they consume. Fit makes a single
// optimization attempt: any termination other than convergence is returned
// as a *ConvergenceError.
func (t *Trainer) Fit(ctx context.Context, ds *series.Dataset) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o, so := t.Order, t.SeasonalOrder
	if err := validateOrders(o, so); err != nil {
		return nil, err
	}
	if !so.active() {
		so.S = 0
	}

	y := ds.Values()
	arLags, maLags, diffLags := lags(o, so)
	nParams := o.P + o.Q + so.P + so.Q

	mean := 0.0
	if o.D == 0 && so.D == 0 {
		mean = stat.Mean(y, nil)
	}

	w := difference(y, differencingPoly(o.D, so.D, so.S))
	for i := range w {
		w[i] -= mean
	}

	nobs := len(w) - arLags
	if len(w) <= max(arLags, maLags) || nobs <= nParams+1 {
		return nil, &ConvergenceError{
			Model: t.Name(),
			Err: fmt.Errorf("%w: %d observations leave %d usable after differencing (%d) and conditioning (%d lags), need more than %d",
				ErrInsufficientData, len(y), max(nobs, 0), diffLags, arLags, nParams+1),
		}
	}

	objective := func(x []float64) float64 {
		p := unpack(x, o, so)
		sse, _ := css(w, expandAR(p.ar, p.sar, so.S), expandMA(p.ma, p.sma, so.S), arLags)
		return concentratedNegLogLik(sse, nobs)
	}

	start := time.Now()
	x := initialParams(w, o, so)
	iterations, evaluations := 0, 0

	if nParams > 0 {
		res, err := optimize.Minimize(optimize.Problem{Func: objective}, x, t.settings(), &optimize.NelderMead{})
		if res != nil {
			iterations = res.Stats.MajorIterations
			evaluations = res.Stats.FuncEvaluations
		}
		if err != nil || res == nil || !converged(res.Status) {
			cerr := &ConvergenceError{
				Model:       t.Name(),
				Iterations:  iterations,
				Evaluations: evaluations,
				Err:         err,
			}
			if res != nil {
				cerr.Status = res.Status.String()
			}
			return nil, cerr
		}
		x = res.X
	}

	params := unpack(x, o, so)
	ar := expandAR(params.ar, params.sar, so.S)
	ma := expandMA(params.ma, params.sma, so.S)
	sse, resid := css(w, ar, ma, arLags)

	sigma2 := sse / float64(nobs)
	if sigma2 <= minVariance {
		if nParams > 0 {
			return nil, &ConvergenceError{
				Model:       t.Name(),
				Iterations:  iterations,
				Evaluations: evaluations,
				Err:         ErrDegenerateFit,
			}
		}
		t.logger.Warn("fitted model has zero residual variance", "model", t.Name(), "observations", ds.Len())
	}
	logLik := -0.5 * float64(nobs) * (math.Log(2*math.Pi) + math.Log(math.Max(sigma2, minVariance)) + 1)
	k := float64(nParams + 1)
	if o.D == 0 && so.D == 0 {
		k++
	}

	a := &Artifact{
		Version:          ArtifactVersion,
		Order:            o,
		SeasonalOrder:    so,
		ARParams:         params.ar,
		MAParams:         params.ma,
		SeasonalARParams: params.sar,
		SeasonalMAParams: params.sma,
		Mean:             mean,
		Sigma2:           sigma2,
		LogLikelihood:    logLik,
		AIC:              -2*logLik + 2*k,
		BIC:              -2*logLik + k*math.Log(float64(nobs)),
		NObs:             ds.Len(),
		Iterations:       iterations,
		LastDate:         ds.LastDate(),
		EndogTail:        tail(y, diffLags),
		DiffTail:         tail(w, arLags),
		ResidTail:        tail(resid, maLags),
	}

	t.logger.Debug("fitted model",
		"model", t.Name(),
		"observations", ds.Len(),
		"iterations", iterations,
		"evaluations", evaluations,
		"log_likelihood", logLik,
		"sigma2", sigma2,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return a, nil
}

func (t *Trainer) settings() *optimize.Settings {
	iters := t.MaxIterations
	if iters <= 0 {
		iters = defaultMaxIterations
	}
	evals := t.MaxEvaluations
	if evals <= 0 {
		evals = defaultMaxEvaluations
	}
	tol := t.Tolerance
	if tol <= 0 {
		tol = defaultTolerance
	}

	return &optimize.Settings{
		MajorIterations: iters,
		FuncEvaluations: evals,
		Converger: &optimize.FunctionConverge{
			Absolute:   tol,
			Relative:   tol,
			Iterations: convergeWindow,
		},
	}
}

// converged reports whether the optimizer stopped at an accepted optimum.
// Iteration, evaluation and runtime limits are failures.
func converged(s optimize.Status) bool {
	switch s {
	case optimize.Success,
		optimize.FunctionConvergence,
		optimize.FunctionThreshold,
		optimize.GradientThreshold,
		optimize.MethodConverge:
		return true
	}
	return false
}

// minVariance keeps the log-likelihood finite for a perfect fit.
const minVariance = 1e-300

func concentratedNegLogLik(sse float64, nobs int) float64 {
	if math.IsNaN(sse) || math.IsInf(sse, 0) {
		return math.MaxFloat64
	}
	n := float64(nobs)
	return 0.5 * n * math.Log(math.Max(sse/n, minVariance))
}

// css computes the conditional residuals of w under the expanded AR and MA
// predictor coefficients, starting at index start. Residuals before start are
// zero. It returns the residual sum of squares and the residuals.
func css(w, ar, ma []float64, start int) (float64, []float64) {
	e := make([]float64, len(w))
	var sse float64
	for t := start; t < len(w); t++ {
		pred := 0.0
		for i, c := range ar {
			pred += c * w[t-i-1]
		}
		for j, c := range ma {
			if t-j-1 < 0 {
				break
			}
			pred += c * e[t-j-1]
		}
		e[t] = w[t] - pred
		sse += e[t] * e[t]
	}
	return sse, e
}

type params struct {
	ar, ma, sar, sma []float64
}

// unpack maps the unconstrained optimizer vector, laid out as
// [ar(p) ma(q) sar(P) sma(Q)], to constrained coefficients.
func unpack(x []float64, o Order, so SeasonalOrder) params {
	i := 0
	next := func(n int) []float64 {
		v := x[i : i+n]
		i += n
		return v
	}
	return params{
		ar:  constrainStationary(next(o.P)),
		ma:  constrainInvertible(next(o.Q)),
		sar: constrainStationary(next(so.P)),
		sma: constrainInvertible(next(so.Q)),
	}
}

// initialParams seeds AR terms from half the sample autocorrelation at the
// matching lags and MA terms at 0.1, then maps them to the unconstrained
// space. Blocks whose seed is not stationary start at zero.
func initialParams(w []float64, o Order, so SeasonalOrder) []float64 {
	x := make([]float64, 0, o.P+o.Q+so.P+so.Q)

	ar := make([]float64, o.P)
	for i := range ar {
		ar[i] = 0.5 * autocorr(w, i+1)
	}
	sar := make([]float64, so.P)
	for i := range sar {
		sar[i] = 0.5 * autocorr(w, (i+1)*so.S)
	}
	ma := make([]float64, o.Q)
	for i := range ma {
		ma[i] = 0.1
	}
	sma := make([]float64, so.Q)
	for i := range sma {
		sma[i] = 0.1
	}

	x = append(x, seedStationary(ar)...)
	x = append(x, seedInvertible(ma)...)
	x = append(x, seedStationary(sar)...)
	x = append(x, seedInvertible(sma)...)
	return x
}

func seedStationary(phi []float64) []float64 {
	if u, ok := unconstrainStationary(phi); ok {
		return u
	}
	return make([]float64, len(phi))
}

func seedInvertible(theta []float64) []float64 {
	neg := make([]float64, len(theta))
	for i, v := range theta {
		neg[i] = -v
	}
	return seedStationary(neg)
}

// autocorr returns the sample autocorrelation of x at lag k.
func autocorr(x []float64, k int) float64 {
	n := len(x)
	if k <= 0 || k >= n {
		return 0
	}
	mean := stat.Mean(x, nil)
	var num, den float64
	for i := range n {
		d := x[i] - mean
		den += d * d
		if i+k < n {
			num += d * (x[i+k] - mean)
		}
	}
	if den == 0 {
		return 0
	}
	return num / den
}

func tail(x []float64, n int) []float64 {
	out := make([]float64, n)
	copy(out, x[len(x)-n:])
	return out
}
