// Package fitter drives maximum-likelihood fitting of a survival model over
// normalized cohort data and projects the fitted retention curve forward.
package fitter

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/Delminho/ltv-models-sbg-bdw/internal/cohort"
	"github.com/Delminho/ltv-models-sbg-bdw/internal/survival"
)

// ErrOptimizationFailed is returned once the retry budget is exhausted
// without convergence to a feasible parameter vector. It is terminal: the
// caller may retry with another method or more retries, the fitter will not.
var ErrOptimizationFailed = errors.New("optimization failed")

// Config tunes one Fitter.
type Config struct {
	// Method overrides the model's default optimization method.
	Method string
	// MaxRetries bounds fresh-random-start retries after the first attempt.
	MaxRetries int
	// MaxIterations caps optimizer iterations per attempt.
	MaxIterations int
	// Seed seeds the initial-parameter source; 0 derives one from the clock.
	Seed int64
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:    8,
		MaxIterations: 2000,
	}
}

// Fitter fits one survival model. Each Fit call is independent and keeps no
// state besides the random source, which makes a Fitter not safe for
// concurrent use: create one per goroutine.
type Fitter struct {
	model survival.Model
	min   Minimizer
	rng   *rand.Rand
	cfg   Config
}

// New builds a Fitter backed by the gonum optimizer.
func New(model survival.Model, cfg Config) *Fitter {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultConfig().MaxIterations
	}
	return NewWithMinimizer(model, &GonumMinimizer{MaxIterations: cfg.MaxIterations}, cfg)
}

// NewWithMinimizer substitutes another optimizer implementation.
func NewWithMinimizer(model survival.Model, min Minimizer, cfg Config) *Fitter {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Fitter{
		model: model,
		min:   min,
		rng:   rand.New(rand.NewSource(seed)),
		cfg:   cfg,
	}
}

// FitResult is the immutable outcome of one successful fit.
type FitResult struct {
	Model  string
	Params map[string]float64
	// RetentionCurve holds S(0)..S(periods) under the fitted parameters;
	// RetentionCurve[0] is always 1.
	RetentionCurve []float64
	// Loss is the negative log-likelihood at the optimum.
	Loss float64
}

// Fit normalizes data, maximizes the model likelihood over it, and projects
// the fitted survival function through the requested number of periods.
// Malformed data fails fast with cohort.ErrInvalidInput; exhausted retries
// fail with ErrOptimizationFailed. No partial results are returned.
func (f *Fitter) Fit(data cohort.Dataset, periods int) (*FitResult, error) {
	if periods < 0 {
		return nil, fmt.Errorf("%w: periods must not be negative, got %d", cohort.ErrInvalidInput, periods)
	}
	stats, err := data.Aggregate()
	if err != nil {
		return nil, err
	}

	objective := func(x []float64) float64 {
		return -f.model.LogLikelihood(x, stats)
	}
	method := f.cfg.Method
	if method == "" {
		method = f.model.DefaultMethod()
	}

	attempts := 1 + f.cfg.MaxRetries
	for i := 0; i < attempts; i++ {
		res, err := f.min.Minimize(objective, f.model.InitialParams(f.rng), method)
		if err != nil {
			return nil, err
		}
		if !res.Converged || !feasible(res.Params, f.model.Bounds()) {
			continue
		}
		return f.project(res, periods), nil
	}
	return nil, fmt.Errorf("%w: %s did not converge after %d attempt(s) with method %q",
		ErrOptimizationFailed, f.model.Name(), attempts, method)
}

func (f *Fitter) project(res MinimizeResult, periods int) *FitResult {
	names := f.model.ParamNames()
	params := make(map[string]float64, len(names))
	for i, name := range names {
		params[name] = res.Params[i]
	}
	curve := make([]float64, periods+1)
	for t := range curve {
		curve[t] = f.model.Survival(t, res.Params)
	}
	return &FitResult{
		Model:          f.model.Name(),
		Params:         params,
		RetentionCurve: curve,
		Loss:           res.Value,
	}
}

// feasible rejects parameter vectors outside the bounds box or pinned at its
// edges; an optimum on the boundary means the search degenerated rather than
// converged, so the attempt is retried.
func feasible(params []float64, bounds [][2]float64) bool {
	if len(params) != len(bounds) {
		return false
	}
	for i, p := range params {
		lo, hi := bounds[i][0], bounds[i][1]
		if p <= 0 || p < lo || p > hi {
			return false
		}
		if nearlyEqual(p, lo) || nearlyEqual(p, hi) {
			return false
		}
	}
	return true
}

func nearlyEqual(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	tol := 1e-8 + 1e-5*b
	if b < 0 {
		tol = 1e-8 - 1e-5*b
	}
	return diff <= tol
}
