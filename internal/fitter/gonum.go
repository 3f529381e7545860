package fitter

import (
	"fmt"
	"strings"
	"time"

	"gonum.org/v1/gonum/optimize"
)

// GonumMinimizer adapts gonum's optimize package to the Minimizer interface.
// Gradient-based methods rely on gonum's finite-difference gradients since
// the likelihood carries no analytic derivative here.
type GonumMinimizer struct {
	// MaxIterations caps major iterations per attempt. Hitting the cap is
	// reported as Converged=false, feeding the driver's retry path.
	MaxIterations int
	// Runtime caps wall time per attempt. Zero means no limit.
	Runtime time.Duration
}

func (g *GonumMinimizer) Minimize(objective func([]float64) float64, initial []float64, method string) (MinimizeResult, error) {
	m, err := methodByName(method)
	if err != nil {
		return MinimizeResult{}, err
	}

	problem := optimize.Problem{Func: objective}
	settings := &optimize.Settings{
		MajorIterations: g.MaxIterations,
		Runtime:         g.Runtime,
	}

	result, err := optimize.Minimize(problem, initial, settings, m)
	if err != nil {
		// A diverged or numerically broken search is a failed attempt for
		// this starting point, not a caller error.
		return MinimizeResult{Converged: false}, nil
	}
	converged := result.Status != optimize.NotTerminated && result.Status.Err() == nil
	return MinimizeResult{
		Params:    result.X,
		Value:     result.F,
		Converged: converged,
	}, nil
}

func methodByName(name string) (optimize.Method, error) {
	switch strings.ToLower(name) {
	case "", "nelder-mead":
		return &optimize.NelderMead{}, nil
	case "bfgs":
		return &optimize.BFGS{}, nil
	case "lbfgs":
		return &optimize.LBFGS{}, nil
	case "cg":
		return &optimize.CG{}, nil
	case "gradient-descent":
		return &optimize.GradientDescent{}, nil
	default:
		return nil, fmt.Errorf("unknown optimization method: %q", name)
	}
}
