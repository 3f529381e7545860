// Package survival implements the discrete survival-time models fitted to
// retention data: the shifted beta-geometric model (sBG) and its
// beta-discrete-Weibull generalization (BdW). Both expose a closed-form
// survival function S(t) over two (sBG) or three (BdW) positive shape
// parameters and the per-period log-likelihood of aggregated cohort data.
package survival

import (
	"math"
	"math/rand"

	"github.com/Delminho/ltv-models-sbg-bdw/internal/cohort"
)

// Model is the contract shared by the two variants. Parameter vectors are
// positional, ordered as ParamNames.
type Model interface {
	Name() string
	ParamNames() []string
	// Bounds returns the feasible [lower, upper] box per parameter.
	// Likelihood evaluation outside the box yields -Inf, never a panic.
	Bounds() [][2]float64
	// DefaultMethod names the optimization method used when the caller does
	// not override it.
	DefaultMethod() string
	// InitialParams draws a fresh random starting point, uniform in (0, 1]
	// per parameter. Called again for every optimization attempt.
	InitialParams(rng *rand.Rand) []float64
	// Survival returns S(t), the fraction still active at period t.
	// S(0) = 1 by definition.
	Survival(t int, params []float64) float64
	// LogLikelihood evaluates the aggregated per-period likelihood. Infeasible
	// parameter regions and degenerate period probabilities return -Inf so the
	// minimizer treats them as unbounded cost.
	LogLikelihood(params []float64, stats *cohort.PeriodStats) float64
}

func drawInitial(rng *rand.Rand, n int) []float64 {
	params := make([]float64, n)
	for i := range params {
		params[i] = 1 - rng.Float64()
	}
	return params
}

func inBounds(params []float64, bounds [][2]float64) bool {
	if len(params) != len(bounds) {
		return false
	}
	for i, p := range params {
		if p < bounds[i][0] || p > bounds[i][1] {
			return false
		}
	}
	return true
}

// periodLogLikelihood sums death and censoring contributions over the
// observed periods: deaths during period t weight log(S(t-1)-S(t)), customers
// still active at their cohort's last observed period weight log(S(t)).
func periodLogLikelihood(s func(int) float64, stats *cohort.PeriodStats) float64 {
	var ll float64
	prev := s(0)
	for t := 1; t <= stats.MaxPeriod(); t++ {
		cur := s(t)
		if d := stats.Deaths[t]; d > 0 {
			p := prev - cur
			if p <= 0 {
				return math.Inf(-1)
			}
			ll += d * math.Log(p)
		}
		if c := stats.Censored[t]; c > 0 {
			if cur <= 0 {
				return math.Inf(-1)
			}
			ll += c * math.Log(cur)
		}
		prev = cur
	}
	return ll
}
