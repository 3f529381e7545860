package survival

import (
	"math"
	"math/rand"

	"github.com/Delminho/ltv-models-sbg-bdw/internal/cohort"
)

// SBG is the shifted beta-geometric model: every customer churns each period
// with a constant geometric probability of their own, drawn once from a
// Beta(alpha, beta) distribution across the population.
type SBG struct{}

func NewSBG() SBG { return SBG{} }

func (SBG) Name() string         { return "sbg" }
func (SBG) ParamNames() []string { return []string{"alpha", "beta"} }

func (SBG) Bounds() [][2]float64 {
	return [][2]float64{{1e-4, 1e4}, {1e-4, 1e4}}
}

func (SBG) DefaultMethod() string { return "nelder-mead" }

func (SBG) InitialParams(rng *rand.Rand) []float64 { return drawInitial(rng, 2) }

// Survival computes S(t) = prod_{i=1..t} (beta+i-1) / (alpha+beta+i-1).
func (SBG) Survival(t int, params []float64) float64 {
	alpha, beta := params[0], params[1]
	s := 1.0
	for i := 1; i <= t; i++ {
		s *= (beta + float64(i) - 1) / (alpha + beta + float64(i) - 1)
	}
	return s
}

func (m SBG) LogLikelihood(params []float64, stats *cohort.PeriodStats) float64 {
	if !inBounds(params, m.Bounds()) {
		return math.Inf(-1)
	}
	// S is a running product; cache per call instead of recomputing from 1.
	curve := make([]float64, stats.MaxPeriod()+1)
	curve[0] = 1
	alpha, beta := params[0], params[1]
	for t := 1; t < len(curve); t++ {
		curve[t] = curve[t-1] * (beta + float64(t) - 1) / (alpha + beta + float64(t) - 1)
	}
	return periodLogLikelihood(func(t int) float64 { return curve[t] }, stats)
}
