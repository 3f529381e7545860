package cohort

// PeriodStats is the canonical aggregated representation: for each period t,
// the number still active entering t, the number lost during t, and the
// number right-censored at t (still active in their cohort's last observed
// period). Counts are float64 so a normalized fractional curve aggregates the
// same way as absolute cohort counts.
type PeriodStats struct {
	AtRisk   []float64
	Deaths   []float64
	Censored []float64
}

// MaxPeriod returns the last observed period index.
func (p *PeriodStats) MaxPeriod() int { return len(p.Deaths) - 1 }

// Aggregate converts the dataset into PeriodStats, summing across cohorts
// aligned at period index. Cohort i contributes deaths for periods
// 1..len_i-1 and a censoring mass at its final observed period.
//
// Invariant, also covering staggered cohort ends:
// AtRisk[t+1] = AtRisk[t] - Deaths[t+1] - Censored[t].
func (d Dataset) Aggregate() (*PeriodStats, error) {
	series, err := d.normalized()
	if err != nil {
		return nil, err
	}

	maxLen := 0
	for _, s := range series {
		if len(s) > maxLen {
			maxLen = len(s)
		}
	}

	stats := &PeriodStats{
		AtRisk:   make([]float64, maxLen),
		Deaths:   make([]float64, maxLen),
		Censored: make([]float64, maxLen),
	}
	for _, s := range series {
		for t, v := range s {
			stats.AtRisk[t] += v
			if t > 0 {
				stats.Deaths[t] += s[t-1] - v
			}
		}
		stats.Censored[len(s)-1] += s[len(s)-1]
	}
	return stats, nil
}
