// Package cohort normalizes raw retention observations into the per-period
// survival statistics the likelihood functions are computed over.
package cohort

import (
	"errors"
	"fmt"
)

// ErrInvalidInput marks malformed observation data. It is surfaced before any
// optimization attempt and is never retried.
var ErrInvalidInput = errors.New("invalid input data")

// Kind discriminates the two accepted dataset shapes.
type Kind int

const (
	// KindFlat is a single retention curve, raw counts or fractions.
	KindFlat Kind = iota
	// KindCohorts is a list of independent cohort count series, possibly of
	// different lengths (right-censored at different periods).
	KindCohorts
)

// Dataset is the tagged input variant, resolved once at this boundary: the
// likelihood code only ever sees the aggregated PeriodStats. Construct with
// FlatCurve or CohortList; the zero value is an empty flat curve.
type Dataset struct {
	kind    Kind
	flat    []float64
	cohorts [][]float64
}

// FlatCurve wraps a single ordered retention curve. Values larger than 1 in
// the first position are interpreted as raw counts and normalized so the
// starting cohort becomes 1.0; values in (0, 1] are used as fractions
// directly, with an implicit leading 1.0 when the first value is below 1.
func FlatCurve(values []float64) Dataset {
	return Dataset{kind: KindFlat, flat: values}
}

// CohortList wraps multiple cohorts' absolute counts over consecutive
// periods. Cohorts may have different lengths. A list with exactly one cohort
// is treated identically to the flat-curve path.
func CohortList(series [][]float64) Dataset {
	return Dataset{kind: KindCohorts, cohorts: series}
}

// Kind reports which input shape this dataset was constructed from.
func (d Dataset) Kind() Kind { return d.kind }

// Validate checks the observation invariants: at least two elements per
// series (no transition is observable otherwise), no negative values, and
// non-increasing series (a retention curve cannot grow). All violations wrap
// ErrInvalidInput.
func (d Dataset) Validate() error {
	switch d.kind {
	case KindFlat:
		return validateSeries(d.flat, "curve")
	case KindCohorts:
		if len(d.cohorts) == 0 {
			return fmt.Errorf("%w: no cohorts given", ErrInvalidInput)
		}
		for i, series := range d.cohorts {
			if err := validateSeries(series, fmt.Sprintf("cohort %d", i)); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown dataset kind %d", ErrInvalidInput, d.kind)
	}
}

func validateSeries(series []float64, label string) error {
	if len(series) < 2 {
		return fmt.Errorf("%w: %s has %d element(s), need at least 2", ErrInvalidInput, label, len(series))
	}
	for t, v := range series {
		if v < 0 {
			return fmt.Errorf("%w: %s has negative value %g at period %d", ErrInvalidInput, label, v, t)
		}
		if t > 0 && v > series[t-1] {
			return fmt.Errorf("%w: %s increases at period %d (%g > %g)", ErrInvalidInput, label, t, v, series[t-1])
		}
	}
	return nil
}

// normalized validates the dataset and returns the canonical cohort list:
// every series carries its period-0 value explicitly. Flat input (and a
// single-cohort list, which is routed through the same path) is normalized to
// fractions with a leading 1.0.
func (d Dataset) normalized() ([][]float64, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	if d.kind == KindCohorts && len(d.cohorts) > 1 {
		out := make([][]float64, len(d.cohorts))
		for i, series := range d.cohorts {
			out[i] = append([]float64(nil), series...)
		}
		return out, nil
	}

	flat := d.flat
	if d.kind == KindCohorts {
		flat = d.cohorts[0]
	}

	var curve []float64
	switch first := flat[0]; {
	case first > 1:
		// Raw counts: divide through so period 0 becomes 1.0.
		curve = make([]float64, len(flat))
		for t, v := range flat {
			curve[t] = v / first
		}
	case first == 1:
		curve = append([]float64(nil), flat...)
	default:
		// Fractions without the starting cohort: prepend period 0.
		curve = append([]float64{1}, flat...)
	}
	return [][]float64{curve}, nil
}
