package cohort

import (
	"errors"
	"math"
	"testing"
)

func TestDatasetValidate(t *testing.T) {
	tests := []struct {
		name    string
		data    Dataset
		wantErr bool
	}{
		{
			name: "valid fractional curve",
			data: FlatCurve([]float64{0.8, 0.65, 0.53, 0.46}),
		},
		{
			name: "valid count curve",
			data: FlatCurve([]float64{1000, 800, 650, 530, 460}),
		},
		{
			name:    "single element",
			data:    FlatCurve([]float64{0.8}),
			wantErr: true,
		},
		{
			name:    "increasing curve",
			data:    FlatCurve([]float64{0.5, 0.8}),
			wantErr: true,
		},
		{
			name:    "negative value",
			data:    FlatCurve([]float64{1.0, -0.2}),
			wantErr: true,
		},
		{
			name: "valid cohort list",
			data: CohortList([][]float64{
				{733, 379, 282, 225},
				{519, 286, 194},
				{557, 292},
			}),
		},
		{
			name:    "empty cohort list",
			data:    CohortList(nil),
			wantErr: true,
		},
		{
			name: "cohort with one element",
			data: CohortList([][]float64{
				{733, 379},
				{519},
			}),
			wantErr: true,
		},
		{
			name: "cohort with negative count",
			data: CohortList([][]float64{
				{733, -379},
			}),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.data.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("error %v does not wrap ErrInvalidInput", err)
			}
		})
	}
}

func TestAggregate_FlatFractions(t *testing.T) {
	stats, err := FlatCurve([]float64{0.8, 0.65, 0.53}).Aggregate()
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if got := stats.MaxPeriod(); got != 3 {
		t.Fatalf("MaxPeriod = %d, want 3", got)
	}
	// Implicit leading 1.0: deaths 0.2, 0.15, 0.12; censored 0.53 at t=3.
	wantDeaths := []float64{0, 0.2, 0.15, 0.12}
	for i, want := range wantDeaths {
		if math.Abs(stats.Deaths[i]-want) > 1e-12 {
			t.Errorf("Deaths[%d] = %g, want %g", i, stats.Deaths[i], want)
		}
	}
	if math.Abs(stats.Censored[3]-0.53) > 1e-12 {
		t.Errorf("Censored[3] = %g, want 0.53", stats.Censored[3])
	}
	if stats.AtRisk[0] != 1 {
		t.Errorf("AtRisk[0] = %g, want 1", stats.AtRisk[0])
	}
}

func TestAggregate_CountsMatchFractions(t *testing.T) {
	counts, err := FlatCurve([]float64{1000, 800, 650, 530, 460}).Aggregate()
	if err != nil {
		t.Fatalf("Aggregate counts: %v", err)
	}
	fractions, err := FlatCurve([]float64{1.0, 0.8, 0.65, 0.53, 0.46}).Aggregate()
	if err != nil {
		t.Fatalf("Aggregate fractions: %v", err)
	}
	for t_ := 0; t_ <= counts.MaxPeriod(); t_++ {
		if math.Abs(counts.Deaths[t_]-fractions.Deaths[t_]) > 1e-12 {
			t.Errorf("Deaths[%d]: counts %g vs fractions %g", t_, counts.Deaths[t_], fractions.Deaths[t_])
		}
		if math.Abs(counts.Censored[t_]-fractions.Censored[t_]) > 1e-12 {
			t.Errorf("Censored[%d]: counts %g vs fractions %g", t_, counts.Censored[t_], fractions.Censored[t_])
		}
	}
}

func TestAggregate_SingleCohortMatchesFlat(t *testing.T) {
	flat, err := FlatCurve([]float64{1000, 800, 650}).Aggregate()
	if err != nil {
		t.Fatalf("Aggregate flat: %v", err)
	}
	list, err := CohortList([][]float64{{1000, 800, 650}}).Aggregate()
	if err != nil {
		t.Fatalf("Aggregate list: %v", err)
	}
	for t_ := 0; t_ <= flat.MaxPeriod(); t_++ {
		if flat.Deaths[t_] != list.Deaths[t_] || flat.Censored[t_] != list.Censored[t_] || flat.AtRisk[t_] != list.AtRisk[t_] {
			t.Errorf("period %d: flat %+v vs single-cohort %+v", t_, flat, list)
		}
	}
}

func TestAggregate_UnequalCohorts(t *testing.T) {
	stats, err := CohortList([][]float64{
		{733, 379, 282, 225},
		{519, 286, 194},
		{557, 292},
	}).Aggregate()
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if got := stats.MaxPeriod(); got != 3 {
		t.Fatalf("MaxPeriod = %d, want 3", got)
	}
	if want := 733.0 + 519 + 557; stats.AtRisk[0] != want {
		t.Errorf("AtRisk[0] = %g, want %g", stats.AtRisk[0], want)
	}
	// Period 1 deaths come from all three cohorts.
	if want := (733.0 - 379) + (519 - 286) + (557 - 292); stats.Deaths[1] != want {
		t.Errorf("Deaths[1] = %g, want %g", stats.Deaths[1], want)
	}
	// The shortest cohort is censored at period 1, the next at 2, the longest at 3.
	if stats.Censored[1] != 292 || stats.Censored[2] != 194 || stats.Censored[3] != 225 {
		t.Errorf("Censored = %v, want [_, 292, 194, 225]", stats.Censored)
	}

	// AtRisk[t+1] = AtRisk[t] - Deaths[t+1] - Censored[t] across staggered ends.
	for t_ := 0; t_ < stats.MaxPeriod(); t_++ {
		want := stats.AtRisk[t_] - stats.Deaths[t_+1] - stats.Censored[t_]
		if math.Abs(stats.AtRisk[t_+1]-want) > 1e-9 {
			t.Errorf("AtRisk[%d] = %g, want %g", t_+1, stats.AtRisk[t_+1], want)
		}
	}
}
