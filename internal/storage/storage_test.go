package storage

import (
	"fmt"
	"testing"
	"time"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(100, ":memory:")
	if err != nil {
		t.Fatalf("failed to create test storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testFit(dataset, model string, createdAt time.Time) *FitRecord {
	return &FitRecord{
		Dataset:   dataset,
		Model:     model,
		Method:    "nelder-mead",
		Params:    map[string]float64{"alpha": 0.67, "beta": 1.82},
		Loss:      1.234,
		Curve:     []float64{1, 0.73, 0.62, 0.55},
		CreatedAt: createdAt,
	}
}

func TestStorage_SaveAndGetDataset(t *testing.T) {
	s := newTestStorage(t)
	series := [][]float64{
		{733, 379, 282, 225},
		{519, 286, 194},
	}
	if err := s.SaveDataset("signups-2025", series); err != nil {
		t.Fatalf("SaveDataset: %v", err)
	}

	data, err := s.GetDataset("signups-2025")
	if err != nil {
		t.Fatalf("GetDataset: %v", err)
	}
	stats, err := data.Aggregate()
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if want := 733.0 + 519; stats.AtRisk[0] != want {
		t.Errorf("AtRisk[0] = %g, want %g", stats.AtRisk[0], want)
	}
}

func TestStorage_SaveDataset_Invalid(t *testing.T) {
	s := newTestStorage(t)
	if err := s.SaveDataset("bad", [][]float64{{100}}); err == nil {
		t.Error("expected error for single-element cohort")
	}
	if err := s.SaveDataset("", [][]float64{{100, 80}}); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestStorage_GetDataset_NotFound(t *testing.T) {
	s := newTestStorage(t)
	if _, err := s.GetDataset("nonexistent"); err == nil {
		t.Error("expected error for missing dataset")
	}
}

func TestStorage_SaveDataset_Replaces(t *testing.T) {
	s := newTestStorage(t)
	if err := s.SaveDataset("d", [][]float64{{100, 80}, {50, 40}}); err != nil {
		t.Fatalf("SaveDataset: %v", err)
	}
	if err := s.SaveDataset("d", [][]float64{{200, 150}}); err != nil {
		t.Fatalf("SaveDataset replace: %v", err)
	}
	data, err := s.GetDataset("d")
	if err != nil {
		t.Fatalf("GetDataset: %v", err)
	}
	stats, err := data.Aggregate()
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	// Replaced with one cohort of 200, routed through the flat path.
	if stats.AtRisk[0] != 1 {
		t.Errorf("AtRisk[0] = %g, want normalized 1", stats.AtRisk[0])
	}
}

func TestStorage_ListDatasets(t *testing.T) {
	s := newTestStorage(t)
	names, err := s.ListDatasets()
	if err != nil {
		t.Fatalf("ListDatasets: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected no datasets, got %v", names)
	}
	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("d-%d", i)
		if err := s.SaveDataset(name, [][]float64{{100, 80}}); err != nil {
			t.Fatalf("SaveDataset: %v", err)
		}
	}
	names, err = s.ListDatasets()
	if err != nil {
		t.Fatalf("ListDatasets: %v", err)
	}
	if len(names) != 3 {
		t.Errorf("expected 3 datasets, got %v", names)
	}
}

func TestStorage_SaveAndLoadFit(t *testing.T) {
	s := newTestStorage(t)
	rec := testFit("d", "sbg", time.Now())
	if err := s.SaveFit(rec); err != nil {
		t.Fatalf("SaveFit: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("SaveFit did not assign an ID")
	}

	got, err := s.LatestFit("d", "sbg")
	if err != nil {
		t.Fatalf("LatestFit: %v", err)
	}
	if got.ID != rec.ID {
		t.Errorf("ID = %s, want %s", got.ID, rec.ID)
	}
	if got.Params["alpha"] != 0.67 || got.Params["beta"] != 1.82 {
		t.Errorf("Params = %v", got.Params)
	}
	if len(got.Curve) != 4 || got.Curve[0] != 1 {
		t.Errorf("Curve = %v", got.Curve)
	}
	if got.Loss != 1.234 {
		t.Errorf("Loss = %g, want 1.234", got.Loss)
	}
}

func TestStorage_LatestFit_PicksNewest(t *testing.T) {
	s := newTestStorage(t)
	now := time.Now()
	old := testFit("d", "sbg", now.Add(-time.Hour))
	recent := testFit("d", "sbg", now)
	recent.Loss = 0.5
	if err := s.SaveFit(old); err != nil {
		t.Fatalf("SaveFit: %v", err)
	}
	if err := s.SaveFit(recent); err != nil {
		t.Fatalf("SaveFit: %v", err)
	}

	got, err := s.LatestFit("d", "sbg")
	if err != nil {
		t.Fatalf("LatestFit: %v", err)
	}
	if got.Loss != 0.5 {
		t.Errorf("LatestFit returned loss %g, want the newer 0.5", got.Loss)
	}

	history, err := s.FitHistory("d", "sbg", 10)
	if err != nil {
		t.Fatalf("FitHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if !history[0].CreatedAt.After(history[1].CreatedAt) {
		t.Error("history not newest-first")
	}
}

func TestStorage_FitCap(t *testing.T) {
	s, err := New(5, ":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	now := time.Now()
	for i := 0; i < 8; i++ {
		rec := testFit("d", "sbg", now.Add(time.Duration(i)*time.Second))
		if err := s.SaveFit(rec); err != nil {
			t.Fatalf("SaveFit %d: %v", i, err)
		}
	}
	history, err := s.FitHistory("d", "sbg", 100)
	if err != nil {
		t.Fatalf("FitHistory: %v", err)
	}
	if len(history) != 5 {
		t.Errorf("stored fits = %d, want cap of 5", len(history))
	}
}
