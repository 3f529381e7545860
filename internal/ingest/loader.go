// Package ingest loads cohort CSV files into storage. One file is one
// dataset named after its base name; each row is one cohort's counts over
// consecutive periods. Rows may have different lengths, matching cohorts
// censored at different periods.
package ingest

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Delminho/ltv-models-sbg-bdw/internal/storage"
)

// Loader parses cohort files and persists them.
type Loader struct {
	storage *storage.Storage
}

func New(s *storage.Storage) *Loader {
	return &Loader{storage: s}
}

// LoadFile ingests one CSV file and returns the dataset name and the number
// of cohorts stored.
func (l *Loader) LoadFile(path string) (string, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // ragged rows are expected
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return "", 0, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	series, err := parseRecords(records)
	if err != nil {
		return "", 0, fmt.Errorf("%s: %w", path, err)
	}

	name := datasetName(path)
	if err := l.storage.SaveDataset(name, series); err != nil {
		return "", 0, err
	}
	return name, len(series), nil
}

// LoadDir ingests every *.csv file in dir and returns the number of datasets
// stored. Files that fail to parse abort the load.
func (l *Loader) LoadDir(dir string) (int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return 0, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	loaded := 0
	for _, path := range paths {
		if _, _, err := l.LoadFile(path); err != nil {
			return loaded, err
		}
		loaded++
	}
	return loaded, nil
}

func parseRecords(records [][]string) ([][]float64, error) {
	var series [][]float64
	for i, record := range records {
		row := make([]float64, 0, len(record))
		for _, field := range record {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				// A non-numeric first row is a header; anything later is data
				// corruption.
				if i == 0 {
					row = nil
					break
				}
				return nil, fmt.Errorf("row %d: bad value %q", i+1, field)
			}
			row = append(row, v)
		}
		if len(row) > 0 {
			series = append(series, row)
		}
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("no cohort rows found")
	}
	return series, nil
}

func datasetName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
