// Package storage provides SQLite-backed persistence for cohort datasets and
// fit results.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/Delminho/ltv-models-sbg-bdw/internal/cohort"
)

// FitRecord is a persisted fit outcome.
type FitRecord struct {
	ID        string
	Dataset   string
	Model     string
	Method    string
	Params    map[string]float64
	Loss      float64
	Curve     []float64
	CreatedAt time.Time
}

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db      *sql.DB
	maxFits int
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/retentiond/data.db.
func New(maxFits int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "retentiond", "data.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	s := &Storage{db: db, maxFits: maxFits}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS datasets (
			name       TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS cohorts (
			dataset TEXT NOT NULL REFERENCES datasets(name) ON DELETE CASCADE,
			ordinal INTEGER NOT NULL,
			series  TEXT NOT NULL,
			PRIMARY KEY (dataset, ordinal)
		)`,
		`CREATE TABLE IF NOT EXISTS fits (
			id         TEXT PRIMARY KEY,
			dataset    TEXT NOT NULL,
			model      TEXT NOT NULL,
			method     TEXT,
			params     TEXT NOT NULL,
			loss       REAL NOT NULL,
			curve      TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fits_lookup ON fits(dataset, model, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_fits_created_at ON fits(created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveDataset stores (or replaces) a named dataset's cohort series. The data
// is validated before touching the database.
func (s *Storage) SaveDataset(name string, series [][]float64) error {
	if name == "" {
		return fmt.Errorf("dataset name must not be empty")
	}
	if err := cohort.CohortList(series).Validate(); err != nil {
		return fmt.Errorf("invalid dataset %q: %w", name, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`INSERT OR REPLACE INTO datasets (name, created_at) VALUES (?,?)`,
		name, time.Now().UnixNano()); err != nil {
		return fmt.Errorf("failed to insert dataset: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM cohorts WHERE dataset = ?`, name); err != nil {
		return fmt.Errorf("failed to clear cohorts: %w", err)
	}
	for i, cohortSeries := range series {
		seriesJSON, err := json.Marshal(cohortSeries)
		if err != nil {
			return fmt.Errorf("failed to marshal series: %w", err)
		}
		if _, err := tx.Exec(`INSERT INTO cohorts (dataset, ordinal, series) VALUES (?,?,?)`,
			name, i, string(seriesJSON)); err != nil {
			return fmt.Errorf("failed to insert cohort: %w", err)
		}
	}

	return tx.Commit()
}

// GetDataset loads a named dataset as a cohort list.
func (s *Storage) GetDataset(name string) (cohort.Dataset, error) {
	rows, err := s.db.Query(`SELECT series FROM cohorts WHERE dataset = ? ORDER BY ordinal`, name)
	if err != nil {
		return cohort.Dataset{}, fmt.Errorf("failed to query cohorts: %w", err)
	}
	defer rows.Close()

	var series [][]float64
	for rows.Next() {
		var seriesJSON string
		if err := rows.Scan(&seriesJSON); err != nil {
			return cohort.Dataset{}, fmt.Errorf("failed to scan cohort: %w", err)
		}
		var one []float64
		if err := json.Unmarshal([]byte(seriesJSON), &one); err != nil {
			return cohort.Dataset{}, fmt.Errorf("failed to unmarshal series: %w", err)
		}
		series = append(series, one)
	}
	if err := rows.Err(); err != nil {
		return cohort.Dataset{}, err
	}
	if len(series) == 0 {
		return cohort.Dataset{}, fmt.Errorf("dataset not found: %s", name)
	}
	return cohort.CohortList(series), nil
}

// ListDatasets returns all stored dataset names in insertion order.
func (s *Storage) ListDatasets() ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM datasets ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query datasets: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan dataset name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// SaveFit persists one fit outcome, assigning an ID and timestamp when
// missing, and enforces the stored-fit cap.
func (s *Storage) SaveFit(rec *FitRecord) error {
	if rec.Dataset == "" || rec.Model == "" {
		return fmt.Errorf("fit record needs dataset and model")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	paramsJSON, err := json.Marshal(rec.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}
	curveJSON, err := json.Marshal(rec.Curve)
	if err != nil {
		return fmt.Errorf("failed to marshal curve: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`
		INSERT INTO fits (id, dataset, model, method, params, loss, curve, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		rec.ID, rec.Dataset, rec.Model, rec.Method,
		string(paramsJSON), rec.Loss, string(curveJSON), rec.CreatedAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("failed to insert fit: %w", err)
	}

	if _, err := tx.Exec(`
		DELETE FROM fits WHERE id NOT IN (
			SELECT id FROM fits ORDER BY created_at DESC LIMIT ?
		)`, s.maxFits); err != nil {
		return fmt.Errorf("failed to enforce fit cap: %w", err)
	}

	return tx.Commit()
}

// LatestFit returns the most recent fit of a model on a dataset.
func (s *Storage) LatestFit(dataset, model string) (*FitRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, dataset, model, method, params, loss, curve, created_at
		FROM fits WHERE dataset = ? AND model = ?
		ORDER BY created_at DESC LIMIT 1`, dataset, model)

	rec, err := scanFit(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no fit found for %s/%s", dataset, model)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fit: %w", err)
	}
	return rec, nil
}

// FitHistory returns up to limit fits of a model on a dataset, newest first.
func (s *Storage) FitHistory(dataset, model string, limit int) ([]*FitRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, dataset, model, method, params, loss, curve, created_at
		FROM fits WHERE dataset = ? AND model = ?
		ORDER BY created_at DESC LIMIT ?`, dataset, model, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query fits: %w", err)
	}
	defer rows.Close()

	var recs []*FitRecord
	for rows.Next() {
		rec, err := scanFit(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fit: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func scanFit(scan func(...any) error) (*FitRecord, error) {
	var rec FitRecord
	var paramsJSON, curveJSON string
	var createdAtNano int64
	err := scan(
		&rec.ID, &rec.Dataset, &rec.Model, &rec.Method,
		&paramsJSON, &rec.Loss, &curveJSON, &createdAtNano,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(paramsJSON), &rec.Params); err != nil {
		return nil, fmt.Errorf("failed to unmarshal params: %w", err)
	}
	if err := json.Unmarshal([]byte(curveJSON), &rec.Curve); err != nil {
		return nil, fmt.Errorf("failed to unmarshal curve: %w", err)
	}
	rec.CreatedAt = time.Unix(0, createdAtNano)
	return &rec, nil
}
