// Package store keeps the run history in SQLite: one row per run and one
// per window record, written after the run completes. The CSV ledger is
// the authoritative per-run artifact; the store is for cross-run review.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/urbanveg/vcover/internal/config"
	"github.com/urbanveg/vcover/internal/ledger"
	"github.com/urbanveg/vcover/internal/pipeline"
	"github.com/urbanveg/vcover/internal/schedule"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Run is one completed run's summary row.
type Run struct {
	ID              int64
	Mode            string
	Year            int
	StartMonth      int
	EndMonth        int
	NDVIThreshold   float64
	CloudCoverMax   int
	ExportNDVI      bool
	OutputPath      string
	StartedAt       time.Time
	FinishedAt      time.Time
	WindowsTotal    int
	WindowsOK       int
	WindowsNoImages int
	WindowsFailed   int
}

// RunFromResults summarizes a completed run for recording.
func RunFromResults(cfg config.Config, results []pipeline.WindowResult, started, finished time.Time) Run {
	run := Run{
		Mode:          string(cfg.Mode),
		Year:          cfg.Year,
		NDVIThreshold: cfg.NDVIThreshold,
		CloudCoverMax: cfg.CloudCoverMax,
		ExportNDVI:    cfg.ExportNDVI,
		OutputPath:    cfg.OutputPath,
		StartedAt:     started.UTC(),
		FinishedAt:    finished.UTC(),
		WindowsTotal:  len(results),
	}
	if cfg.Mode == schedule.ModeBiweekly {
		run.StartMonth, run.EndMonth = 1, cfg.Months
	} else {
		run.StartMonth, run.EndMonth = cfg.StartMonth, cfg.EndMonth
	}
	for _, r := range results {
		switch r.Status {
		case pipeline.StatusOK:
			run.WindowsOK++
		case pipeline.StatusNoImages:
			run.WindowsNoImages++
		default:
			run.WindowsFailed++
		}
	}
	return run
}

// RecordRun inserts the run summary and its window records in one
// transaction and returns the run id.
func (s *Store) RecordRun(run Run, cfg config.Config, records []ledger.Record) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO runs (mode, year, start_month, end_month, ndvi_threshold, cloud_cover_max,
			acquisition_window, max_workers, export_ndvi, output_path, started_at, finished_at,
			windows_total, windows_ok, windows_no_images, windows_failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.Mode, run.Year, run.StartMonth, run.EndMonth, run.NDVIThreshold, run.CloudCoverMax,
		cfg.AcquisitionWindow, cfg.MaxWorkers, run.ExportNDVI, run.OutputPath,
		run.StartedAt, run.FinishedAt,
		run.WindowsTotal, run.WindowsOK, run.WindowsNoImages, run.WindowsFailed)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}

	for _, rec := range records {
		if _, err := tx.Exec(`
			INSERT INTO window_records (run_id, window_index, label, period_start, period_end,
				image_count, status, quality_flags, valid_fraction, cover_fraction, ndvi_mean)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, runID, rec.WindowIndex, rec.Label, rec.PeriodStart, rec.PeriodEnd,
			rec.ImageCount, rec.Status, rec.QualityFlags,
			rec.ValidFraction, rec.CoverFraction, rec.NDVIMean); err != nil {
			return 0, fmt.Errorf("insert window record %d: %w", rec.WindowIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}

// RecentRuns returns the newest runs, most recent first.
func (s *Store) RecentRuns(limit int) ([]Run, error) {
	rows, err := s.db.Query(`
		SELECT id, mode, year, start_month, end_month, ndvi_threshold, cloud_cover_max,
			export_ndvi, output_path, started_at, finished_at,
			windows_total, windows_ok, windows_no_images, windows_failed
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Mode, &r.Year, &r.StartMonth, &r.EndMonth,
			&r.NDVIThreshold, &r.CloudCoverMax, &r.ExportNDVI, &r.OutputPath,
			&r.StartedAt, &r.FinishedAt,
			&r.WindowsTotal, &r.WindowsOK, &r.WindowsNoImages, &r.WindowsFailed); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// WindowRecords returns one run's window rows ordered by window index.
func (s *Store) WindowRecords(runID int64) ([]ledger.Record, error) {
	rows, err := s.db.Query(`
		SELECT window_index, label, period_start, period_end, image_count,
			status, quality_flags, valid_fraction, cover_fraction, ndvi_mean
		FROM window_records
		WHERE run_id = ?
		ORDER BY window_index
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ledger.Record
	for rows.Next() {
		var rec ledger.Record
		if err := rows.Scan(&rec.WindowIndex, &rec.Label, &rec.PeriodStart, &rec.PeriodEnd,
			&rec.ImageCount, &rec.Status, &rec.QualityFlags,
			&rec.ValidFraction, &rec.CoverFraction, &rec.NDVIMean); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
