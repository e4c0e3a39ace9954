package store

import (
	"fmt"
	"log"
	"time"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    mode TEXT NOT NULL,
    year INTEGER NOT NULL,
    start_month INTEGER,
    end_month INTEGER,
    ndvi_threshold REAL NOT NULL,
    cloud_cover_max INTEGER NOT NULL,
    acquisition_window INTEGER,
    max_workers INTEGER NOT NULL,
    export_ndvi BOOLEAN NOT NULL,
    output_path TEXT,
    started_at DATETIME NOT NULL,
    finished_at DATETIME NOT NULL,
    windows_total INTEGER NOT NULL,
    windows_ok INTEGER NOT NULL,
    windows_no_images INTEGER NOT NULL,
    windows_failed INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS window_records (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id INTEGER NOT NULL REFERENCES runs(id),
    window_index INTEGER NOT NULL,
    label TEXT NOT NULL,
    period_start DATE NOT NULL,
    period_end DATE NOT NULL,
    image_count INTEGER NOT NULL,
    status TEXT NOT NULL,
    quality_flags TEXT,
    valid_fraction REAL,
    cover_fraction REAL,
    ndvi_mean REAL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(run_id, window_index)
);

CREATE INDEX IF NOT EXISTS idx_window_records_run ON window_records(run_id);
CREATE INDEX IF NOT EXISTS idx_runs_year_mode ON runs(year, mode);
`,
	},
}

func (s *Store) Migrate() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		log.Printf("migrations: applying %d - %s", m.Version, m.Description)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Description, time.Now().UTC(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func (s *Store) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME
		)
	`)
	return err
}

func (s *Store) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}
