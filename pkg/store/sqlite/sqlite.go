// Package sqlite keeps a history of conformance runs so repeated runs can be
// compared for drift.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jpfielding/conform.go/pkg/conform"
	"github.com/jpfielding/conform.go/pkg/pixmap"
	"github.com/jpfielding/conform.go/pkg/util"
)

var ErrRunNotFound = errors.New("run not found")

// Store persists reports in a SQLite database.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON")
	if err != nil {
		return nil, err
	}
	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema if needed.
func (s *Store) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			fixture_dir TEXT NOT NULL,
			executable TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL,
			total INTEGER NOT NULL,
			failed INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS verdicts (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			case_id TEXT NOT NULL,
			path TEXT NOT NULL,
			kind TEXT NOT NULL,
			expect_failure INTEGER NOT NULL,
			reason TEXT,
			exit_code INTEGER NOT NULL,
			detail TEXT,
			stderr TEXT,
			stderr_md5 TEXT,
			mismatch_json TEXT,
			duration_ns INTEGER NOT NULL,
			PRIMARY KEY (run_id, seq),
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_verdicts_path ON verdicts(path)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
	}
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// SaveReport stores r and all its verdicts in one transaction.
func (s *Store) SaveReport(ctx context.Context, r *conform.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, fixture_dir, executable, started_at, finished_at, total, failed)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.FixtureDir, r.Executable, r.StartedAt.UTC(), r.FinishedAt.UTC(),
		len(r.Verdicts), len(r.Failures()))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO verdicts (run_id, seq, case_id, path, kind, expect_failure, reason,
			exit_code, detail, stderr, stderr_md5, mismatch_json, duration_ns)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, v := range r.Verdicts {
		var mismatch sql.NullString
		if v.Mismatch != nil {
			raw, err := json.Marshal(v.Mismatch)
			if err != nil {
				return fmt.Errorf("marshal mismatch: %w", err)
			}
			mismatch = sql.NullString{String: string(raw), Valid: true}
		}
		var digest sql.NullString
		if v.Stderr != "" {
			digest = sql.NullString{String: util.Md5ThenHex([]byte(v.Stderr)), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			r.RunID, i, v.Case.ID, v.Case.Path, string(v.Kind), v.ExpectFailure, v.Reason,
			v.ExitCode, v.Detail, v.Stderr, digest, mismatch, int64(v.Duration)); err != nil {
			return fmt.Errorf("insert verdict %s: %w", v.Case.Path, err)
		}
	}
	return tx.Commit()
}

// RunSummary is one row of the run history.
type RunSummary struct {
	ID         string
	FixtureDir string
	Executable string
	StartedAt  time.Time
	FinishedAt time.Time
	Total      int
	Failed     int
}

// RecentRuns lists up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, fixture_dir, executable, started_at, finished_at, total, failed
		 FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var rs RunSummary
		if err := rows.Scan(&rs.ID, &rs.FixtureDir, &rs.Executable, &rs.StartedAt, &rs.FinishedAt, &rs.Total, &rs.Failed); err != nil {
			return nil, err
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

// LoadReport rebuilds a stored report.
func (s *Store) LoadReport(ctx context.Context, runID string) (*conform.Report, error) {
	r := &conform.Report{RunID: runID}
	err := s.db.QueryRowContext(ctx,
		`SELECT fixture_dir, executable, started_at, finished_at FROM runs WHERE id = ?`, runID,
	).Scan(&r.FixtureDir, &r.Executable, &r.StartedAt, &r.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT case_id, path, kind, expect_failure, reason, exit_code, detail, stderr, mismatch_json, duration_ns
		 FROM verdicts WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			v                      conform.Verdict
			kind                   string
			reason, detail, stderr sql.NullString
			mismatch               sql.NullString
			durationNS             int64
		)
		if err := rows.Scan(&v.Case.ID, &v.Case.Path, &kind, &v.ExpectFailure, &reason,
			&v.ExitCode, &detail, &stderr, &mismatch, &durationNS); err != nil {
			return nil, err
		}
		v.Case.BaseName = filepath.Base(v.Case.Path)
		v.Kind = conform.Kind(kind)
		v.Reason = reason.String
		v.Detail = detail.String
		v.Stderr = stderr.String
		v.Duration = time.Duration(durationNS)
		if mismatch.Valid {
			v.Mismatch = &pixmap.Mismatch{}
			if err := json.Unmarshal([]byte(mismatch.String), v.Mismatch); err != nil {
				return nil, fmt.Errorf("decode mismatch: %w", err)
			}
		}
		r.Verdicts = append(r.Verdicts, v)
	}
	return r, rows.Err()
}
