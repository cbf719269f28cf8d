//go:build sqlite
// +build sqlite

package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "aisocials/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (JobStore, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Put(ctx context.Context, rec JobRecord) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if strings.TrimSpace(rec.JobID) == "" {
		return errors.New("job id required")
	}
	args, err := json.Marshal(rec.TriggerArgs)
	if err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs(job_id, job_type, task, trigger_type, trigger_args, created_at, paused, run_count, error_count)
		 VALUES(?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(job_id) DO UPDATE SET
		   job_type=excluded.job_type, task=excluded.task,
		   trigger_type=excluded.trigger_type, trigger_args=excluded.trigger_args,
		   paused=excluded.paused, run_count=excluded.run_count, error_count=excluded.error_count`,
		rec.JobID, rec.JobType, rec.Task, rec.TriggerType, string(args),
		rec.CreatedAt.Format(time.RFC3339Nano), boolInt(rec.Paused), rec.RunCount, rec.ErrorCount,
	)
	return err
}

func (s *sqliteStore) Get(ctx context.Context, jobID string) (JobRecord, bool, error) {
	if s == nil || s.db == nil {
		return JobRecord{}, false, ErrClosed
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT job_id, job_type, task, trigger_type, trigger_args, created_at, paused, run_count, error_count
		 FROM jobs WHERE job_id = ?`, jobID)
	rec, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return JobRecord{}, false, nil
	}
	if err != nil {
		return JobRecord{}, false, err
	}
	return rec, true, nil
}

func (s *sqliteStore) Delete(ctx context.Context, jobID string) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE job_id = ?`, jobID)
	return err
}

func (s *sqliteStore) List(ctx context.Context) ([]JobRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, job_type, task, trigger_type, trigger_args, created_at, paused, run_count, error_count
		 FROM jobs ORDER BY job_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []JobRecord
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(r rowScanner) (JobRecord, error) {
	var rec JobRecord
	var args, createdAt string
	var paused int
	if err := r.Scan(&rec.JobID, &rec.JobType, &rec.Task, &rec.TriggerType, &args, &createdAt, &paused, &rec.RunCount, &rec.ErrorCount); err != nil {
		return JobRecord{}, err
	}
	if args != "" {
		if err := json.Unmarshal([]byte(args), &rec.TriggerArgs); err != nil {
			return JobRecord{}, err
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		rec.CreatedAt = t
	}
	rec.Paused = paused != 0
	return rec, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
