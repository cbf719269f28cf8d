package store

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "aisocials/pkg/logx"
)

var ErrClosed = errors.New("job store closed")

// Config configures job persistence.
//
// Driver values:
//   - "file": dependency-free JSON snapshot backend
//   - "sqlite": SQLite database file (optional build tag)
//   - "memory": in-process only, no durability (tests, dry runs)
//
// If Driver is empty, "file" is assumed.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// JobRecord is the persisted definition of a job. Function references are
// process-local and never stored; Task carries the registered task name used
// to re-bind the job after a restart.
type JobRecord struct {
	JobID       string         `json:"job_id"`
	JobType     string         `json:"job_type"`
	Task        string         `json:"task"`
	TriggerType string         `json:"trigger_type"`
	TriggerArgs map[string]any `json:"trigger_args"`
	CreatedAt   time.Time      `json:"created_at"`
	Paused      bool           `json:"paused,omitempty"`

	// Lifetime counters, persisted best-effort on every outcome.
	RunCount   int `json:"run_count,omitempty"`
	ErrorCount int `json:"error_count,omitempty"`
}

// JobStore is the persistence boundary of the scheduler. Implementations
// must round-trip records exactly and serialize concurrent mutations.
type JobStore interface {
	Put(ctx context.Context, rec JobRecord) error
	Get(ctx context.Context, jobID string) (JobRecord, bool, error)
	Delete(ctx context.Context, jobID string) error
	List(ctx context.Context) ([]JobRecord, error)
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (JobStore, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, errors.New("unknown store driver: " + driver)
	}
}
