package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	logx "aisocials/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// The whole job table is kept as a single JSON document keyed by job id.
// Writes rewrite the snapshot atomically (temp file + rename); the record
// count is small (a handful of scheduled jobs), so the simplicity beats a
// journal here.
type fileStore struct {
	log logx.Logger

	mu     sync.Mutex
	path   string
	jobs   map[string]JobRecord
	closed bool
}

func openFile(cfg Config, log logx.Logger) (JobStore, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("store.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	jobs := map[string]JobRecord{}
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(b, &jobs); err != nil {
			return nil, errors.New("corrupt job store file: " + err.Error())
		}
	case os.IsNotExist(err):
		// First run.
	default:
		return nil, err
	}

	log.Debug("job store opened", logx.String("driver", "file"), logx.String("path", path), logx.Int("jobs", len(jobs)))
	return &fileStore{log: log, path: path, jobs: jobs}, nil
}

func (s *fileStore) Put(ctx context.Context, rec JobRecord) error {
	_ = ctx
	if strings.TrimSpace(rec.JobID) == "" {
		return errors.New("job id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	prev, had := s.jobs[rec.JobID]
	s.jobs[rec.JobID] = rec
	if err := s.flushLocked(); err != nil {
		// Roll back the in-memory map so a failed write is not half-applied.
		if had {
			s.jobs[rec.JobID] = prev
		} else {
			delete(s.jobs, rec.JobID)
		}
		return err
	}
	return nil
}

func (s *fileStore) Get(ctx context.Context, jobID string) (JobRecord, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return JobRecord{}, false, ErrClosed
	}
	rec, ok := s.jobs[jobID]
	return rec, ok, nil
}

func (s *fileStore) Delete(ctx context.Context, jobID string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.jobs[jobID]; !ok {
		return nil
	}
	prev := s.jobs[jobID]
	delete(s.jobs, jobID)
	if err := s.flushLocked(); err != nil {
		s.jobs[jobID] = prev
		return err
	}
	return nil
}

func (s *fileStore) List(ctx context.Context) ([]JobRecord, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]JobRecord, 0, len(s.jobs))
	for _, rec := range s.jobs {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobID < out[j].JobID })
	return out, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// flushLocked writes the snapshot atomically. Call with s.mu held.
func (s *fileStore) flushLocked() error {
	b, err := json.MarshalIndent(s.jobs, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
