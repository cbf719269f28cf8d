package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

// memStore keeps records in-process only. Used for tests and dry runs where
// durability across restarts is not wanted.
type memStore struct {
	mu     sync.Mutex
	jobs   map[string]JobRecord
	closed bool
}

func NewMemory() JobStore {
	return &memStore{jobs: map[string]JobRecord{}}
}

func (s *memStore) Put(ctx context.Context, rec JobRecord) error {
	_ = ctx
	if strings.TrimSpace(rec.JobID) == "" {
		return errors.New("job id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.jobs[rec.JobID] = rec
	return nil
}

func (s *memStore) Get(ctx context.Context, jobID string) (JobRecord, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return JobRecord{}, false, ErrClosed
	}
	rec, ok := s.jobs[jobID]
	return rec, ok, nil
}

func (s *memStore) Delete(ctx context.Context, jobID string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.jobs, jobID)
	return nil
}

func (s *memStore) List(ctx context.Context) ([]JobRecord, error) {
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

func (s *memStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
