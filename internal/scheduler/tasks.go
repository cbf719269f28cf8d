package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// TaskFunc is the unit of work a job executes. The return value of the work
// itself is discarded by the scheduler; tasks wanting durable results must
// persist them as side effects.
type TaskFunc func(ctx context.Context) error

// TaskSet is a registry of named task implementations. Persisted jobs store
// a task name, not a function, so after a restart the stored jobs are
// re-bound by resolving their names against the set the application
// registered at boot.
type TaskSet struct {
	mu sync.RWMutex
	m  map[string]TaskFunc
}

func NewTaskSet() *TaskSet {
	return &TaskSet{m: map[string]TaskFunc{}}
}

// Register adds a named task. Registering the same name twice is an error;
// a task name is a stable contract with the job store.
func (ts *TaskSet) Register(name string, fn TaskFunc) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("task name required")
	}
	if fn == nil {
		return fmt.Errorf("task %q: nil function", name)
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if _, exists := ts.m[name]; exists {
		return fmt.Errorf("task %q already registered", name)
	}
	ts.m[name] = fn
	return nil
}

func (ts *TaskSet) Resolve(name string) (TaskFunc, bool) {
	ts.mu.RLock()
	fn, ok := ts.m[strings.TrimSpace(name)]
	ts.mu.RUnlock()
	return fn, ok
}

func (ts *TaskSet) Names() []string {
	ts.mu.RLock()
	names := make([]string, 0, len(ts.m))
	for name := range ts.m {
		names = append(names, name)
	}
	ts.mu.RUnlock()
	sort.Strings(names)
	return names
}
