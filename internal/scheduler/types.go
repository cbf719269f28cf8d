package scheduler

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// JobStatus reflects the outcome of a job's most recent execution. It is not
// a lifecycle state of the job entity itself: a failed recurring job keeps
// firing on its normal schedule and may transition back to completed.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusMissed    JobStatus = "missed"
)

// JobType tags jobs for filtering and listing only; dispatch logic ignores it.
type JobType string

const (
	TypeContentGeneration JobType = "content_generation"
	TypePublishing        JobType = "publishing"
	TypeContentReview     JobType = "content_review"
	TypeMaintenance       JobType = "maintenance"
)

// Config controls the scheduling engine.
//
// Defaults (applied by New when fields are zero):
//   - Workers: 3
//   - QueueSize: 64
//   - MaxRetries: 3
//   - RetryBase: 60s (doubled per consecutive failure)
//   - RetryMaxDelay: 1h
//   - MisfireGrace: 5m
//   - HistorySize: 1000
//   - Timezone: "UTC"
type Config struct {
	Workers   int
	QueueSize int

	MaxRetries    int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration

	// MisfireGrace marks a due firing as missed (instead of executing it)
	// when dispatch lags behind the trigger by more than this window.
	MisfireGrace time.Duration

	HistorySize int

	// Timezone is an IANA TZ name used for cron evaluation, e.g. "UTC".
	Timezone string
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 3
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryBase <= 0 {
		c.RetryBase = time.Minute
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = time.Hour
	}
	if c.MisfireGrace <= 0 {
		c.MisfireGrace = 5 * time.Minute
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 1000
	}
	return c
}

// JobRequest describes a job to register. Task must name a function
// registered in the scheduler's TaskSet; the function itself is never
// persisted, only its name.
type JobRequest struct {
	// ID is optional; when empty an id of the form "<type>_<hex8>" is
	// generated.
	ID      string
	Type    JobType
	Task    string
	Trigger Trigger
}

// JobInfo is a point-in-time view of a registered job.
type JobInfo struct {
	JobID       string         `json:"job_id"`
	JobType     JobType        `json:"job_type"`
	Task        string         `json:"task"`
	Status      JobStatus      `json:"status"`
	Paused      bool           `json:"paused"`
	CreatedAt   time.Time      `json:"created_at"`
	LastRun     time.Time      `json:"last_run,omitzero"`
	NextRun     time.Time      `json:"next_run,omitzero"`
	RunCount    int            `json:"run_count"`
	ErrorCount  int            `json:"error_count"`
	LastError   string         `json:"last_error,omitempty"`
	TriggerType TriggerType    `json:"trigger_type"`
	TriggerArgs map[string]any `json:"trigger_args"`
}

// Execution is an immutable history record of one firing.
type Execution struct {
	JobID      string        `json:"job_id"`
	JobType    JobType       `json:"job_type"`
	Status     JobStatus     `json:"status"`
	ExecutedAt time.Time     `json:"executed_at"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}

// Status aggregates engine state for diagnostics.
type Status struct {
	Running         bool `json:"running"`
	TotalJobs       int  `json:"total_jobs"`
	ActiveJobs      int  `json:"active_jobs"`
	FailedJobs      int  `json:"failed_jobs"`
	CompletedJobs   int  `json:"completed_jobs"`
	TotalExecutions int  `json:"total_executions"`
	TotalErrors     int  `json:"total_errors"`
	HistoryEntries  int  `json:"history_entries"`
}

// JobEvent is the payload published on the event bus for job lifecycle
// events (job.started, job.completed, job.failed, job.missed, job.skipped,
// job.retry_scheduled).
type JobEvent struct {
	JobID      string        `json:"job_id"`
	JobType    JobType       `json:"job_type"`
	Status     JobStatus     `json:"status,omitempty"`
	ExecutedAt time.Time     `json:"executed_at,omitzero"`
	Duration   time.Duration `json:"duration,omitempty"`
	Error      string        `json:"error,omitempty"`
	RetryID    string        `json:"retry_id,omitempty"`
	RetryAt    time.Time     `json:"retry_at,omitzero"`
}

// runState gates per-job concurrency: at most one execution of a job id
// (including its retry children) is in flight or queued at any time.
// Additional due firings are coalesced, not queued.
type runState struct {
	mu       sync.Mutex
	inflight int
}

func (s *runState) tryAcquire() bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight > 0 {
		return false
	}
	s.inflight++
	return true
}

func (s *runState) release() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.inflight > 0 {
		s.inflight--
	}
	s.mu.Unlock()
}

// entry is a live scheduler entry: either a registered job or a derived
// one-off retry. Derived entries share the parent's runState and attribute
// their outcomes to the parent's registry record.
type entry struct {
	id      string // entry identity ("<job>" or "<job>_retry_<n>")
	jobID   string // registry identity outcomes are attributed to
	task    string
	typ     JobType
	trigger Trigger
	sched   cron.Schedule // non-nil for cron triggers
	run     TaskFunc
	state   *runState
	paused  bool
	derived bool
	next    time.Time // zero once a date entry has fired
}

// execution is one dispatched firing handed to a worker.
type execution struct {
	entryID      string
	jobID        string
	task         string
	typ          JobType
	run          TaskFunc
	state        *runState
	scheduledFor time.Time
}

// outcome is the result of one firing, consumed by the outcome loop.
type outcome struct {
	jobID    string
	entryID  string
	typ      JobType
	status   JobStatus // completed, failed or missed
	err      error
	started  time.Time
	duration time.Duration
}
