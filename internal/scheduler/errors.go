package scheduler

import (
	"errors"
	"fmt"
)

var (
	// ErrNotRunning is returned by operations that require a started engine.
	ErrNotRunning = errors.New("scheduler not running")

	// ErrTaskUnknown is returned when a job references a task name that was
	// never registered.
	ErrTaskUnknown = errors.New("task not registered")

	// ErrInvalidTrigger is wrapped by SchedulingError for bad trigger args.
	ErrInvalidTrigger = errors.New("invalid trigger")
)

// SchedulingError is the error surfaced synchronously by facade operations:
// invalid trigger arguments, persistence failures, and engine misuse.
// Job-execution failures never produce a SchedulingError; they are contained
// by the failure handler.
type SchedulingError struct {
	Op    string // facade operation, e.g. "add_job"
	JobID string // may be empty when the id was not resolved yet
	Err   error
}

func (e *SchedulingError) Error() string {
	if e.JobID != "" {
		return fmt.Sprintf("scheduler: %s %s: %v", e.Op, e.JobID, e.Err)
	}
	return fmt.Sprintf("scheduler: %s: %v", e.Op, e.Err)
}

func (e *SchedulingError) Unwrap() error { return e.Err }

func schedErr(op, jobID string, err error) error {
	if err == nil {
		return nil
	}
	return &SchedulingError{Op: op, JobID: jobID, Err: err}
}

// NoRetry marks a task error as permanent. The failure handler records the
// failure as usual but does not schedule a retry.
func NoRetry(err error) error {
	if err == nil {
		return nil
	}
	return &noRetryError{err: err}
}

type noRetryError struct{ err error }

func (e *noRetryError) Error() string { return e.err.Error() }
func (e *noRetryError) Unwrap() error { return e.err }

func isNoRetry(err error) bool {
	var nr *noRetryError
	return errors.As(err, &nr)
}
