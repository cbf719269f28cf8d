// Package scheduler implements the content publishing job engine: durable
// job registration, trigger evaluation (interval, cron, one-off date), a
// bounded worker pool with per-job overlap coalescing, failure handling with
// capped exponential-backoff retries, and an in-memory execution history.
//
// A Scheduler is constructed explicitly and passed to its consumers; the
// application composition root owns the single process-wide instance. Jobs
// reference their work through a registered task name (see TaskSet), so
// persisted jobs can be re-bound to code after a restart.
//
// Execution outcomes travel as data on an internal channel: workers never
// propagate job errors to callers. The only caller-visible failure signal is
// JobInfo (status, last error) and the execution history.
package scheduler
