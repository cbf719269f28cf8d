package scheduler

import (
	"context"
	"fmt"
	"time"

	"aisocials/internal/store"
	logx "aisocials/pkg/logx"
)

const persistTimeout = 5 * time.Second

// outcomeLoop is the single consumer of execution outcomes. It owns all
// post-run bookkeeping: registry counters, history, bus events, counter
// persistence and retry scheduling. Runs until the outcome channel is
// closed by Stop, draining whatever is buffered.
func (s *Scheduler) outcomeLoop() {
	defer s.outWG.Done()
	for o := range s.outcomes {
		s.handleOutcome(o)
	}
}

func (s *Scheduler) handleOutcome(o outcome) {
	now := time.Now().In(s.loc)

	s.mu.Lock()
	meta, known := s.reg[o.jobID]
	if known {
		meta.status = o.status
		// runCount counts successful executions only; lastRun marks the
		// most recent execution that actually ran. Missed firings touch
		// neither.
		switch o.status {
		case StatusCompleted:
			meta.runCount++
			meta.lastRun = o.started
		case StatusFailed:
			meta.errorCount++
			meta.lastError = o.err.Error()
			meta.lastRun = o.started
		}
	}
	var (
		rec        storeRecord
		errorCount int
	)
	if known {
		rec = storeRecord{ok: true, rec: recordFromMeta(meta)}
		errorCount = meta.errorCount
	}
	// A date job is done after its single firing; drop the persisted
	// record so it does not fire again after a restart.
	dateDone := known && o.entryID == o.jobID && meta.trigger.Type == TriggerDate
	s.mu.Unlock()

	ev := JobEvent{
		JobID:      o.jobID,
		JobType:    o.typ,
		Status:     o.status,
		ExecutedAt: o.started,
		Duration:   o.duration,
	}
	exec := Execution{
		JobID:      o.jobID,
		JobType:    o.typ,
		Status:     o.status,
		ExecutedAt: o.started,
		Duration:   o.duration,
	}
	if o.err != nil {
		ev.Error = o.err.Error()
		exec.Error = o.err.Error()
	}
	s.history.append(exec)

	switch o.status {
	case StatusCompleted:
		s.log.Info("job completed",
			logx.String("job", o.jobID),
			logx.Duration("duration", o.duration),
		)
		s.publish("job.completed", ev)
	case StatusMissed:
		s.log.Warn("job missed", logx.String("job", o.jobID))
		s.publish("job.missed", ev)
	case StatusFailed:
		s.log.Error("job failed",
			logx.String("job", o.jobID),
			logx.Int("error_count", errorCount),
			logx.Duration("duration", o.duration),
			logx.Err(o.err),
		)
		s.publish("job.failed", ev)
		switch {
		case !known:
		case isNoRetry(o.err):
			s.log.Warn("permanent failure, not retrying", logx.String("job", o.jobID))
		default:
			s.scheduleRetry(o, errorCount, now)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if dateDone {
		if err := s.jstore.Delete(ctx, o.jobID); err != nil {
			s.log.Warn("finished job record delete failed", logx.String("job", o.jobID), logx.Err(err))
		}
	} else if rec.ok {
		if err := s.jstore.Put(ctx, rec.rec); err != nil {
			s.log.Warn("job counters persist failed", logx.String("job", o.jobID), logx.Err(err))
		}
	}
}

// scheduleRetry plans a one-off retry entry after a failure. Retries share
// the parent's run state and registry record, live only in memory, and at
// most one retry per job is pending at a time (a newer failure replaces the
// previous retry entry).
func (s *Scheduler) scheduleRetry(o outcome, errorCount int, now time.Time) {
	if errorCount > s.cfg.MaxRetries {
		s.log.Error("job exceeded maximum retries",
			logx.String("job", o.jobID),
			logx.Int("max_retries", s.cfg.MaxRetries),
		)
		return
	}

	delay := retryDelay(s.cfg.RetryBase, s.cfg.RetryMaxDelay, errorCount)
	runAt := now.Add(delay)
	retryID := fmt.Sprintf("%s_retry_%d", o.jobID, errorCount)

	s.mu.Lock()
	parent := s.findParentLocked(o)
	if parent == nil {
		// Job was removed (or its entry is already gone) since the firing.
		s.mu.Unlock()
		return
	}
	for id, e := range s.entries {
		if e.derived && e.jobID == o.jobID {
			delete(s.entries, id)
		}
	}
	s.entries[retryID] = &entry{
		id:      retryID,
		jobID:   o.jobID,
		task:    parent.task,
		typ:     parent.typ,
		trigger: Date(runAt),
		run:     parent.run,
		state:   parent.state,
		derived: true,
		next:    runAt,
	}
	s.mu.Unlock()
	s.wake()

	s.log.Info("retry scheduled",
		logx.String("job", o.jobID),
		logx.String("retry", retryID),
		logx.Duration("delay", delay),
	)
	s.publish("job.retry_scheduled", JobEvent{
		JobID:   o.jobID,
		JobType: o.typ,
		Error:   o.err.Error(),
		RetryID: retryID,
		RetryAt: runAt,
	})
}

// findParentLocked locates an entry carrying the job's task function and
// run state. The primary entry is preferred; after a date job has fired its
// primary entry is gone, so the failing derived entry itself would have to
// serve, but derived entries are removed before firing too. Call with s.mu
// held.
func (s *Scheduler) findParentLocked(o outcome) *entry {
	if e, ok := s.entries[o.jobID]; ok {
		return e
	}
	for _, e := range s.entries {
		if e.jobID == o.jobID {
			return e
		}
	}
	// Primary entry gone (date job fired, or removed mid-flight). Retry
	// only if the job is still registered and its task still resolves.
	s.log.Debug("no live entry for retry", logx.String("job", o.jobID))
	meta, ok := s.reg[o.jobID]
	if !ok {
		return nil
	}
	run, ok := s.tasks.Resolve(meta.task)
	if !ok {
		return nil
	}
	return &entry{
		id:    o.jobID,
		jobID: o.jobID,
		task:  meta.task,
		typ:   meta.typ,
		run:   run,
		state: &runState{},
	}
}

// retryDelay doubles the base per consecutive failure and caps the result.
// errorCount is the number of consecutive failures so far, at least 1.
func retryDelay(base, max time.Duration, errorCount int) time.Duration {
	if errorCount < 1 {
		errorCount = 1
	}
	d := base
	for i := 0; i < errorCount; i++ {
		d *= 2
		if d >= max || d <= 0 {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// storeRecord is an optional job record captured under the registry lock.
type storeRecord struct {
	ok  bool
	rec store.JobRecord
}
