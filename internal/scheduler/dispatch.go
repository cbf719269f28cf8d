package scheduler

import (
	"fmt"
	"time"

	logx "aisocials/pkg/logx"
)

// maxIdleWake bounds dispatcher sleep so config or clock anomalies cannot
// park it forever.
const maxIdleWake = time.Minute

// dispatcher owns trigger evaluation. It sleeps until the earliest next
// fire time, dispatches every due entry, then recomputes. Facade calls
// that change the entry set nudge it through the kick channel.
func (s *Scheduler) dispatcher() {
	defer s.wg.Done()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		wait := s.dispatchDue()
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-s.stopCh:
			return
		case <-s.kick:
		case <-timer.C:
		}
	}
}

// dispatchDue fires every entry whose next time has arrived and returns
// how long to sleep until the following one.
func (s *Scheduler) dispatchDue() time.Duration {
	now := time.Now().In(s.loc)

	type firing struct {
		exec execution
		late bool
	}
	var due []firing

	s.mu.Lock()
	wait := maxIdleWake
	for id, e := range s.entries {
		if e.paused || e.next.IsZero() {
			continue
		}
		if e.next.After(now) {
			if d := e.next.Sub(now); d < wait {
				wait = d
			}
			continue
		}

		late := now.Sub(e.next) > s.cfg.MisfireGrace
		due = append(due, firing{
			exec: execution{
				entryID:      e.id,
				jobID:        e.jobID,
				task:         e.task,
				typ:          e.typ,
				run:          e.run,
				state:        e.state,
				scheduledFor: e.next,
			},
			late: late,
		})

		// Date entries and derived retries fire once and are gone.
		if e.derived || e.trigger.Type == TriggerDate {
			delete(s.entries, id)
			continue
		}
		e.next = e.trigger.next(now, e.sched)
		if d := e.next.Sub(now); d > 0 && d < wait {
			wait = d
		}
	}
	s.mu.Unlock()

	for _, f := range due {
		s.dispatchOne(f.exec, f.late)
	}
	if wait < 0 {
		wait = 0
	}
	return wait
}

// dispatchOne routes one due firing: late firings become missed outcomes,
// overlapping ones are coalesced away, the rest go to the worker queue.
func (s *Scheduler) dispatchOne(exec execution, late bool) {
	if late {
		s.log.Warn("job missed its window",
			logx.String("job", exec.jobID),
			logx.String("entry", exec.entryID),
			logx.Time("scheduled_for", exec.scheduledFor),
		)
		s.report(outcome{
			jobID:   exec.jobID,
			entryID: exec.entryID,
			typ:     exec.typ,
			status:  StatusMissed,
			started: exec.scheduledFor,
		})
		return
	}

	if !exec.state.tryAcquire() {
		s.log.Debug("job still running; firing coalesced", logx.String("job", exec.jobID))
		s.publish("job.skipped", JobEvent{JobID: exec.jobID, JobType: exec.typ})
		return
	}

	select {
	case s.queue <- exec:
	default:
		// Queue saturated. Drop the firing rather than block trigger
		// evaluation; the next trigger fire will pick the job up again.
		exec.state.release()
		s.log.Warn("execution queue full; firing dropped", logx.String("job", exec.jobID))
	}
}

// worker drains the execution queue until shutdown. The in-flight task is
// allowed to finish; only then does the worker observe stopCh and exit.
func (s *Scheduler) worker(n int) {
	defer s.wg.Done()
	log := s.log.With(logx.Int("worker", n))
	for {
		select {
		case <-s.stopCh:
			// Prefer remaining queued work over immediate exit so a
			// waiting Stop drains what was already dispatched.
			select {
			case exec := <-s.queue:
				s.execOne(log, exec)
			default:
				return
			}
		case exec := <-s.queue:
			s.execOne(log, exec)
		}
	}
}

// execOne runs one task and reports its outcome. A panicking task is
// converted into a failed outcome; it never takes the worker down.
func (s *Scheduler) execOne(log logx.Logger, exec execution) {
	defer exec.state.release()

	started := time.Now().In(s.loc)
	s.mu.Lock()
	if meta, ok := s.reg[exec.jobID]; ok {
		meta.status = StatusRunning
	}
	ctx := s.runCtx
	s.mu.Unlock()

	log.Info("job executing", logx.String("job", exec.jobID), logx.String("task", exec.task))
	s.publish("job.started", JobEvent{JobID: exec.jobID, JobType: exec.typ, Status: StatusRunning, ExecutedAt: started})

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task panic: %v", r)
			}
		}()
		return exec.run(ctx)
	}()

	o := outcome{
		jobID:    exec.jobID,
		entryID:  exec.entryID,
		typ:      exec.typ,
		started:  started,
		duration: time.Since(started),
	}
	if err != nil {
		o.status = StatusFailed
		o.err = err
	} else {
		o.status = StatusCompleted
	}
	s.report(o)
}

// report hands an outcome to the outcome loop. The channel is sized for
// the worst case (full queue plus every worker) so this never blocks.
func (s *Scheduler) report(o outcome) {
	select {
	case s.outcomes <- o:
	default:
		s.log.Error("outcome channel full; result dropped", logx.String("job", o.jobID))
	}
}
