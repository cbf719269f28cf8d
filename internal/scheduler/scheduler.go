package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"aisocials/internal/eventbus"
	"aisocials/internal/store"
	logx "aisocials/pkg/logx"
)

// Scheduler is the facade over the job engine. One instance per process,
// constructed by the application composition root and passed explicitly to
// whoever needs it.
type Scheduler struct {
	cfg    Config
	log    logx.Logger
	bus    eventbus.Bus
	jstore store.JobStore
	tasks  *TaskSet
	parser cron.Parser
	loc    *time.Location

	mu      sync.Mutex
	entries map[string]*entry
	reg     map[string]*jobMeta
	running bool

	runCtx   context.Context
	stopCh   chan struct{}
	stopDone chan struct{}
	kick     chan struct{}
	queue    chan execution
	outcomes chan outcome
	wg       sync.WaitGroup // dispatcher + workers
	outWG    sync.WaitGroup // outcome loop

	history *historyLog
}

// New builds a scheduler. The store, task set and bus are required; the
// logger may be zero (logging is then disabled).
func New(cfg Config, jstore store.JobStore, tasks *TaskSet, log logx.Logger, bus eventbus.Bus) *Scheduler {
	cfg = cfg.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	loc := time.UTC
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		} else {
			log.Warn("invalid timezone; falling back to UTC", logx.String("tz", tz), logx.Err(err))
		}
	}
	return &Scheduler{
		cfg:    cfg,
		log:    log,
		bus:    bus,
		jstore: jstore,
		tasks:  tasks,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		loc:    loc,

		entries: map[string]*entry{},
		reg:     map[string]*jobMeta{},
		history: newHistoryLog(cfg.HistorySize),
	}
}

// Tasks returns the task set jobs resolve their functions from.
func (s *Scheduler) Tasks() *TaskSet { return s.tasks }

// Start loads persisted jobs and starts the dispatch loop and worker pool.
// It is idempotent: calling Start on a running engine only logs a warning.
func (s *Scheduler) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn("scheduler already running")
		return nil
	}
	// A previous Stop(wait=false) may still be draining; wait for it.
	if done := s.stopDone; done != nil {
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return schedErr("start", "", ctx.Err())
		}
		s.mu.Lock()
	}

	s.runCtx = ctx
	s.stopCh = make(chan struct{})
	s.kick = make(chan struct{}, 1)
	s.queue = make(chan execution, s.cfg.QueueSize)
	s.outcomes = make(chan outcome, s.cfg.QueueSize+s.cfg.Workers+16)
	s.running = true
	workers := s.cfg.Workers
	s.mu.Unlock()

	if err := s.loadJobs(ctx); err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return schedErr("start", "", err)
	}

	s.outWG.Add(1)
	go s.outcomeLoop()

	s.wg.Add(1)
	go s.dispatcher()
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.mu.Lock()
	jobs := len(s.reg)
	s.mu.Unlock()
	s.log.Info("scheduler started", logx.Int("workers", workers), logx.Int("jobs", jobs), logx.String("tz", s.loc.String()))
	return nil
}

// Stop shuts the engine down. With wait=true it blocks until in-flight
// executions finish and their outcomes are recorded; with wait=false it
// returns immediately and in-flight executions drain in the background.
func (s *Scheduler) Stop(ctx context.Context, wait bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if !s.running {
		done := s.stopDone
		s.mu.Unlock()
		if done == nil {
			s.log.Warn("scheduler is not running")
			return nil
		}
		if wait {
			select {
			case <-done:
			case <-ctx.Done():
				return schedErr("stop", "", ctx.Err())
			}
		}
		return nil
	}

	s.running = false
	done := make(chan struct{})
	s.stopDone = done
	close(s.stopCh)
	outcomes := s.outcomes
	queue := s.queue
	s.mu.Unlock()

	go func() {
		s.wg.Wait()
		// Release firings that were queued but never picked up.
		for drained := false; !drained; {
			select {
			case exec := <-queue:
				exec.state.release()
			default:
				drained = true
			}
		}
		// All producers are gone; let the outcome loop drain and exit.
		close(outcomes)
		s.outWG.Wait()
		s.mu.Lock()
		s.stopDone = nil
		s.mu.Unlock()
		close(done)
	}()

	if !wait {
		s.log.Info("scheduler stopping in background")
		return nil
	}

	select {
	case <-done:
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out", logx.Err(ctx.Err()))
		return schedErr("stop", "", ctx.Err())
	}
}

// Running reports whether the engine is dispatching.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// AddJob validates the trigger, persists the definition and registers the
// job. An existing job with the same id is replaced. Returns the final job
// id.
func (s *Scheduler) AddJob(ctx context.Context, req JobRequest) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	task := strings.TrimSpace(req.Task)
	if task == "" {
		return "", schedErr("add_job", req.ID, fmt.Errorf("task name required"))
	}
	run, ok := s.tasks.Resolve(task)
	if !ok {
		return "", schedErr("add_job", req.ID, fmt.Errorf("%w: %q", ErrTaskUnknown, task))
	}
	sched, err := req.Trigger.validate(s.parser)
	if err != nil {
		return "", schedErr("add_job", req.ID, err)
	}

	jobID := strings.TrimSpace(req.ID)
	if jobID == "" {
		jobID = genJobID(req.Type)
	}
	now := time.Now().In(s.loc)

	rec := store.JobRecord{
		JobID:       jobID,
		JobType:     string(req.Type),
		Task:        task,
		TriggerType: string(req.Trigger.Type),
		TriggerArgs: req.Trigger.Args(),
		CreatedAt:   now,
	}
	if err := s.jstore.Put(ctx, rec); err != nil {
		return "", schedErr("add_job", jobID, fmt.Errorf("persist job: %w", err))
	}

	e := &entry{
		id:      jobID,
		jobID:   jobID,
		task:    task,
		typ:     req.Type,
		trigger: req.Trigger,
		sched:   sched,
		run:     run,
		state:   &runState{},
		next:    req.Trigger.next(now, sched),
	}
	meta := &jobMeta{
		id:        jobID,
		typ:       req.Type,
		task:      task,
		trigger:   req.Trigger,
		createdAt: now,
		status:    StatusPending,
	}

	s.mu.Lock()
	s.removeLocked(jobID) // replace semantics: drop any previous entry and its retries
	s.entries[jobID] = e
	s.reg[jobID] = meta
	s.mu.Unlock()
	s.wake()

	s.log.Info("job scheduled",
		logx.String("job", jobID),
		logx.String("type", string(req.Type)),
		logx.String("task", task),
		logx.String("trigger", string(req.Trigger.Type)),
		logx.Time("next_run", e.next),
	)
	return jobID, nil
}

// RemoveJob removes a job, its pending retries and its persisted record.
// Removing an unknown id is not an error; it returns false.
func (s *Scheduler) RemoveJob(ctx context.Context, jobID string) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	removed := s.removeLocked(jobID)
	s.mu.Unlock()

	if err := s.jstore.Delete(ctx, jobID); err != nil {
		s.log.Warn("job record delete failed", logx.String("job", jobID), logx.Err(err))
	}
	if removed {
		s.wake()
		s.log.Info("job removed", logx.String("job", jobID))
	}
	return removed
}

// removeLocked drops the job's registry record, its primary entry and any
// derived retry entries. Call with s.mu held.
func (s *Scheduler) removeLocked(jobID string) bool {
	removed := false
	if _, ok := s.reg[jobID]; ok {
		delete(s.reg, jobID)
		removed = true
	}
	for id, e := range s.entries {
		if e.jobID == jobID {
			delete(s.entries, id)
			removed = true
		}
	}
	return removed
}

// PauseJob suspends trigger evaluation for a job without losing its
// registration. Pending retries are suspended with it.
func (s *Scheduler) PauseJob(ctx context.Context, jobID string) error {
	return s.setPaused(ctx, "pause_job", jobID, true)
}

// ResumeJob re-enables a paused job and recomputes its next fire time.
func (s *Scheduler) ResumeJob(ctx context.Context, jobID string) error {
	return s.setPaused(ctx, "resume_job", jobID, false)
}

func (s *Scheduler) setPaused(ctx context.Context, op, jobID string, paused bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	now := time.Now().In(s.loc)

	s.mu.Lock()
	meta, ok := s.reg[jobID]
	if !ok {
		s.mu.Unlock()
		return schedErr(op, jobID, fmt.Errorf("job not found"))
	}
	meta.paused = paused
	for _, e := range s.entries {
		if e.jobID != jobID {
			continue
		}
		e.paused = paused
		if paused {
			e.next = time.Time{}
		} else if e.trigger.Type == TriggerDate {
			e.next = e.trigger.RunAt
		} else {
			e.next = e.trigger.next(now, e.sched)
		}
	}
	rec := recordFromMeta(meta)
	s.mu.Unlock()
	s.wake()

	if err := s.jstore.Put(ctx, rec); err != nil {
		s.log.Warn("job record update failed", logx.String("job", jobID), logx.Err(err))
	}
	if paused {
		s.log.Info("job paused", logx.String("job", jobID))
	} else {
		s.log.Info("job resumed", logx.String("job", jobID))
	}
	return nil
}

// JobInfo returns a snapshot of one job, or ok=false when the id is
// unknown.
func (s *Scheduler) JobInfo(jobID string) (JobInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, ok := s.reg[jobID]
	if !ok {
		return JobInfo{}, false
	}
	var next time.Time
	if e, ok := s.entries[jobID]; ok {
		next = e.next
	}
	return meta.info(next), true
}

// ListJobs returns snapshots of all jobs, optionally filtered by type
// (empty type matches everything). Order follows job id.
func (s *Scheduler) ListJobs(typ JobType) []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobInfo, 0, len(s.reg))
	for id, meta := range s.reg {
		if typ != "" && meta.typ != typ {
			continue
		}
		var next time.Time
		if e, ok := s.entries[id]; ok {
			next = e.next
		}
		out = append(out, meta.info(next))
	}
	sortJobInfos(out)
	return out
}

// History returns up to limit execution records, most recent last.
func (s *Scheduler) History(limit int) []Execution {
	return s.history.tail(limit)
}

// Status aggregates engine statistics.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	st := Status{
		Running:   s.running,
		TotalJobs: len(s.reg),
	}
	for _, meta := range s.reg {
		switch meta.status {
		case StatusPending:
			st.ActiveJobs++
		case StatusFailed:
			st.FailedJobs++
		case StatusCompleted:
			st.CompletedJobs++
		}
		st.TotalExecutions += meta.runCount
		st.TotalErrors += meta.errorCount
	}
	s.mu.Unlock()
	st.HistoryEntries = s.history.len()
	return st
}

// loadJobs rebuilds the registry and the live entries from the job store.
// Records whose task name is not registered stay in the registry (visible
// via JobInfo) but are not scheduled.
func (s *Scheduler) loadJobs(ctx context.Context) error {
	recs, err := s.jstore.List(ctx)
	if err != nil {
		return fmt.Errorf("load jobs: %w", err)
	}
	now := time.Now().In(s.loc)

	for _, rec := range recs {
		trig, err := TriggerFromArgs(TriggerType(rec.TriggerType), rec.TriggerArgs)
		if err != nil {
			s.log.Warn("skipping job with bad trigger record", logx.String("job", rec.JobID), logx.Err(err))
			continue
		}
		sched, err := trig.validate(s.parser)
		if err != nil {
			s.log.Warn("skipping job with bad trigger record", logx.String("job", rec.JobID), logx.Err(err))
			continue
		}

		meta := &jobMeta{
			id:         rec.JobID,
			typ:        JobType(rec.JobType),
			task:       rec.Task,
			trigger:    trig,
			createdAt:  rec.CreatedAt,
			status:     StatusPending,
			paused:     rec.Paused,
			runCount:   rec.RunCount,
			errorCount: rec.ErrorCount,
		}

		run, ok := s.tasks.Resolve(rec.Task)
		if !ok {
			s.log.Warn("job loaded but task not registered; job will not fire",
				logx.String("job", rec.JobID), logx.String("task", rec.Task))
			s.mu.Lock()
			s.reg[rec.JobID] = meta
			s.mu.Unlock()
			continue
		}

		e := &entry{
			id:      rec.JobID,
			jobID:   rec.JobID,
			task:    rec.Task,
			typ:     meta.typ,
			trigger: trig,
			sched:   sched,
			run:     run,
			state:   &runState{},
			paused:  rec.Paused,
		}
		if !rec.Paused {
			if trig.Type == TriggerDate {
				e.next = trig.RunAt
			} else {
				e.next = trig.next(now, sched)
			}
		}

		s.mu.Lock()
		s.entries[rec.JobID] = e
		s.reg[rec.JobID] = meta
		s.mu.Unlock()
		s.log.Debug("job restored", logx.String("job", rec.JobID), logx.String("task", rec.Task), logx.Time("next_run", e.next))
	}
	return nil
}

// wake nudges the dispatcher to recompute its timer.
func (s *Scheduler) wake() {
	s.mu.Lock()
	kick := s.kick
	s.mu.Unlock()
	if kick == nil {
		return
	}
	select {
	case kick <- struct{}{}:
	default:
	}
}

func (s *Scheduler) publish(typ string, ev JobEvent) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: time.Now(), Data: ev})
}

func genJobID(typ JobType) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	t := string(typ)
	if t == "" {
		t = "job"
	}
	return fmt.Sprintf("%s_%s", t, hex[:8])
}

func recordFromMeta(m *jobMeta) store.JobRecord {
	return store.JobRecord{
		JobID:       m.id,
		JobType:     string(m.typ),
		Task:        m.task,
		TriggerType: string(m.trigger.Type),
		TriggerArgs: m.trigger.Args(),
		CreatedAt:   m.createdAt,
		Paused:      m.paused,
		RunCount:    m.runCount,
		ErrorCount:  m.errorCount,
	}
}

func sortJobInfos(infos []JobInfo) {
	sort.Slice(infos, func(i, j int) bool { return infos[i].JobID < infos[j].JobID })
}
