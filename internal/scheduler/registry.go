package scheduler

import "time"

// jobMeta is the in-memory registry record for one registered job. It is
// rebuilt from the job store at startup; volatile fields (last error, last
// run) do not survive restarts, counters are persisted best-effort.
//
// All jobMeta access is guarded by Scheduler.mu.
type jobMeta struct {
	id        string
	typ       JobType
	task      string
	trigger   Trigger
	createdAt time.Time

	status     JobStatus
	paused     bool
	runCount   int
	errorCount int
	lastError  string
	lastRun    time.Time
}

func (m *jobMeta) info(next time.Time) JobInfo {
	return JobInfo{
		JobID:       m.id,
		JobType:     m.typ,
		Task:        m.task,
		Status:      m.status,
		Paused:      m.paused,
		CreatedAt:   m.createdAt,
		LastRun:     m.lastRun,
		NextRun:     next,
		RunCount:    m.runCount,
		ErrorCount:  m.errorCount,
		LastError:   m.lastError,
		TriggerType: m.trigger.Type,
		TriggerArgs: m.trigger.Args(),
	}
}
