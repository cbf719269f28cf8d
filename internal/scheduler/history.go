package scheduler

import "sync"

// historyLog is a bounded FIFO of the most recent executions, oldest
// evicted first. In-memory only; lost on restart.
type historyLog struct {
	mu    sync.Mutex
	max   int
	items []Execution
}

func newHistoryLog(max int) *historyLog {
	if max <= 0 {
		max = 1000
	}
	return &historyLog{max: max}
}

func (h *historyLog) append(e Execution) {
	h.mu.Lock()
	h.items = append(h.items, e)
	if len(h.items) > h.max {
		h.items = h.items[len(h.items)-h.max:]
	}
	h.mu.Unlock()
}

// tail returns up to limit entries, most recent last. limit <= 0 returns
// everything retained.
func (h *historyLog) tail(limit int) []Execution {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.items)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Execution, n)
	copy(out, h.items[len(h.items)-n:])
	return out
}

func (h *historyLog) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.items)
}
