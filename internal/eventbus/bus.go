// Package eventbus decouples the scheduler and the content pipeline from
// their observers. The engine publishes job lifecycle events (job.started,
// job.completed, job.missed, job.retry_scheduled) and the pipeline
// publishes content events (content.published, content.blocked); nothing
// in either depends on who listens.
package eventbus

import (
	"sync"
	"time"
)

// Event is one lifecycle signal. Data is event-specific and should stay
// small and JSON-serializable.
type Event struct {
	Type string
	Time time.Time
	Data any
}

// Bus fans events out to subscribers. Publish never blocks; a subscriber
// whose buffer is full loses the event.
type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

type sub struct {
	ch     chan Event
	closed bool
}

type fanout struct {
	mu   sync.Mutex
	subs []*sub
}

// New returns an in-memory Bus. It owns no goroutines; delivery happens on
// the publisher's goroutine.
func New() Bus {
	return &fanout{}
}

func (b *fanout) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		if s.closed {
			continue
		}
		select {
		case s.ch <- e:
		default:
		}
	}
}

func (b *fanout) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	s := &sub{ch: make(chan Event, buffer)}

	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s.closed {
			return
		}
		s.closed = true
		for i, cur := range b.subs {
			if cur == s {
				last := len(b.subs) - 1
				b.subs[i] = b.subs[last]
				b.subs[last] = nil
				b.subs = b.subs[:last]
				break
			}
		}
		close(s.ch)
	}
	return s.ch, unsubscribe
}
