package scheduler

import (
	"testing"
	"time"
)

func TestRetryDelayBackoff(t *testing.T) {
	t.Parallel()
	base := time.Minute
	max := time.Hour

	tests := []struct {
		errorCount int
		want       time.Duration
	}{
		{1, 2 * time.Minute},
		{2, 4 * time.Minute},
		{3, 8 * time.Minute},
		{5, 32 * time.Minute},
		{6, time.Hour},
		{10, time.Hour},
		{100, time.Hour},
	}
	for _, tt := range tests {
		if got := retryDelay(base, max, tt.errorCount); got != tt.want {
			t.Fatalf("retryDelay(%d) = %v, want %v", tt.errorCount, got, tt.want)
		}
	}
}

func TestRetryDelayMonotonic(t *testing.T) {
	t.Parallel()
	prev := time.Duration(0)
	for n := 1; n <= 20; n++ {
		d := retryDelay(time.Minute, time.Hour, n)
		if d < prev {
			t.Fatalf("delay decreased at n=%d: %v < %v", n, d, prev)
		}
		if d > time.Hour {
			t.Fatalf("delay exceeds cap at n=%d: %v", n, d)
		}
		prev = d
	}
}

func TestHistoryBound(t *testing.T) {
	t.Parallel()
	h := newHistoryLog(100)
	for i := 0; i < 250; i++ {
		h.append(Execution{JobID: "job", ExecutedAt: time.Unix(int64(i), 0)})
	}
	if h.len() != 100 {
		t.Fatalf("len = %d, want 100", h.len())
	}
	all := h.tail(0)
	if len(all) != 100 {
		t.Fatalf("tail(0) = %d entries, want 100", len(all))
	}
	// most recent last
	if !all[len(all)-1].ExecutedAt.Equal(time.Unix(249, 0)) {
		t.Fatalf("last entry = %v", all[len(all)-1].ExecutedAt)
	}
	if got := h.tail(10); len(got) != 10 || !got[9].ExecutedAt.Equal(time.Unix(249, 0)) {
		t.Fatalf("tail(10) wrong window")
	}
}

func TestRunStateCoalesces(t *testing.T) {
	t.Parallel()
	var s runState
	if !s.tryAcquire() {
		t.Fatal("first acquire should succeed")
	}
	if s.tryAcquire() {
		t.Fatal("second acquire should be rejected while inflight")
	}
	s.release()
	if !s.tryAcquire() {
		t.Fatal("acquire after release should succeed")
	}
}
