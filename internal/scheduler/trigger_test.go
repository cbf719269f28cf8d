package scheduler

import (
	"testing"
	"time"

	"github.com/robfig/cron/v3"
)

func testParser() cron.Parser {
	return cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}

func TestTriggerValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		trigger Trigger
		wantErr bool
	}{
		{name: "interval seconds", trigger: Interval(30 * time.Second)},
		{name: "interval mixed units", trigger: Trigger{Type: TriggerInterval, Minutes: 5, Seconds: 30}},
		{name: "interval empty", trigger: Trigger{Type: TriggerInterval}, wantErr: true},
		{name: "interval negative", trigger: Trigger{Type: TriggerInterval, Seconds: -1}, wantErr: true},
		{name: "cron", trigger: Cron("*/5 * * * *")},
		{name: "cron descriptor", trigger: Cron("@hourly")},
		{name: "cron empty", trigger: Trigger{Type: TriggerCron}, wantErr: true},
		{name: "cron garbage", trigger: Cron("not a cron"), wantErr: true},
		{name: "date", trigger: Date(time.Now().Add(time.Hour))},
		{name: "date zero", trigger: Trigger{Type: TriggerDate}, wantErr: true},
		{name: "unknown type", trigger: Trigger{Type: "weekly"}, wantErr: true},
	}

	parser := testParser()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.trigger.validate(parser)
			if tt.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestTriggerNext(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	iv := Trigger{Type: TriggerInterval, Minutes: 10}
	if got := iv.next(now, nil); !got.Equal(now.Add(10 * time.Minute)) {
		t.Fatalf("interval next = %v", got)
	}

	ct := Cron("0 * * * *")
	sched, err := ct.validate(testParser())
	if err != nil {
		t.Fatalf("cron validate: %v", err)
	}
	if got := ct.next(now, sched); !got.Equal(time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)) {
		t.Fatalf("cron next = %v", got)
	}

	at := now.Add(time.Hour)
	if got := Date(at).next(now, nil); !got.Equal(at) {
		t.Fatalf("date next = %v", got)
	}
}

func TestIntervalSubSecond(t *testing.T) {
	t.Parallel()
	parser := testParser()

	trig := Interval(50 * time.Millisecond)
	if _, err := trig.validate(parser); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got := trig.every(); got != 50*time.Millisecond {
		t.Fatalf("every = %v, want 50ms", got)
	}
	// Persisted form rounds up to whole seconds.
	if args := trig.Args(); args["seconds"] != 1 {
		t.Fatalf("Args seconds = %v, want 1", args["seconds"])
	}

	mixed := Interval(1500 * time.Millisecond)
	if got := mixed.every(); got != 1500*time.Millisecond {
		t.Fatalf("every = %v, want 1.5s", got)
	}
	if args := mixed.Args(); args["seconds"] != 2 {
		t.Fatalf("Args seconds = %v, want 2", args["seconds"])
	}

	if _, err := Interval(-time.Second).validate(parser); err == nil {
		t.Fatal("expected error for negative interval")
	}
}

func TestTriggerArgsRoundTrip(t *testing.T) {
	t.Parallel()
	triggers := []Trigger{
		{Type: TriggerInterval, Minutes: 5, Seconds: 30},
		Cron("*/15 * * * *"),
		Date(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
	}
	for _, trig := range triggers {
		got, err := TriggerFromArgs(trig.Type, trig.Args())
		if err != nil {
			t.Fatalf("TriggerFromArgs(%s): %v", trig.Type, err)
		}
		if got.Type != trig.Type || got.Expr != trig.Expr || got.every() != trig.every() || !got.RunAt.Equal(trig.RunAt) {
			t.Fatalf("round trip mismatch: got %+v want %+v", got, trig)
		}
	}
}

func TestTriggerFromArgsFloatValues(t *testing.T) {
	t.Parallel()
	// JSON decoding yields float64 for numbers.
	got, err := TriggerFromArgs(TriggerInterval, map[string]any{"seconds": float64(45)})
	if err != nil {
		t.Fatalf("TriggerFromArgs: %v", err)
	}
	if got.Seconds != 45 {
		t.Fatalf("Seconds = %d, want 45", got.Seconds)
	}
}
