package scheduler

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// TriggerType selects how a job's next fire time is computed.
type TriggerType string

const (
	// TriggerInterval fires repeatedly, spaced by a fixed duration built
	// from seconds/minutes/hours/days components.
	TriggerInterval TriggerType = "interval"
	// TriggerCron fires on a crontab expression (robfig/cron syntax,
	// descriptors like "@hourly" included).
	TriggerCron TriggerType = "cron"
	// TriggerDate fires exactly once at a fixed timestamp.
	TriggerDate TriggerType = "date"
)

// Trigger is the immutable firing rule of a job. Changing a job's trigger
// requires remove + re-add.
type Trigger struct {
	Type TriggerType

	// Interval components; at least one must be > 0.
	Seconds int
	Minutes int
	Hours   int
	Days    int

	// subSecond carries the remainder of an Interval() duration below one
	// second. It never survives persistence; Args rounds up instead.
	subSecond time.Duration

	// Cron expression.
	Expr string

	// One-off fire time.
	RunAt time.Time
}

// Interval builds an interval trigger from a duration. Sub-second
// resolution is honored in memory; the persisted form has whole-second
// granularity, so a sub-second remainder rounds the stored interval up to
// the next second.
func Interval(every time.Duration) Trigger {
	t := Trigger{Type: TriggerInterval, Seconds: int(every / time.Second)}
	if rem := every % time.Second; rem > 0 {
		t.subSecond = rem
	}
	return t
}

// Cron builds a cron trigger.
func Cron(expr string) Trigger {
	return Trigger{Type: TriggerCron, Expr: expr}
}

// Date builds a one-off trigger.
func Date(at time.Time) Trigger {
	return Trigger{Type: TriggerDate, RunAt: at}
}

// every returns the interval duration (interval triggers only).
func (t Trigger) every() time.Duration {
	return time.Duration(t.Days)*24*time.Hour +
		time.Duration(t.Hours)*time.Hour +
		time.Duration(t.Minutes)*time.Minute +
		time.Duration(t.Seconds)*time.Second +
		t.subSecond
}

// validate checks trigger arguments. Cron expressions are validated by the
// cron parser itself; on success the parsed schedule is returned for cron
// triggers (nil otherwise).
func (t Trigger) validate(parser cron.Parser) (cron.Schedule, error) {
	switch t.Type {
	case TriggerInterval:
		if t.Seconds < 0 || t.Minutes < 0 || t.Hours < 0 || t.Days < 0 {
			return nil, fmt.Errorf("%w: interval components must be >= 0", ErrInvalidTrigger)
		}
		if t.every() <= 0 {
			return nil, fmt.Errorf("%w: interval trigger requires at least one time unit", ErrInvalidTrigger)
		}
		return nil, nil
	case TriggerCron:
		if strings.TrimSpace(t.Expr) == "" {
			return nil, fmt.Errorf("%w: cron trigger requires an expression", ErrInvalidTrigger)
		}
		sched, err := parser.Parse(t.Expr)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTrigger, err)
		}
		return sched, nil
	case TriggerDate:
		if t.RunAt.IsZero() {
			return nil, fmt.Errorf("%w: date trigger requires run_date", ErrInvalidTrigger)
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unknown trigger type %q", ErrInvalidTrigger, t.Type)
	}
}

// next computes the fire time after now. For date triggers it returns RunAt
// unconditionally; the entry expires after that single firing.
func (t Trigger) next(now time.Time, sched cron.Schedule) time.Time {
	switch t.Type {
	case TriggerInterval:
		return now.Add(t.every())
	case TriggerCron:
		if sched == nil {
			return time.Time{}
		}
		return sched.Next(now)
	case TriggerDate:
		return t.RunAt
	}
	return time.Time{}
}

// Args renders the trigger as a plain key-value map, the form stored in the
// job store.
func (t Trigger) Args() map[string]any {
	switch t.Type {
	case TriggerInterval:
		m := map[string]any{}
		secs := t.Seconds
		if t.subSecond > 0 {
			secs++
		}
		if secs > 0 {
			m["seconds"] = secs
		}
		if t.Minutes > 0 {
			m["minutes"] = t.Minutes
		}
		if t.Hours > 0 {
			m["hours"] = t.Hours
		}
		if t.Days > 0 {
			m["days"] = t.Days
		}
		return m
	case TriggerCron:
		return map[string]any{"expression": t.Expr}
	case TriggerDate:
		return map[string]any{"run_date": t.RunAt.Format(time.RFC3339Nano)}
	}
	return map[string]any{}
}

// TriggerFromArgs rebuilds a Trigger from its stored form.
func TriggerFromArgs(typ TriggerType, args map[string]any) (Trigger, error) {
	switch typ {
	case TriggerInterval:
		t := Trigger{Type: TriggerInterval}
		var err error
		if t.Seconds, err = intArg(args, "seconds"); err != nil {
			return Trigger{}, err
		}
		if t.Minutes, err = intArg(args, "minutes"); err != nil {
			return Trigger{}, err
		}
		if t.Hours, err = intArg(args, "hours"); err != nil {
			return Trigger{}, err
		}
		if t.Days, err = intArg(args, "days"); err != nil {
			return Trigger{}, err
		}
		return t, nil
	case TriggerCron:
		expr, _ := args["expression"].(string)
		return Trigger{Type: TriggerCron, Expr: expr}, nil
	case TriggerDate:
		raw, _ := args["run_date"].(string)
		if strings.TrimSpace(raw) == "" {
			return Trigger{}, fmt.Errorf("%w: date trigger requires run_date", ErrInvalidTrigger)
		}
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return Trigger{}, fmt.Errorf("%w: bad run_date %q: %v", ErrInvalidTrigger, raw, err)
		}
		return Trigger{Type: TriggerDate, RunAt: at}, nil
	default:
		return Trigger{}, fmt.Errorf("%w: unknown trigger type %q", ErrInvalidTrigger, typ)
	}
}

// intArg tolerates the numeric types JSON decoding can produce.
func intArg(args map[string]any, key string) (int, error) {
	v, ok := args[key]
	if !ok {
		return 0, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: bad %s value %q", ErrInvalidTrigger, key, n.String())
		}
		return int(i), nil
	default:
		return 0, fmt.Errorf("%w: bad %s value %T", ErrInvalidTrigger, key, v)
	}
}
