package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate performs structural checks that don't need live services. It is
// the default Watch validator; the composition root may wrap it with
// deeper checks (e.g. task name resolution).
func (c *Config) Validate() error {
	durations := []struct {
		path string
		raw  string
	}{
		{"scheduler.retry_base", c.Scheduler.RetryBase},
		{"scheduler.retry_max_delay", c.Scheduler.RetryMaxDelay},
		{"scheduler.misfire_grace", c.Scheduler.MisfireGrace},
		{"storage.busy_timeout", c.Storage.BusyTimeout},
		{"generator.timeout", c.Generator.Timeout},
		{"publisher.timeout", c.Publisher.Timeout},
	}
	if c.Generator.Images != nil {
		durations = append(durations,
			struct{ path, raw string }{"generator.images.timeout", c.Generator.Images.Timeout},
		)
	}
	if c.Reviewer != nil {
		durations = append(durations,
			struct{ path, raw string }{"reviewer.poll_timeout", c.Reviewer.PollTimeout},
			struct{ path, raw string }{"reviewer.decision_timeout", c.Reviewer.DecisionTimeout},
		)
	}
	for _, d := range durations {
		if _, err := ParseDurationField(d.path, d.raw); err != nil {
			return err
		}
	}

	if tz := strings.TrimSpace(c.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("scheduler.timezone: %w", err)
		}
	}

	seen := map[string]bool{}
	for i, j := range c.Jobs {
		path := fmt.Sprintf("jobs[%d]", i)
		if strings.TrimSpace(j.Task) == "" {
			return fmt.Errorf("%s: task is required", path)
		}
		// A stable id is what lets a reload or restart replace the job
		// instead of registering a second copy.
		id := strings.TrimSpace(j.ID)
		if id == "" {
			return fmt.Errorf("%s: id is required", path)
		}
		if seen[id] {
			return fmt.Errorf("%s: duplicate job id %q", path, id)
		}
		seen[id] = true
		if err := j.Trigger.check(path + ".trigger"); err != nil {
			return err
		}
	}
	return nil
}

func (t TriggerConfig) check(path string) error {
	switch strings.ToLower(strings.TrimSpace(t.Type)) {
	case "interval":
		if t.Seconds <= 0 && t.Minutes <= 0 && t.Hours <= 0 && t.Days <= 0 {
			return fmt.Errorf("%s: interval needs at least one of seconds/minutes/hours/days", path)
		}
	case "cron":
		if strings.TrimSpace(t.Expression) == "" {
			return fmt.Errorf("%s: cron needs an expression", path)
		}
	case "date":
		if strings.TrimSpace(t.RunDate) == "" {
			return fmt.Errorf("%s: date needs run_date", path)
		}
		if _, err := time.Parse(time.RFC3339, t.RunDate); err != nil {
			return fmt.Errorf("%s: run_date: %w", path, err)
		}
	default:
		return fmt.Errorf("%s: unknown trigger type %q", path, t.Type)
	}
	return nil
}
