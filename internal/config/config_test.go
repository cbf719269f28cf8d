package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return NewManager(path)
}

const sampleYAML = `
logging:
  level: debug
  console: true
scheduler:
  workers: 5
  retry_base: 30s
  timezone: UTC
storage:
  driver: file
  path: ./jobs.json
generator:
  base_url: http://127.0.0.1:11434
  model: llama3
  topics: [nature, lifestyle]
publisher:
  account: acct
  access_token: tok
  dry_run: true
jobs:
  - id: daily_post
    type: content_generation
    task: content.generate
    trigger:
      type: cron
      expression: "0 9 * * *"
`

func TestParseYAML(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, "config.yaml", sampleYAML)
	cfg, err := m.Parse()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Scheduler.Workers != 5 {
		t.Errorf("workers = %d, want 5", cfg.Scheduler.Workers)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
	if len(cfg.Generator.Topics) != 2 || cfg.Generator.Topics[0] != "nature" {
		t.Errorf("topics = %v", cfg.Generator.Topics)
	}
	if !cfg.Publisher.DryRun {
		t.Error("dry_run not parsed")
	}
	if len(cfg.Jobs) != 1 || cfg.Jobs[0].Trigger.Expression != "0 9 * * *" {
		t.Errorf("jobs = %+v", cfg.Jobs)
	}
	if cfg.Reviewer != nil {
		t.Error("reviewer should be nil when section is absent")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, "config.yaml", "scheduler:\n  wokers: 5\n")
	if _, err := m.Parse(); err == nil {
		t.Fatal("misspelled field accepted")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, "config.json", `{"scheduler":{"workers":1}} {"extra":1}`)
	if _, err := m.Parse(); err == nil {
		t.Fatal("trailing tokens accepted")
	}
}

func TestLoadCommitsAndGet(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, "config.yaml", sampleYAML)
	cfg, err := m.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get must return the committed config")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	base := func() *Config {
		return &Config{
			Scheduler: SchedulerConfig{RetryBase: "1m", Timezone: "Europe/Berlin"},
			Jobs: []JobConfig{
				{ID: "a", Type: "content_generation", Task: "content.generate",
					Trigger: TriggerConfig{Type: "interval", Minutes: 30}},
			},
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"bad duration", func(c *Config) { c.Scheduler.RetryBase = "sixty" }, "retry_base"},
		{"negative duration", func(c *Config) { c.Generator.Timeout = "-5s" }, "must be >= 0"},
		{"bad timezone", func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }, "timezone"},
		{"missing task", func(c *Config) { c.Jobs[0].Task = "" }, "task is required"},
		{"missing id", func(c *Config) { c.Jobs[0].ID = "  " }, "id is required"},
		{"duplicate id", func(c *Config) {
			c.Jobs = append(c.Jobs, c.Jobs[0])
		}, "duplicate job id"},
		{"unknown trigger", func(c *Config) { c.Jobs[0].Trigger.Type = "weekly" }, "unknown trigger type"},
		{"empty interval", func(c *Config) {
			c.Jobs[0].Trigger = TriggerConfig{Type: "interval"}
		}, "at least one of"},
		{"cron without expression", func(c *Config) {
			c.Jobs[0].Trigger = TriggerConfig{Type: "cron"}
		}, "expression"},
		{"date without run_date", func(c *Config) {
			c.Jobs[0].Trigger = TriggerConfig{Type: "date"}
		}, "run_date"},
		{"bad run_date", func(c *Config) {
			c.Jobs[0].Trigger = TriggerConfig{Type: "date", RunDate: "tomorrow"}
		}, "run_date"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("err = %v, want substring %q", err, tc.wantSub)
			}
		})
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Errorf("empty = (%v, %v)", d, err)
	}
	if d, err := ParseDurationField("x", " 90s "); err != nil || d != 90*time.Second {
		t.Errorf("90s = (%v, %v)", d, err)
	}
	if _, err := ParseDurationField("x", "ten"); err == nil {
		t.Error("garbage accepted")
	}
	if d, err := ParseDurationOrDefault("x", "", time.Minute); err != nil || d != time.Minute {
		t.Errorf("default = (%v, %v)", d, err)
	}
}

func TestHashBytes(t *testing.T) {
	t.Parallel()
	if hashBytes(nil) != 0 {
		t.Error("empty input must hash to 0")
	}
	a := hashBytes([]byte("one"))
	if a == 0 || a != hashBytes([]byte("one")) {
		t.Error("hash not stable")
	}
	if a == hashBytes([]byte("two")) {
		t.Error("distinct inputs collided")
	}
}

func TestSubscribePublishDropsOldest(t *testing.T) {
	t.Parallel()
	m := NewManager("unused")
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	first := &Config{Scheduler: SchedulerConfig{Workers: 1}}
	second := &Config{Scheduler: SchedulerConfig{Workers: 2}}
	m.publish(first)
	m.publish(second)

	got := <-ch
	if got.Scheduler.Workers != 2 {
		t.Fatalf("workers = %d, want newest config", got.Scheduler.Workers)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()
	m := NewManager("unused")
	ch := m.Subscribe(1)
	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel not closed")
	}
	// second unsubscribe is a no-op
	m.Unsubscribe(ch)
}
