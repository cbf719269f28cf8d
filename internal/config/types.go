package config

type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Storage   StorageConfig   `json:"storage"`

	Generator  GeneratorConfig  `json:"generator"`
	Moderation ModerationConfig `json:"moderation,omitempty"`
	Publisher  PublisherConfig  `json:"publisher"`
	Reviewer   *ReviewerConfig  `json:"reviewer,omitempty"`

	// Jobs are registered (or re-registered, replacing same-id entries)
	// at startup, after persisted jobs have been reloaded.
	Jobs []JobConfig `json:"jobs,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SchedulerConfig controls the job scheduling engine.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
//
// Defaults (when fields are omitted/zero):
//   - workers: 3
//   - queue_size: 64
//   - max_retries: 3
//   - retry_base: "1m" (doubled per consecutive failure)
//   - retry_max_delay: "1h"
//   - misfire_grace: "5m"
//   - history_size: 1000
//   - timezone: "UTC"
type SchedulerConfig struct {
	Workers   int `json:"workers,omitempty"`
	QueueSize int `json:"queue_size,omitempty"`

	MaxRetries    int    `json:"max_retries,omitempty"`
	RetryBase     string `json:"retry_base,omitempty"`
	RetryMaxDelay string `json:"retry_max_delay,omitempty"`

	// MisfireGrace marks firings dispatched later than this window as
	// missed instead of executing them.
	MisfireGrace string `json:"misfire_grace,omitempty"`

	HistorySize int `json:"history_size,omitempty"`

	// Trigger timezone (IANA name).
	Timezone string `json:"timezone,omitempty"`
}

// StorageConfig controls the job persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./aisocials_jobs.json" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// GeneratorConfig controls caption generation via a local Ollama server.
type GeneratorConfig struct {
	// BaseURL of the Ollama HTTP API, e.g. "http://127.0.0.1:11434".
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	// Timeout is a Go duration string for one generation call.
	Timeout string `json:"timeout,omitempty"`
	// Temperature in [0,1]; 0 keeps the model default.
	Temperature float64 `json:"temperature,omitempty"`
	// Style hints prepended to the prompt, e.g. "casual", "inspirational".
	Style string `json:"style,omitempty"`
	// Topics to rotate through when generating content.
	Topics []string `json:"topics,omitempty"`
	// MaxHashtags caps hashtags appended to a caption.
	MaxHashtags int `json:"max_hashtags,omitempty"`
	// Images enables AI image generation for posts. Omitted means
	// caption-only posts.
	Images *ImagesConfig `json:"images,omitempty"`
}

// ImagesConfig configures the OpenAI-compatible image generation API.
type ImagesConfig struct {
	// BaseURL defaults to the OpenAI endpoint.
	BaseURL string `json:"base_url,omitempty"`
	APIKey  string `json:"api_key"`
	// Model defaults to "dall-e-3".
	Model string `json:"model,omitempty"`
	// Size defaults to "1024x1024".
	Size string `json:"size,omitempty"`
	// OutputDir is where generated images are saved.
	OutputDir string `json:"output_dir,omitempty"`
	// Timeout is a Go duration string for one generation call.
	Timeout string `json:"timeout,omitempty"`
}

// ModerationConfig tunes content moderation thresholds.
type ModerationConfig struct {
	// MinScore is the minimum moderation score (0..100) a caption needs
	// to be publishable without manual review. Default 70.
	MinScore int `json:"min_score,omitempty"`
	// MaxHashtags flags captions carrying more than this many hashtags.
	// Default 30.
	MaxHashtags int `json:"max_hashtags,omitempty"`
	// ExtraBlockedTerms extends the built-in blocklist.
	ExtraBlockedTerms []string `json:"extra_blocked_terms,omitempty"`
}

// PublisherConfig controls the publishing pipeline.
type PublisherConfig struct {
	// Account is the handle posts are attributed to.
	Account string `json:"account"`
	// AccessToken for the platform API (do not log).
	AccessToken string `json:"access_token"`
	// BaseURL overrides the platform API endpoint (useful for tests).
	BaseURL string `json:"base_url,omitempty"`
	// RatePerDay caps outgoing publishes; default 25, matching the
	// platform's daily posting quota.
	RatePerDay int `json:"rate_per_day,omitempty"`
	// Timeout is a Go duration string for one publish call.
	Timeout string `json:"timeout,omitempty"`
	// DryRun logs instead of calling the platform API.
	DryRun bool `json:"dry_run,omitempty"`
}

// ReviewerConfig controls the Telegram review bot. If the whole section
// is omitted, generated content skips manual review.
type ReviewerConfig struct {
	Token string `json:"token"`
	// ReviewerIDs are the Telegram user ids allowed to approve content.
	ReviewerIDs []int64 `json:"reviewer_ids"`
	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`
	// DecisionTimeout bounds how long a submission waits for a verdict
	// before it is treated as rejected. Default "1h".
	DecisionTimeout string `json:"decision_timeout,omitempty"`
}

// JobConfig declares one scheduled job.
type JobConfig struct {
	// ID must be stable; reloads and restarts replace the job under the
	// same id rather than adding a new one.
	ID      string        `json:"id"`
	Type    string        `json:"type"`
	Task    string        `json:"task"`
	Trigger TriggerConfig `json:"trigger"`
}

// TriggerConfig is the on-disk trigger form.
//
// type "interval" uses seconds/minutes/hours/days (at least one > 0),
// type "cron" uses expression, type "date" uses run_date (RFC 3339).
type TriggerConfig struct {
	Type       string `json:"type"`
	Seconds    int    `json:"seconds,omitempty"`
	Minutes    int    `json:"minutes,omitempty"`
	Hours      int    `json:"hours,omitempty"`
	Days       int    `json:"days,omitempty"`
	Expression string `json:"expression,omitempty"`
	RunDate    string `json:"run_date,omitempty"`
}
