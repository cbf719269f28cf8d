// Package generator produces captions via a local Ollama model and runs
// them through moderation and review before publishing.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	logx "aisocials/pkg/logx"
)

// Caption is one generated piece of content. Text carries no hashtags;
// Full is the publishable form with hashtags appended.
type Caption struct {
	Text        string    `json:"text"`
	Hashtags    []string  `json:"hashtags"`
	Full        string    `json:"full"`
	Model       string    `json:"model"`
	Style       string    `json:"style,omitempty"`
	Theme       string    `json:"theme,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// GenerateOptions tune one generation call.
type GenerateOptions struct {
	Style string
	Theme string
}

// CaptionGenerator is the port the content pipeline generates through.
type CaptionGenerator interface {
	GenerateCaption(ctx context.Context, prompt string, opts GenerateOptions) (Caption, error)
}

const maxPromptLen = 2000

// OllamaConfig configures the HTTP client for a local Ollama server.
type OllamaConfig struct {
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Temperature float64
	MaxHashtags int
}

// Ollama generates captions through Ollama's /api/generate endpoint.
type Ollama struct {
	cfg    OllamaConfig
	client *http.Client
	log    logx.Logger
}

func NewOllama(cfg OllamaConfig, log logx.Logger) *Ollama {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://127.0.0.1:11434"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = "llama3"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.MaxHashtags <= 0 {
		cfg.MaxHashtags = 15
	}
	return &Ollama{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
	}
}

// Ping checks the server is reachable. Called once at startup; generation
// itself does not require a prior Ping.
func (o *Ollama) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.cfg.BaseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama responded with status %d", resp.StatusCode)
	}
	return nil
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// GenerateCaption asks the model for a caption, then splits hashtags out
// of the response and tops them up with theme tags.
func (o *Ollama) GenerateCaption(ctx context.Context, prompt string, opts GenerateOptions) (Caption, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Caption{}, fmt.Errorf("caption prompt cannot be empty")
	}
	if len(prompt) > maxPromptLen {
		return Caption{}, fmt.Errorf("caption prompt too long (%d > %d)", len(prompt), maxPromptLen)
	}

	style := opts.Style
	if style == "" {
		style = "engaging"
	}

	body := ollamaRequest{
		Model:  o.cfg.Model,
		Prompt: fmt.Sprintf("System: %s\n\nUser: %s\n\nAssistant:", systemPrompt(style), prompt),
		Stream: false,
	}
	if o.cfg.Temperature > 0 {
		body.Options = map[string]any{"temperature": o.cfg.Temperature}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return Caption{}, err
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return Caption{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return Caption{}, fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Caption{}, fmt.Errorf("ollama status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Caption{}, fmt.Errorf("ollama response decode: %w", err)
	}
	raw := strings.TrimSpace(out.Response)
	if raw == "" {
		return Caption{}, fmt.Errorf("empty caption received from ollama")
	}

	text, tags := ExtractHashtags(raw)
	tags = EnhanceHashtags(tags, opts.Theme, o.cfg.MaxHashtags)

	c := Caption{
		Text:        text,
		Hashtags:    tags,
		Model:       o.cfg.Model,
		Style:       style,
		Theme:       opts.Theme,
		GeneratedAt: time.Now(),
	}
	c.Full = c.Text
	if len(tags) > 0 {
		c.Full += "\n\n" + strings.Join(tags, " ")
	}

	o.log.Debug("caption generated",
		logx.String("model", o.cfg.Model),
		logx.String("style", style),
		logx.Int("hashtags", len(tags)),
		logx.Duration("took", time.Since(start)),
	)
	return c, nil
}

var stylePrompts = map[string]string{
	"engaging":      "Create captions with opening hooks, questions that invite genuine responses and storytelling elements that build emotional investment.",
	"professional":  "Lead with valuable insight, use confident language, include actionable takeaways and end with a question that invites discussion.",
	"casual":        "Write conversational content that feels like talking to a friend, with natural everyday language and a sense of authenticity.",
	"inspirational": "Craft uplifting content that starts from a relatable challenge and ends with an empowering call to action.",
	"educational":   "Share genuine value with clearly structured points, simple language and actionable takeaways.",
	"storytelling":  "Use classic story structure with sensory details, build curiosity throughout and end with a meaningful insight.",
}

func systemPrompt(style string) string {
	instr, ok := stylePrompts[style]
	if !ok {
		instr = stylePrompts["engaging"]
	}
	return "You are an expert social media copywriter. " + instr +
		" Keep the caption under 2200 characters with the hook in the first 125." +
		" Append strategic, relevant hashtags at the end."
}
