package generator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	logx "aisocials/pkg/logx"
)

// ImageGenerator is the port for producing a post image from a prompt.
// Implementations return the path of the saved image file.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

const maxImagePromptLen = 1000

// ImagesConfig configures the OpenAI-compatible image client.
type ImagesConfig struct {
	BaseURL string
	APIKey  string
	// Model defaults to "dall-e-3".
	Model string
	// Size defaults to "1024x1024".
	Size string
	// OutputDir is where generated images are written. Created on demand.
	OutputDir string
	Timeout   time.Duration
}

// Images generates post images through an OpenAI-compatible
// /v1/images/generations endpoint and saves them locally.
type Images struct {
	cfg    ImagesConfig
	client *http.Client
	log    logx.Logger
	seq    atomic.Int64
}

func NewImages(cfg ImagesConfig, log logx.Logger) (*Images, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("image api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = "dall-e-3"
	}
	if cfg.Size == "" {
		cfg.Size = "1024x1024"
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = filepath.Join(os.TempDir(), "aisocials", "images")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Images{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
	}, nil
}

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
}

type imageResponse struct {
	Data []struct {
		B64JSON       string `json:"b64_json"`
		RevisedPrompt string `json:"revised_prompt,omitempty"`
	} `json:"data"`
}

// GenerateImage asks the model for one image and writes it under OutputDir.
func (g *Images) GenerateImage(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", fmt.Errorf("image prompt cannot be empty")
	}
	if len(prompt) > maxImagePromptLen {
		return "", fmt.Errorf("image prompt too long (%d > %d)", len(prompt), maxImagePromptLen)
	}

	payload, err := json.Marshal(imageRequest{
		Model:          g.cfg.Model,
		Prompt:         prompt,
		N:              1,
		Size:           g.cfg.Size,
		ResponseFormat: "b64_json",
	})
	if err != nil {
		return "", err
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/v1/images/generations", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("image request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("image api status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out imageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("image response decode: %w", err)
	}
	if len(out.Data) == 0 || out.Data[0].B64JSON == "" {
		return "", fmt.Errorf("no image data in response")
	}
	raw, err := base64.StdEncoding.DecodeString(out.Data[0].B64JSON)
	if err != nil {
		return "", fmt.Errorf("image data decode: %w", err)
	}

	if err := os.MkdirAll(g.cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("image output dir: %w", err)
	}
	name := fmt.Sprintf("generated_%s_%d.png", time.Now().Format("20060102_150405"), g.seq.Add(1))
	path := filepath.Join(g.cfg.OutputDir, name)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("image save: %w", err)
	}

	g.log.Info("image generated",
		logx.String("model", g.cfg.Model),
		logx.String("path", path),
		logx.Int("bytes", len(raw)),
		logx.Duration("took", time.Since(start)),
	)
	return path, nil
}
