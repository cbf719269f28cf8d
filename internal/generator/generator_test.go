package generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	logx "aisocials/pkg/logx"
)

func TestOllamaGenerateCaption(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("stream should be disabled")
		}
		if req.Model != "testmodel" {
			t.Errorf("model = %q", req.Model)
		}
		if !strings.Contains(req.Prompt, "trail running") {
			t.Errorf("prompt missing user text: %q", req.Prompt)
		}
		_ = json.NewEncoder(w).Encode(ollamaResponse{
			Response: "Morning miles before the world wakes up. #trailrunning #morningrun",
			Done:     true,
		})
	}))
	defer srv.Close()

	g := NewOllama(OllamaConfig{BaseURL: srv.URL, Model: "testmodel", MaxHashtags: 6}, logx.Nop())
	c, err := g.GenerateCaption(context.Background(), "a caption about trail running", GenerateOptions{Theme: "fitness"})
	if err != nil {
		t.Fatal(err)
	}
	if c.Text != "Morning miles before the world wakes up." {
		t.Fatalf("text = %q", c.Text)
	}
	if len(c.Hashtags) != 6 {
		t.Fatalf("hashtags = %v", c.Hashtags)
	}
	if c.Hashtags[0] != "#trailrunning" {
		t.Fatalf("model tags should come first: %v", c.Hashtags)
	}
	if !strings.Contains(c.Full, "#trailrunning") || !strings.HasPrefix(c.Full, c.Text) {
		t.Fatalf("full = %q", c.Full)
	}
}

func TestOllamaGenerateCaptionErrors(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewOllama(OllamaConfig{BaseURL: srv.URL}, logx.Nop())
	ctx := context.Background()

	if _, err := g.GenerateCaption(ctx, "", GenerateOptions{}); err == nil {
		t.Fatal("empty prompt should fail")
	}
	if _, err := g.GenerateCaption(ctx, strings.Repeat("x", maxPromptLen+1), GenerateOptions{}); err == nil {
		t.Fatal("oversized prompt should fail")
	}
	if _, err := g.GenerateCaption(ctx, "ok prompt", GenerateOptions{}); err == nil {
		t.Fatal("server error should surface")
	}
}

func TestOllamaEmptyResponse(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaResponse{Response: "   ", Done: true})
	}))
	defer srv.Close()

	g := NewOllama(OllamaConfig{BaseURL: srv.URL}, logx.Nop())
	if _, err := g.GenerateCaption(context.Background(), "prompt", GenerateOptions{}); err == nil {
		t.Fatal("blank model output should fail")
	}
}

func TestOllamaPing(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	g := NewOllama(OllamaConfig{BaseURL: srv.URL}, logx.Nop())
	if err := g.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}

	srv.Close()
	if err := g.Ping(context.Background()); err == nil {
		t.Fatal("ping to a dead server should fail")
	}
}
