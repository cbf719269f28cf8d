package generator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	logx "aisocials/pkg/logx"
)

func TestImagesGeneratesAndSavesFile(t *testing.T) {
	t.Parallel()
	imgBytes := []byte("fake png bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images/generations" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key123" {
			t.Errorf("auth = %q", got)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req["model"] != "dall-e-3" || req["response_format"] != "b64_json" {
			t.Errorf("request = %v", req)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{
				{"b64_json": base64.StdEncoding.EncodeToString(imgBytes)},
			},
		})
	}))
	t.Cleanup(srv.Close)

	g, err := NewImages(ImagesConfig{
		BaseURL:   srv.URL,
		APIKey:    "key123",
		OutputDir: t.TempDir(),
	}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}

	path, err := g.GenerateImage(context.Background(), "a mountain lake at sunrise")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(path, ".png") {
		t.Errorf("path = %q", path)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(imgBytes) {
		t.Fatal("saved bytes differ from response payload")
	}
}

func TestImagesPromptValidation(t *testing.T) {
	t.Parallel()
	g, err := NewImages(ImagesConfig{APIKey: "k"}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.GenerateImage(context.Background(), "  "); err == nil {
		t.Error("empty prompt accepted")
	}
	if _, err := g.GenerateImage(context.Background(), strings.Repeat("x", maxImagePromptLen+1)); err == nil {
		t.Error("oversized prompt accepted")
	}
}

func TestImagesServerError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"content_policy_violation"}}`, http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	g, err := NewImages(ImagesConfig{BaseURL: srv.URL, APIKey: "k", OutputDir: t.TempDir()}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.GenerateImage(context.Background(), "prompt"); err == nil || !strings.Contains(err.Error(), "status 400") {
		t.Fatalf("err = %v", err)
	}
}

func TestImagesEmptyData(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	}))
	t.Cleanup(srv.Close)

	g, err := NewImages(ImagesConfig{BaseURL: srv.URL, APIKey: "k", OutputDir: t.TempDir()}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.GenerateImage(context.Background(), "prompt"); err == nil {
		t.Fatal("empty data accepted")
	}
}

func TestNewImagesRequiresKey(t *testing.T) {
	t.Parallel()
	if _, err := NewImages(ImagesConfig{}, logx.Nop()); err == nil {
		t.Fatal("missing api key accepted")
	}
}
