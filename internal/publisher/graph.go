package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	logx "aisocials/pkg/logx"
)

const defaultGraphURL = "https://graph.instagram.com/v23.0"

const maxImageBytes = 8 * 1024 * 1024

// GraphConfig configures the Graph API publisher.
type GraphConfig struct {
	Account     string
	AccessToken string
	BaseURL     string
	Timeout     time.Duration
}

// Graph publishes through the platform's Graph API: upload the media
// container first, then publish it with the caption.
type Graph struct {
	cfg    GraphConfig
	client *http.Client
	log    logx.Logger
}

func NewGraph(cfg GraphConfig, log logx.Logger) (*Graph, error) {
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("access token is required for publishing")
	}
	if cfg.Account == "" {
		return nil, fmt.Errorf("account id is required for publishing")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGraphURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Graph{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
	}, nil
}

func (g *Graph) Publish(ctx context.Context, post Post) (Published, error) {
	if err := validatePost(post); err != nil {
		return Published{}, err
	}

	mediaID, err := g.uploadMedia(ctx, post.ImagePath)
	if err != nil {
		return Published{}, fmt.Errorf("upload media: %w", err)
	}

	postID, err := g.publishMedia(ctx, mediaID, post.Caption)
	if err != nil {
		return Published{}, fmt.Errorf("publish media: %w", err)
	}

	pub := Published{PostID: postID, PublishedAt: time.Now()}
	if link, err := g.permalink(ctx, postID); err == nil {
		pub.Permalink = link
	} else {
		g.log.Debug("permalink lookup failed", logx.String("post", postID), logx.Err(err))
	}

	g.log.Info("post published", logx.String("post", postID), logx.String("account", g.cfg.Account))
	return pub, nil
}

func (g *Graph) uploadMedia(ctx context.Context, imagePath string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/media", g.cfg.BaseURL, g.cfg.Account)

	var req *http.Request
	if imagePath != "" {
		if err := validateImage(imagePath); err != nil {
			return "", err
		}
		body, contentType, err := multipartImage(imagePath, g.cfg.AccessToken)
		if err != nil {
			return "", err
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", contentType)
	} else {
		form := url.Values{"access_token": {g.cfg.AccessToken}}
		var err error
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := g.do(req, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("no media id in response")
	}
	return out.ID, nil
}

func (g *Graph) publishMedia(ctx context.Context, mediaID, caption string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/media_publish", g.cfg.BaseURL, g.cfg.Account)
	form := url.Values{
		"creation_id":  {mediaID},
		"caption":      {caption},
		"access_token": {g.cfg.AccessToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out struct {
		ID string `json:"id"`
	}
	if err := g.do(req, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("no post id in response")
	}
	return out.ID, nil
}

func (g *Graph) permalink(ctx context.Context, postID string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s?fields=permalink&access_token=%s",
		g.cfg.BaseURL, postID, url.QueryEscape(g.cfg.AccessToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	var out struct {
		Permalink string `json:"permalink"`
	}
	if err := g.do(req, &out); err != nil {
		return "", err
	}
	return out.Permalink, nil
}

func (g *Graph) do(req *http.Request, out any) error {
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return json.NewDecoder(resp.Body).Decode(out)
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := time.Minute
		if s := resp.Header.Get("Retry-After"); s != "" {
			if secs, err := strconv.Atoi(s); err == nil {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return &RateLimitError{RetryAfter: retryAfter}
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrAuth
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
}

func validateImage(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("image file: %w", err)
	}
	if fi.IsDir() {
		return fmt.Errorf("image path is a directory: %s", path)
	}
	if fi.Size() > maxImageBytes {
		return fmt.Errorf("image file too large: %d bytes (max %d)", fi.Size(), maxImageBytes)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png":
		return nil
	default:
		return fmt.Errorf("unsupported image format: %s", filepath.Ext(path))
	}
}

func multipartImage(path, token string) (io.Reader, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("access_token", token); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
