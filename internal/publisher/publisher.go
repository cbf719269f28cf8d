// Package publisher pushes approved content to the platform API. The
// two-phase flow (upload a media container, then publish it) mirrors the
// Instagram Graph API.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Post is the publishable unit handed to a Publisher.
type Post struct {
	Caption   string
	ImagePath string
}

// Published describes the platform-side result.
type Published struct {
	PostID      string    `json:"post_id"`
	Permalink   string    `json:"permalink,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// Publisher is the port the content pipeline publishes through.
type Publisher interface {
	Publish(ctx context.Context, post Post) (Published, error)
}

const maxCaptionLen = 2200

var ErrAuth = errors.New("authentication failed")

// RateLimitError reports a platform 429 with its suggested backoff.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

func validatePost(post Post) error {
	if post.Caption == "" {
		return fmt.Errorf("caption cannot be empty")
	}
	if len(post.Caption) > maxCaptionLen {
		return fmt.Errorf("caption too long: %d characters (max %d)", len(post.Caption), maxCaptionLen)
	}
	return nil
}
