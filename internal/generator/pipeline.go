package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"aisocials/internal/eventbus"
	"aisocials/internal/moderation"
	"aisocials/internal/publisher"
	logx "aisocials/pkg/logx"
)

// Reviewer is the human-approval port. A nil Reviewer means content is
// published on moderation confidence alone.
type Reviewer interface {
	Submit(ctx context.Context, id, caption string, score float64, warnings []string) (approved bool, err error)
}

// PipelineConfig tunes the generate-moderate-review-publish flow.
type PipelineConfig struct {
	// Topics are rotated round-robin across runs.
	Topics []string
	Style  string
	// MinConfidence (0..1) below which content needs review before
	// publishing. Default 0.7.
	MinConfidence float64
}

// maxSpooled bounds drafts held back by publisher rate limiting.
const maxSpooled = 10

// Pipeline turns one scheduled trigger into one published post. It is the
// body of the content generation task.
type Pipeline struct {
	cfg PipelineConfig
	gen CaptionGenerator
	img ImageGenerator
	mod *moderation.Moderator
	rev Reviewer
	pub publisher.Publisher
	bus eventbus.Bus
	log logx.Logger

	mu     sync.Mutex
	cursor int
	// spool holds approved posts deferred by publisher rate limiting,
	// oldest first.
	spool []publisher.Post
}

func NewPipeline(
	cfg PipelineConfig,
	gen CaptionGenerator,
	img ImageGenerator,
	mod *moderation.Moderator,
	rev Reviewer,
	pub publisher.Publisher,
	bus eventbus.Bus,
	log logx.Logger,
) *Pipeline {
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 0.7
	}
	if len(cfg.Topics) == 0 {
		cfg.Topics = []string{"inspiration"}
	}
	if cfg.Style == "" {
		cfg.Style = "engaging"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Pipeline{cfg: cfg, gen: gen, img: img, mod: mod, rev: rev, pub: pub, bus: bus, log: log}
}

// nextTopic rotates through configured topics so consecutive runs don't
// produce near-identical content.
func (p *Pipeline) nextTopic() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	t := p.cfg.Topics[p.cursor%len(p.cfg.Topics)]
	p.cursor++
	return t
}

// Run generates one caption, moderates it and, when it clears review,
// publishes it. Returning an error puts the scheduler's retry logic in
// charge.
func (p *Pipeline) Run(ctx context.Context) error {
	topic := p.nextTopic()
	prompt := fmt.Sprintf("Write a social media caption about %s.", topic)

	c, err := p.gen.GenerateCaption(ctx, prompt, GenerateOptions{Style: p.cfg.Style, Theme: topic})
	if err != nil {
		return fmt.Errorf("generate caption: %w", err)
	}

	res := p.mod.ModerateText(c.Full, "caption")
	tagRes := p.mod.ModerateHashtags(c.Hashtags)
	if !res.Safe || !tagRes.Safe {
		issues := append(append([]string{}, res.Issues...), tagRes.Issues...)
		p.log.Warn("generated content blocked by moderation",
			logx.String("topic", topic),
			logx.Any("issues", issues),
		)
		p.publishEvent("content.blocked", map[string]any{"topic": topic, "issues": issues})
		return fmt.Errorf("content blocked by moderation: %s", strings.Join(issues, "; "))
	}

	warnings := append(append([]string{}, res.Warnings...), tagRes.Warnings...)
	needsReview := res.Confidence < p.cfg.MinConfidence || len(warnings) > 0

	if needsReview {
		if p.rev == nil {
			p.log.Warn("content needs review but no reviewer configured; dropping",
				logx.String("topic", topic),
				logx.Float64("confidence", res.Confidence),
			)
			p.publishEvent("content.dropped", map[string]any{"topic": topic, "confidence": res.Confidence})
			return nil
		}
		id := fmt.Sprintf("rev_%d", time.Now().UnixNano())
		approved, err := p.rev.Submit(ctx, id, c.Full, res.Confidence, warnings)
		if err != nil {
			return fmt.Errorf("review: %w", err)
		}
		if !approved {
			p.log.Info("content rejected by reviewer", logx.String("topic", topic))
			p.publishEvent("content.rejected", map[string]any{"topic": topic})
			return nil
		}
	}

	post := publisher.Post{Caption: c.Full}
	if p.img != nil {
		imgPrompt := fmt.Sprintf("A high quality, visually striking photo representing %s. No text overlays.", topic)
		path, err := p.img.GenerateImage(ctx, imgPrompt)
		if err != nil {
			return fmt.Errorf("generate image: %w", err)
		}
		post.ImagePath = path
	}

	return p.publishPost(ctx, topic, res.Confidence, post)
}

func (p *Pipeline) publishPost(ctx context.Context, topic string, confidence float64, post publisher.Post) error {
	pub, err := p.pub.Publish(ctx, post)
	if err != nil {
		var rle *publisher.RateLimitError
		if errors.As(err, &rle) {
			p.spoolPost(post)
			p.log.Warn("publish rate limited, post spooled",
				logx.String("topic", topic),
				logx.Duration("retry_after", rle.RetryAfter),
			)
			p.publishEvent("content.spooled", map[string]any{"topic": topic})
			return nil
		}
		return fmt.Errorf("publish: %w", err)
	}

	p.log.Info("content published",
		logx.String("topic", topic),
		logx.String("post", pub.PostID),
		logx.Float64("confidence", confidence),
	)
	p.publishEvent("content.published", map[string]any{
		"topic":     topic,
		"post_id":   pub.PostID,
		"permalink": pub.Permalink,
	})
	return nil
}

func (p *Pipeline) spoolPost(post publisher.Post) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.spool) >= maxSpooled {
		p.spool = p.spool[1:]
	}
	p.spool = append(p.spool, post)
}

// PublishPending drains spooled posts, oldest first. A renewed rate limit
// stops the drain without losing the remaining posts; any other publish
// error surfaces so the caller's retry logic applies.
func (p *Pipeline) PublishPending(ctx context.Context) error {
	for {
		p.mu.Lock()
		if len(p.spool) == 0 {
			p.mu.Unlock()
			return nil
		}
		post := p.spool[0]
		p.spool = p.spool[1:]
		p.mu.Unlock()

		pub, err := p.pub.Publish(ctx, post)
		if err != nil {
			var rle *publisher.RateLimitError
			if errors.As(err, &rle) {
				p.mu.Lock()
				p.spool = append([]publisher.Post{post}, p.spool...)
				p.mu.Unlock()
				p.log.Debug("spool drain paused by rate limit", logx.Duration("retry_after", rle.RetryAfter))
				return nil
			}
			p.mu.Lock()
			p.spool = append([]publisher.Post{post}, p.spool...)
			p.mu.Unlock()
			return fmt.Errorf("publish spooled post: %w", err)
		}
		p.log.Info("spooled content published", logx.String("post", pub.PostID))
		p.publishEvent("content.published", map[string]any{"post_id": pub.PostID, "permalink": pub.Permalink})
	}
}

func (p *Pipeline) publishEvent(typ string, data map[string]any) {
	if p.bus == nil {
		return
	}
	p.bus.Publish(eventbus.Event{Type: typ, Time: time.Now(), Data: data})
}
