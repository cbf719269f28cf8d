package generator

import (
	"context"
	"errors"
	"testing"
	"time"

	"aisocials/internal/moderation"
	"aisocials/internal/publisher"
	logx "aisocials/pkg/logx"
)

type fakeGen struct {
	caption Caption
	err     error
}

func (f *fakeGen) GenerateCaption(ctx context.Context, prompt string, opts GenerateOptions) (Caption, error) {
	if f.err != nil {
		return Caption{}, f.err
	}
	c := f.caption
	c.Theme = opts.Theme
	c.GeneratedAt = time.Now()
	return c, nil
}

type fakePub struct {
	posts []publisher.Post
	err   error
}

func (f *fakePub) Publish(ctx context.Context, post publisher.Post) (publisher.Published, error) {
	if f.err != nil {
		return publisher.Published{}, f.err
	}
	f.posts = append(f.posts, post)
	return publisher.Published{PostID: "post_1", PublishedAt: time.Now()}, nil
}

type fakeReviewer struct {
	approve bool
	called  bool
}

func (f *fakeReviewer) Submit(ctx context.Context, id, caption string, score float64, warnings []string) (bool, error) {
	f.called = true
	return f.approve, nil
}

func cleanCaption() Caption {
	text := "Sharing an honest, genuine look at a creative morning practice. What helps you focus?"
	return Caption{Text: text, Full: text, Hashtags: []string{"#morning", "#focus"}}
}

func TestPipelinePublishesCleanContent(t *testing.T) {
	t.Parallel()
	pub := &fakePub{}
	p := NewPipeline(PipelineConfig{Topics: []string{"lifestyle"}, MinConfidence: 0.5},
		&fakeGen{caption: cleanCaption()}, nil,
		moderation.New(moderation.Config{}, logx.Nop()),
		nil, pub, nil, logx.Nop())

	if err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(pub.posts) != 1 {
		t.Fatalf("published = %d, want 1", len(pub.posts))
	}
}

func TestPipelineDropsWhenReviewNeededWithoutReviewer(t *testing.T) {
	t.Parallel()
	pub := &fakePub{}
	// manipulation phrases produce warnings, which force review
	text := "Follow me and check my bio, link in bio now!"
	p := NewPipeline(PipelineConfig{Topics: []string{"lifestyle"}},
		&fakeGen{caption: Caption{Text: text, Full: text}}, nil,
		moderation.New(moderation.Config{}, logx.Nop()),
		nil, pub, nil, logx.Nop())

	if err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(pub.posts) != 0 {
		t.Fatal("unreviewed risky content must not publish")
	}
}

func TestPipelineRespectsReviewerVerdict(t *testing.T) {
	t.Parallel()
	text := "Follow me and check my bio, link in bio now!"
	for _, approve := range []bool{true, false} {
		pub := &fakePub{}
		rev := &fakeReviewer{approve: approve}
		p := NewPipeline(PipelineConfig{Topics: []string{"lifestyle"}},
			&fakeGen{caption: Caption{Text: text, Full: text}}, nil,
			moderation.New(moderation.Config{}, logx.Nop()),
			rev, pub, nil, logx.Nop())

		if err := p.Run(context.Background()); err != nil {
			t.Fatal(err)
		}
		if !rev.called {
			t.Fatal("reviewer not consulted")
		}
		want := 0
		if approve {
			want = 1
		}
		if len(pub.posts) != want {
			t.Fatalf("approve=%v published=%d want=%d", approve, len(pub.posts), want)
		}
	}
}

func TestPipelineGeneratorErrorPropagates(t *testing.T) {
	t.Parallel()
	p := NewPipeline(PipelineConfig{},
		&fakeGen{err: errors.New("model offline")}, nil,
		moderation.New(moderation.Config{}, logx.Nop()),
		nil, &fakePub{}, nil, logx.Nop())

	if err := p.Run(context.Background()); err == nil {
		t.Fatal("generator failure should surface for retry")
	}
}

type fakeImg struct {
	path string
	err  error
}

func (f *fakeImg) GenerateImage(ctx context.Context, prompt string) (string, error) {
	return f.path, f.err
}

func TestPipelineAttachesGeneratedImage(t *testing.T) {
	t.Parallel()
	pub := &fakePub{}
	p := NewPipeline(PipelineConfig{Topics: []string{"nature"}},
		&fakeGen{caption: cleanCaption()}, &fakeImg{path: "/tmp/img.png"},
		moderation.New(moderation.Config{}, logx.Nop()),
		nil, pub, nil, logx.Nop())

	if err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(pub.posts) != 1 || pub.posts[0].ImagePath != "/tmp/img.png" {
		t.Fatalf("posts = %+v", pub.posts)
	}
}

func TestPipelineImageFailurePropagates(t *testing.T) {
	t.Parallel()
	p := NewPipeline(PipelineConfig{},
		&fakeGen{caption: cleanCaption()}, &fakeImg{err: errors.New("policy violation")},
		moderation.New(moderation.Config{}, logx.Nop()),
		nil, &fakePub{}, nil, logx.Nop())

	if err := p.Run(context.Background()); err == nil {
		t.Fatal("image failure should surface for retry")
	}
}

type limitedPub struct {
	limited bool
	posts   []publisher.Post
}

func (f *limitedPub) Publish(ctx context.Context, post publisher.Post) (publisher.Published, error) {
	if f.limited {
		return publisher.Published{}, &publisher.RateLimitError{RetryAfter: time.Minute}
	}
	f.posts = append(f.posts, post)
	return publisher.Published{PostID: "post_ok"}, nil
}

func TestPipelineSpoolsOnRateLimit(t *testing.T) {
	t.Parallel()
	pub := &limitedPub{limited: true}
	p := NewPipeline(PipelineConfig{Topics: []string{"lifestyle"}},
		&fakeGen{caption: cleanCaption()}, nil,
		moderation.New(moderation.Config{}, logx.Nop()),
		nil, pub, nil, logx.Nop())

	// a rate limited publish is deferred, not failed
	if err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(pub.posts) != 0 {
		t.Fatal("rate limited post must not publish")
	}

	// drain is a no-op while the limit holds
	if err := p.PublishPending(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(pub.posts) != 0 {
		t.Fatal("drain published despite rate limit")
	}

	pub.limited = false
	if err := p.PublishPending(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(pub.posts) != 1 {
		t.Fatalf("drained posts = %d, want 1", len(pub.posts))
	}

	// spool is empty afterwards
	if err := p.PublishPending(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(pub.posts) != 1 {
		t.Fatal("drain re-published an already published post")
	}
}

func TestPipelineRotatesTopics(t *testing.T) {
	t.Parallel()
	p := NewPipeline(PipelineConfig{Topics: []string{"a", "b", "c"}},
		&fakeGen{caption: cleanCaption()}, nil,
		moderation.New(moderation.Config{}, logx.Nop()),
		nil, &fakePub{}, nil, logx.Nop())

	got := []string{p.nextTopic(), p.nextTopic(), p.nextTopic(), p.nextTopic()}
	want := []string{"a", "b", "c", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rotation = %v, want %v", got, want)
		}
	}
}
