package publisher

import (
	"context"
	"testing"
	"time"

	logx "aisocials/pkg/logx"
)

func TestRateLimitedPassesFirstCall(t *testing.T) {
	t.Parallel()
	rl := NewRateLimited(NewDryRun(logx.Nop()), 25, logx.Nop())

	pub, err := rl.Publish(context.Background(), Post{Caption: "c"})
	if err != nil {
		t.Fatal(err)
	}
	if pub.PostID == "" {
		t.Fatal("no post id")
	}
}

func TestRateLimitedBlocksSecondCallUntilCancel(t *testing.T) {
	t.Parallel()
	// one token per day, so the second publish cannot proceed
	rl := NewRateLimited(NewDryRun(logx.Nop()), 1, logx.Nop())

	if _, err := rl.Publish(context.Background(), Post{Caption: "c"}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := rl.Publish(ctx, Post{Caption: "c"}); err == nil {
		t.Fatal("second publish should block until context deadline")
	}
}
