package publisher

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	logx "aisocials/pkg/logx"
)

// DryRun logs what would have been published instead of calling the
// platform API. Used for local runs and as a test double.
type DryRun struct {
	log logx.Logger
	seq atomic.Int64
}

func NewDryRun(log logx.Logger) *DryRun {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &DryRun{log: log}
}

func (d *DryRun) Publish(ctx context.Context, post Post) (Published, error) {
	if err := validatePost(post); err != nil {
		return Published{}, err
	}
	n := d.seq.Add(1)
	d.log.Info("dry run publish",
		logx.Int64("post", n),
		logx.Int("caption_len", len(post.Caption)),
		logx.String("image", post.ImagePath),
	)
	return Published{
		PostID:      fmt.Sprintf("dryrun_%d", n),
		PublishedAt: time.Now(),
	}, nil
}
