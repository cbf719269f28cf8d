package publisher

import (
	"context"

	"golang.org/x/time/rate"

	logx "aisocials/pkg/logx"
)

// RateLimited wraps a Publisher with a token bucket so bursts of scheduled
// publishes cannot trip the platform's daily posting quota. Publish blocks
// until a token is available or ctx is done.
type RateLimited struct {
	next    Publisher
	limiter *rate.Limiter
	log     logx.Logger
}

func NewRateLimited(next Publisher, perDay int, log logx.Logger) *RateLimited {
	if perDay <= 0 {
		perDay = 25
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(float64(perDay)/86400.0), 1),
		log:     log,
	}
}

func (r *RateLimited) Publish(ctx context.Context, post Post) (Published, error) {
	if r.limiter.Tokens() < 1 {
		r.log.Debug("publish waiting for rate limit token")
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return Published{}, err
	}
	return r.next.Publish(ctx, post)
}
