package shared

import (
	"context"
	"time"
)

// RateDecision is the verdict for a single request against its bucket.
type RateDecision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
	Limit      int
}

type RateLimiter interface {
	Allow(ctx context.Context, key string) (RateDecision, error)
}
