package ratelimit

import (
	"context"
	"strconv"
	"time"

	"pixelgrid/internal/pkg/config"
	"pixelgrid/internal/pkg/errs"
	"pixelgrid/internal/usecase/shared"

	"github.com/redis/go-redis/v9"
)

// tokenBucket refills continuously at rate tokens per second up to capacity and takes one
// token per call. Returns {allowed, remaining, retry_after_ms}.
var tokenBucket = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local rate = tonumber(ARGV[3])
local ttl_seconds = tonumber(ARGV[4])

local state = redis.call('HMGET', key, 'tokens', 'last_ms')
local tokens = tonumber(state[1])
local last = tonumber(state[2])
if tokens == nil or last == nil then
	tokens = capacity
	last = now_ms
end

local elapsed = math.max(0, now_ms - last)
tokens = math.min(capacity, tokens + (elapsed * rate / 1000))

local allowed = 0
local retry_after_ms = 0
if tokens >= 1 then
	allowed = 1
	tokens = tokens - 1
elseif rate > 0 then
	retry_after_ms = math.ceil((1 - tokens) * 1000 / rate)
end

redis.call('HSET', key, 'tokens', tostring(tokens), 'last_ms', now_ms)
redis.call('EXPIRE', key, ttl_seconds)
return { allowed, math.floor(tokens), retry_after_ms }
`)

var _ shared.RateLimiter = (*Limiter)(nil)

type Limiter struct {
	rdb      redis.UniversalClient
	prefix   string
	capacity int
	rate     float64
	ttl      time.Duration
	now      func() time.Time
}

func NewLimiter(rdb redis.UniversalClient, keyPrefix string, cfg config.RateLimitConfig) *Limiter {
	ttl := time.Minute
	if cfg.RefillPerSecond > 0 {
		full := time.Duration(float64(cfg.Capacity)/cfg.RefillPerSecond*float64(time.Second)) + time.Second
		ttl = max(ttl, full)
	}
	return &Limiter{
		rdb:      rdb,
		prefix:   keyPrefix + ":ratelimit:",
		capacity: cfg.Capacity,
		rate:     cfg.RefillPerSecond,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (l *Limiter) Allow(ctx context.Context, key string) (shared.RateDecision, error) {
	args := []any{
		l.now().UnixMilli(),
		l.capacity,
		strconv.FormatFloat(l.rate, 'f', -1, 64),
		int64(l.ttl / time.Second),
	}
	vals, err := tokenBucket.Run(ctx, l.rdb, []string{l.prefix + key}, args...).Int64Slice()
	if err != nil {
		return shared.RateDecision{}, errs.Wrap(err, "run token bucket")
	}
	if len(vals) != 3 {
		return shared.RateDecision{}, errs.Newf("token bucket returned %d values", len(vals))
	}
	return shared.RateDecision{
		Allowed:    vals[0] == 1,
		Remaining:  vals[1],
		RetryAfter: time.Duration(vals[2]) * time.Millisecond,
		Limit:      l.capacity,
	}, nil
}
