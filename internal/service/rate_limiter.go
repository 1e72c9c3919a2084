package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// rateLimitScript implements a sliding window log over a sorted set.
// Returns {allowed, remaining, resetAtUnix}.
var rateLimitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)

if count >= limit then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    local resetAt = now + window
    if #oldest >= 2 then
        resetAt = tonumber(oldest[2]) + window
    end
    return {0, 0, resetAt}
end

redis.call('ZADD', key, now, now .. '-' .. math.random())
redis.call('PEXPIRE', key, window + 10000)

return {1, limit - count - 1, now + window}
`)

// FailurePolicy decides what happens when Redis cannot be consulted.
type FailurePolicy int

const (
	FailClosed FailurePolicy = iota
	FailOpen
)

type RateLimitDecision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the whole number of seconds until the window frees a slot.
func (d RateLimitDecision) RetryAfter(now time.Time) int {
	secs := int(d.ResetAt.Sub(now).Seconds()) + 1
	if secs < 1 {
		return 1
	}
	return secs
}

type RateLimiter struct {
	client *redis.Client
	policy FailurePolicy
	now    func() time.Time
}

func NewRateLimiter(client *redis.Client, policy FailurePolicy) *RateLimiter {
	return &RateLimiter{client: client, policy: policy, now: time.Now}
}

func (rl *RateLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) RateLimitDecision {
	now := rl.now()
	fullKey := fmt.Sprintf("ratelimit:%s", key)

	result, err := rateLimitScript.Run(ctx, rl.client, []string{fullKey},
		now.UnixMilli(), window.Milliseconds(), limit).Int64Slice()
	if err == nil && len(result) != 3 {
		err = fmt.Errorf("unexpected script result length %d", len(result))
	}
	if err != nil {
		allowed := rl.policy == FailOpen
		log.Warn().Err(err).Str("key", key).Bool("allowed", allowed).Msg("rate limit check failed")
		remaining := 0
		if allowed {
			remaining = limit - 1
		}
		return RateLimitDecision{Allowed: allowed, Remaining: remaining, ResetAt: now.Add(window)}
	}

	return RateLimitDecision{
		Allowed:   result[0] == 1,
		Remaining: int(result[1]),
		ResetAt:   time.UnixMilli(result[2]),
	}
}
