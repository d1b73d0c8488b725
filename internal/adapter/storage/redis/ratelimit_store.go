package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"survey-public-api/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// admitScript performs the fixed-window read-check-increment atomically.
// The window starts with the first admitted request; a denied request never increments.
// Returns {allowed, count, pttl_ms}.
var admitScript = goredis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local max = tonumber(ARGV[1])
local allowed = 0
if current < max then
  current = redis.call('INCR', KEYS[1])
  allowed = 1
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
  ttl = tonumber(ARGV[2])
end
return {allowed, current, ttl}
`)

// RateLimitStore implements ports.RateLimitStore backed by Redis, so several
// API instances share one set of counters.
type RateLimitStore struct {
	client *goredis.Client
	prefix string
	now    func() time.Time
}

// NewRateLimitStore creates a new Redis-backed rate limit store.
func NewRateLimitStore(client *goredis.Client) *RateLimitStore {
	return &RateLimitStore{
		client: client,
		prefix: "ratelimit:",
		now:    time.Now,
	}
}

// Increment admits one request for key if the window has quota left.
func (s *RateLimitStore) Increment(ctx context.Context, key string, policy domain.TierPolicy) (domain.RateLimitDecision, error) {
	windowMs := policy.Window.Milliseconds()
	if windowMs < 1 {
		windowMs = 1
	}

	res, err := admitScript.Run(ctx, s.client, []string{s.prefix + key}, policy.MaxRequests, windowMs).Int64Slice()
	if err != nil {
		return domain.RateLimitDecision{}, fmt.Errorf("redis rate limit admit: %w", err)
	}
	if len(res) != 3 {
		return domain.RateLimitDecision{}, fmt.Errorf("redis rate limit admit: unexpected reply %v", res)
	}

	remaining := policy.MaxRequests - res[1]
	if remaining < 0 {
		remaining = 0
	}
	return domain.RateLimitDecision{
		Allowed:   res[0] == 1,
		Limit:     policy.MaxRequests,
		Remaining: remaining,
		ResetAt:   s.now().Add(time.Duration(res[2]) * time.Millisecond),
	}, nil
}

// Peek reports the window state for key without consuming quota.
func (s *RateLimitStore) Peek(ctx context.Context, key string, policy domain.TierPolicy) (domain.RateLimitDecision, error) {
	redisKey := s.prefix + key

	var getCmd *goredis.StringCmd
	var ttlCmd *goredis.DurationCmd
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		getCmd = pipe.Get(ctx, redisKey)
		ttlCmd = pipe.PTTL(ctx, redisKey)
		return nil
	})
	if err != nil && !errors.Is(err, goredis.Nil) {
		return domain.RateLimitDecision{}, fmt.Errorf("redis rate limit peek: %w", err)
	}

	now := s.now()
	count, err := getCmd.Int64()
	if errors.Is(err, goredis.Nil) {
		return domain.RateLimitDecision{
			Allowed:   true,
			Limit:     policy.MaxRequests,
			Remaining: policy.MaxRequests,
			ResetAt:   now.Add(policy.Window),
		}, nil
	}
	if err != nil {
		return domain.RateLimitDecision{}, fmt.Errorf("redis rate limit peek: %w", err)
	}

	ttl := ttlCmd.Val()
	if ttl < 0 {
		ttl = policy.Window
	}
	remaining := policy.MaxRequests - count
	if remaining < 0 {
		remaining = 0
	}
	return domain.RateLimitDecision{
		Allowed:   remaining > 0,
		Limit:     policy.MaxRequests,
		Remaining: remaining,
		ResetAt:   now.Add(ttl),
	}, nil
}
