package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"survey-public-api/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// TierCache implements ports.TierCache using Redis.
type TierCache struct {
	client *goredis.Client
	prefix string
}

// NewTierCache creates a new Redis-backed tier cache.
func NewTierCache(client *goredis.Client) *TierCache {
	return &TierCache{
		client: client,
		prefix: "tier:",
	}
}

// Get returns the cached tier for subject. found is false on a cache miss.
func (c *TierCache) Get(ctx context.Context, subject string) (domain.Tier, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+subject).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis tier get: %w", err)
	}
	return domain.Tier(val), true, nil
}

// Set caches the tier for subject with TTL.
func (c *TierCache) Set(ctx context.Context, subject string, tier domain.Tier, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+subject, string(tier), ttl).Err(); err != nil {
		return fmt.Errorf("redis tier set: %w", err)
	}
	return nil
}
