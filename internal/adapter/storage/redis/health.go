package redis

import (
	"context"

	goredis "github.com/redis/go-redis/v9"
)

// HealthCheck reports whether the Redis instance behind the tier cache and,
// with ratelimit.store=redis, the shared rate limit windows is reachable.
// A failure degrades /health; the API keeps serving from PostgreSQL.
type HealthCheck struct {
	rdb goredis.Cmdable
}

func NewHealthCheck(rdb goredis.Cmdable) *HealthCheck {
	return &HealthCheck{rdb: rdb}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	return h.rdb.Ping(ctx).Err()
}

func (h *HealthCheck) Name() string { return "redis" }
