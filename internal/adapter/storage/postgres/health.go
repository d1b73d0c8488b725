package postgres

import "context"

// HealthCheck pings the database holding surveys, responses, webhook
// subscriptions and delivery records. Any failure marks /health degraded.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

// Ping runs a query rather than pool.Ping so an exhausted pool reports unhealthy.
func (h *HealthCheck) Ping(ctx context.Context) error {
	_, err := h.pool.Exec(ctx, "SELECT 1")
	return err
}

func (h *HealthCheck) Name() string { return "postgresql" }
