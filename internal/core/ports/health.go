package ports

import "context"

// HealthChecker is one dependency listed under "dependencies" in GET /health:
// the survey store ("postgresql") and the tier cache / rate limit store ("redis").
type HealthChecker interface {
	// Ping returns nil when the dependency can serve requests.
	Ping(ctx context.Context) error
	Name() string
}
