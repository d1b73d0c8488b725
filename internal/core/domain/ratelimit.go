package domain

import "time"

// Tier is a named rate limit policy bucket.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// TierPolicy is a fixed window and the number of requests admitted in it.
type TierPolicy struct {
	Window      time.Duration
	MaxRequests int64
}

// RateLimitDecision is the outcome of a check or admission for one (client, tier) key.
type RateLimitDecision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// RetryAfter returns the whole seconds until the window resets, at least one.
func (d RateLimitDecision) RetryAfter(now time.Time) int64 {
	secs := int64(d.ResetAt.Sub(now).Seconds() + 0.999)
	if secs < 1 {
		return 1
	}
	return secs
}

// RateLimitKey builds the counter key for a client and tier.
func RateLimitKey(clientID string, tier Tier) string {
	return clientID + ":" + string(tier)
}
