package service

import (
	"context"
	"fmt"

	"survey-public-api/internal/core/domain"
	"survey-public-api/internal/core/ports"
	"survey-public-api/internal/observability"

	"github.com/rs/zerolog"
)

// RateLimitService implements ports.RateLimiter on top of a counter store
// and the static tier policies.
type RateLimitService struct {
	store    ports.RateLimitStore
	policies map[domain.Tier]domain.TierPolicy
	metrics  *observability.Metrics
	log      zerolog.Logger
}

// NewRateLimitService requires a policy for the free tier, which unknown tiers fall back to.
func NewRateLimitService(store ports.RateLimitStore, policies map[domain.Tier]domain.TierPolicy, metrics *observability.Metrics, log zerolog.Logger) (*RateLimitService, error) {
	if _, ok := policies[domain.TierFree]; !ok {
		return nil, fmt.Errorf("rate limit policy for tier %q is required", domain.TierFree)
	}
	for tier, p := range policies {
		if p.Window <= 0 || p.MaxRequests <= 0 {
			return nil, fmt.Errorf("rate limit policy for tier %q must have a positive window and limit", tier)
		}
	}
	return &RateLimitService{store: store, policies: policies, metrics: metrics, log: log}, nil
}

// Check reports the caller's current window without consuming quota.
func (s *RateLimitService) Check(ctx context.Context, clientID string, tier domain.Tier) (domain.RateLimitDecision, error) {
	tier, policy := s.policyFor(tier)
	return s.store.Peek(ctx, domain.RateLimitKey(clientID, tier), policy)
}

// Admit consumes one request from the caller's window when quota remains.
func (s *RateLimitService) Admit(ctx context.Context, clientID string, tier domain.Tier) (domain.RateLimitDecision, error) {
	tier, policy := s.policyFor(tier)
	d, err := s.store.Increment(ctx, domain.RateLimitKey(clientID, tier), policy)
	if err != nil {
		return domain.RateLimitDecision{}, err
	}
	s.metrics.ObserveRateLimit(string(tier), d.Allowed)
	if !d.Allowed {
		s.log.Info().
			Str("client_id", clientID).
			Str("tier", string(tier)).
			Int64("limit", d.Limit).
			Time("reset_at", d.ResetAt).
			Msg("rate limit exceeded")
	}
	return d, nil
}

// Policy returns the policy applied to tier.
func (s *RateLimitService) Policy(tier domain.Tier) domain.TierPolicy {
	_, p := s.policyFor(tier)
	return p
}

func (s *RateLimitService) policyFor(tier domain.Tier) (domain.Tier, domain.TierPolicy) {
	if p, ok := s.policies[tier]; ok {
		return tier, p
	}
	s.log.Warn().Str("tier", string(tier)).Msg("unknown rate limit tier, using free")
	return domain.TierFree, s.policies[domain.TierFree]
}
