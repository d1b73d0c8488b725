package service

import (
	"context"
	"fmt"
	"time"

	"survey-public-api/internal/core/domain"
	"survey-public-api/internal/core/ports"

	"github.com/rs/zerolog"
)

// TierResolverService implements ports.TierResolver with a read-through cache
// in front of the plan lookup. Subjects without a plan are on the free tier.
type TierResolverService struct {
	plans ports.PlanRepository
	cache ports.TierCache
	ttl   time.Duration
	log   zerolog.Logger
}

// NewTierResolverService creates a resolver. cache may be nil.
func NewTierResolverService(plans ports.PlanRepository, cache ports.TierCache, ttl time.Duration, log zerolog.Logger) *TierResolverService {
	return &TierResolverService{plans: plans, cache: cache, ttl: ttl, log: log}
}

// ResolveTier returns the subject's tier. A cache failure falls through to the
// plan lookup; a plan lookup failure is returned.
func (s *TierResolverService) ResolveTier(ctx context.Context, subject string) (domain.Tier, error) {
	if s.cache != nil {
		tier, found, err := s.cache.Get(ctx, subject)
		if err != nil {
			s.log.Warn().Err(err).Str("subject", subject).Msg("tier cache read failed")
		} else if found {
			return tier, nil
		}
	}

	tier, found, err := s.plans.GetTier(ctx, subject)
	if err != nil {
		return "", fmt.Errorf("resolving tier: %w", err)
	}
	if !found {
		tier = domain.TierFree
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, subject, tier, s.ttl); err != nil {
			s.log.Warn().Err(err).Str("subject", subject).Msg("tier cache write failed")
		}
	}
	return tier, nil
}
