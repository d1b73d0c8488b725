package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"
	"time"

	"survey-public-api/internal/core/domain"

	"github.com/google/uuid"
)

// Get methods return (nil, nil) when the row does not exist.

// SurveyRepository defines persistence operations for surveys.
type SurveyRepository interface {
	Create(ctx context.Context, survey *domain.Survey) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Survey, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.Survey, int64, error)
	Update(ctx context.Context, survey *domain.Survey) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ResponseRepository defines persistence operations for survey responses.
type ResponseRepository interface {
	Create(ctx context.Context, response *domain.Response) error
	ListBySurvey(ctx context.Context, surveyID uuid.UUID, limit, offset int) ([]domain.Response, int64, error)
}

// WebhookRepository defines persistence operations for webhook subscriptions.
type WebhookRepository interface {
	Create(ctx context.Context, sub *domain.WebhookSubscription) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WebhookSubscription, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.WebhookSubscription, int64, error)
	// ListActiveForEvent returns active subscriptions of ownerID that selected eventType.
	ListActiveForEvent(ctx context.Context, ownerID string, eventType domain.EventType) ([]domain.WebhookSubscription, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// DeliveryRepository is the append-only webhook delivery log.
type DeliveryRepository interface {
	Create(ctx context.Context, record *domain.DeliveryRecord) error
	ListByWebhook(ctx context.Context, webhookID uuid.UUID, limit, offset int) ([]domain.DeliveryRecord, int64, error)
}

// PlanRepository looks up the billing plan of a subject.
type PlanRepository interface {
	// GetTier returns found=false when the subject has no plan row.
	GetTier(ctx context.Context, subject string) (tier domain.Tier, found bool, err error)
}

// TierCache is the Redis layer in front of PlanRepository.
type TierCache interface {
	Get(ctx context.Context, subject string) (tier domain.Tier, found bool, err error)
	Set(ctx context.Context, subject string, tier domain.Tier, ttl time.Duration) error
}
