package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"encoding/json"

	"survey-public-api/internal/core/domain"
	"survey-public-api/pkg/pagination"

	"github.com/google/uuid"
)

// EncryptionService encrypts webhook signing secrets at rest.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService handles HMAC-SHA256 signing and verification of payload bytes.
type SignatureService interface {
	Sign(secret string, payload []byte) string
	Verify(secret string, payload []byte, signature string) bool
}

// TokenValidator turns a raw Authorization header into a caller identity.
// Every failure is an AUTHENTICATION_ERROR.
type TokenValidator interface {
	Validate(ctx context.Context, authorization string) (*domain.CallerIdentity, error)
}

// TierResolver maps a subject to its rate limit tier.
type TierResolver interface {
	ResolveTier(ctx context.Context, subject string) (domain.Tier, error)
}

// RateLimiter decides admission per (client, tier).
type RateLimiter interface {
	// Check reports the current window without consuming quota.
	Check(ctx context.Context, clientID string, tier domain.Tier) (domain.RateLimitDecision, error)
	// Admit atomically checks and, when allowed, consumes one request.
	Admit(ctx context.Context, clientID string, tier domain.Tier) (domain.RateLimitDecision, error)
}

// RateLimitStore holds fixed-window counters.
type RateLimitStore interface {
	Peek(ctx context.Context, key string, policy domain.TierPolicy) (domain.RateLimitDecision, error)
	Increment(ctx context.Context, key string, policy domain.TierPolicy) (domain.RateLimitDecision, error)
}

// WebhookDispatcher delivers domain events to subscribed endpoints.
type WebhookDispatcher interface {
	// Dispatch enqueues the event and returns immediately.
	Dispatch(ownerID string, event domain.WebhookEvent)
	// TestDelivery sends a webhook.test event to one subscription and waits for the outcome.
	TestDelivery(ctx context.Context, sub *domain.WebhookSubscription) (*domain.DeliveryRecord, error)
}

// --- Service Ports (Business Logic) ---

// CreateSurveyInput holds validated input for survey creation.
type CreateSurveyInput struct {
	Title       string
	Description string
	Status      domain.SurveyStatus
}

// UpdateSurveyInput is a partial update; nil fields are left unchanged.
type UpdateSurveyInput struct {
	Title       *string
	Description *string
	Status      *domain.SurveyStatus
}

// SurveyService is the survey collaborator behind the public API.
type SurveyService interface {
	Create(ctx context.Context, ownerID string, in CreateSurveyInput) (*domain.Survey, error)
	Get(ctx context.Context, ownerID string, id uuid.UUID) (*domain.Survey, error)
	List(ctx context.Context, ownerID string, page pagination.Params) ([]domain.Survey, int64, error)
	Update(ctx context.Context, ownerID string, id uuid.UUID, in UpdateSurveyInput) (*domain.Survey, error)
	Delete(ctx context.Context, ownerID string, id uuid.UUID) error
}

// ResponseService is the response collaborator behind the public API.
type ResponseService interface {
	Create(ctx context.Context, ownerID string, surveyID uuid.UUID, answers json.RawMessage) (*domain.Response, error)
	List(ctx context.Context, ownerID string, surveyID uuid.UUID, page pagination.Params) ([]domain.Response, int64, error)
}

// CreateWebhookInput holds validated input for subscription creation.
type CreateWebhookInput struct {
	URL    string
	Events []domain.EventType
}

// CreatedWebhook carries the plaintext secret, shown only at creation.
type CreatedWebhook struct {
	Subscription *domain.WebhookSubscription
	Secret       string
}

// WebhookService manages subscriptions and their delivery log.
type WebhookService interface {
	Create(ctx context.Context, ownerID string, in CreateWebhookInput) (*CreatedWebhook, error)
	Get(ctx context.Context, ownerID string, id uuid.UUID) (*domain.WebhookSubscription, error)
	List(ctx context.Context, ownerID string, page pagination.Params) ([]domain.WebhookSubscription, int64, error)
	Delete(ctx context.Context, ownerID string, id uuid.UUID) error
	Test(ctx context.Context, ownerID string, id uuid.UUID) (*domain.DeliveryRecord, error)
	Deliveries(ctx context.Context, ownerID string, id uuid.UUID, page pagination.Params) ([]domain.DeliveryRecord, int64, error)
}
