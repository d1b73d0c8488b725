package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"slices"
	"time"

	"survey-public-api/internal/core/domain"
	"survey-public-api/internal/core/ports"
	"survey-public-api/pkg/apperror"
	"survey-public-api/pkg/pagination"

	"github.com/google/uuid"
)

type webhookService struct {
	webhookRepo  ports.WebhookRepository
	deliveryRepo ports.DeliveryRepository
	encSvc       ports.EncryptionService
	dispatcher   ports.WebhookDispatcher
	now          func() time.Time
}

// NewWebhookService creates the subscription management service.
func NewWebhookService(
	webhookRepo ports.WebhookRepository,
	deliveryRepo ports.DeliveryRepository,
	encSvc ports.EncryptionService,
	dispatcher ports.WebhookDispatcher,
) ports.WebhookService {
	return &webhookService{
		webhookRepo:  webhookRepo,
		deliveryRepo: deliveryRepo,
		encSvc:       encSvc,
		dispatcher:   dispatcher,
		now:          time.Now,
	}
}

func (s *webhookService) Create(ctx context.Context, ownerID string, in ports.CreateWebhookInput) (*ports.CreatedWebhook, error) {
	events, err := normalizeEvents(in.Events)
	if err != nil {
		return nil, err
	}

	secret, err := generateKey("whsec_", 32)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("generate webhook secret: %w", err))
	}
	secretEnc, err := s.encSvc.Encrypt(secret)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("encrypt webhook secret: %w", err))
	}

	now := s.now().UTC()
	sub := &domain.WebhookSubscription{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		URL:       in.URL,
		Events:    events,
		Active:    true,
		SecretEnc: secretEnc,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.webhookRepo.Create(ctx, sub); err != nil {
		return nil, apperror.Internal(err)
	}

	return &ports.CreatedWebhook{Subscription: sub, Secret: secret}, nil
}

func (s *webhookService) Get(ctx context.Context, ownerID string, id uuid.UUID) (*domain.WebhookSubscription, error) {
	sub, err := s.webhookRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	// Another tenant's subscription is reported as missing.
	if sub == nil || sub.OwnerID != ownerID {
		return nil, apperror.NotFound("Webhook")
	}
	return sub, nil
}

func (s *webhookService) List(ctx context.Context, ownerID string, page pagination.Params) ([]domain.WebhookSubscription, int64, error) {
	subs, total, err := s.webhookRepo.ListByOwner(ctx, ownerID, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, apperror.Internal(err)
	}
	return subs, total, nil
}

func (s *webhookService) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.webhookRepo.Delete(ctx, id); err != nil {
		return apperror.Internal(err)
	}
	return nil
}

func (s *webhookService) Test(ctx context.Context, ownerID string, id uuid.UUID) (*domain.DeliveryRecord, error) {
	sub, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	rec, err := s.dispatcher.TestDelivery(ctx, sub)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return rec, nil
}

func (s *webhookService) Deliveries(ctx context.Context, ownerID string, id uuid.UUID, page pagination.Params) ([]domain.DeliveryRecord, int64, error) {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return nil, 0, err
	}
	records, total, err := s.deliveryRepo.ListByWebhook(ctx, id, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, apperror.Internal(err)
	}
	return records, total, nil
}

// normalizeEvents rejects unknown event types and drops duplicates.
func normalizeEvents(in []domain.EventType) ([]domain.EventType, error) {
	if len(in) == 0 {
		return nil, apperror.Validation("Invalid request body", apperror.FieldIssue{Field: "events", Issue: "at least one event type is required"})
	}
	out := make([]domain.EventType, 0, len(in))
	for _, e := range in {
		if !e.Subscribable() {
			return nil, apperror.Validation("Invalid request body", apperror.FieldIssue{Field: "events", Issue: fmt.Sprintf("unsupported event type %q", e)})
		}
		if !slices.Contains(out, e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func generateKey(prefix string, length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return prefix + hex.EncodeToString(b), nil
}
