package handler_test

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"

	"survey-public-api/internal/core/domain"

	"github.com/google/uuid"
)

// --- In-Memory Survey Repo ---

type inMemorySurveyRepo struct {
	mu      sync.RWMutex
	surveys map[uuid.UUID]domain.Survey
}

func newInMemorySurveyRepo() *inMemorySurveyRepo {
	return &inMemorySurveyRepo{surveys: make(map[uuid.UUID]domain.Survey)}
}

func (r *inMemorySurveyRepo) Create(ctx context.Context, s *domain.Survey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.surveys[s.ID] = *s
	return nil
}

func (r *inMemorySurveyRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Survey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.surveys[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *inMemorySurveyRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.Survey, int64, error) {
	r.mu.RLock()
	var all []domain.Survey
	for _, s := range r.surveys {
		if s.OwnerID == ownerID {
			all = append(all, s)
		}
	}
	r.mu.RUnlock()
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, limit, offset), int64(len(all)), nil
}

func (r *inMemorySurveyRepo) Update(ctx context.Context, s *domain.Survey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.surveys[s.ID]; !ok {
		return errors.New("survey not found")
	}
	r.surveys[s.ID] = *s
	return nil
}

func (r *inMemorySurveyRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.surveys, id)
	return nil
}

// --- In-Memory Response Repo ---

type inMemoryResponseRepo struct {
	mu        sync.RWMutex
	responses []domain.Response
}

func (r *inMemoryResponseRepo) Create(ctx context.Context, resp *domain.Response) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, *resp)
	return nil
}

func (r *inMemoryResponseRepo) ListBySurvey(ctx context.Context, surveyID uuid.UUID, limit, offset int) ([]domain.Response, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []domain.Response
	for _, resp := range r.responses {
		if resp.SurveyID == surveyID {
			all = append(all, resp)
		}
	}
	return page(all, limit, offset), int64(len(all)), nil
}

// --- In-Memory Webhook Repo ---

type inMemoryWebhookRepo struct {
	mu   sync.RWMutex
	subs []domain.WebhookSubscription
}

func (r *inMemoryWebhookRepo) Create(ctx context.Context, sub *domain.WebhookSubscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, *sub)
	return nil
}

func (r *inMemoryWebhookRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WebhookSubscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.subs {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, nil
}

func (r *inMemoryWebhookRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.WebhookSubscription, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []domain.WebhookSubscription
	for _, s := range r.subs {
		if s.OwnerID == ownerID {
			all = append(all, s)
		}
	}
	return page(all, limit, offset), int64(len(all)), nil
}

func (r *inMemoryWebhookRepo) ListActiveForEvent(ctx context.Context, ownerID string, eventType domain.EventType) ([]domain.WebhookSubscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.WebhookSubscription
	for _, s := range r.subs {
		if s.OwnerID == ownerID && s.Active && slices.Contains(s.Events, eventType) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *inMemoryWebhookRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = slices.DeleteFunc(r.subs, func(s domain.WebhookSubscription) bool { return s.ID == id })
	return nil
}

// --- In-Memory Delivery Repo ---

type inMemoryDeliveryRepo struct {
	mu      sync.RWMutex
	records []domain.DeliveryRecord
}

func (r *inMemoryDeliveryRepo) Create(ctx context.Context, rec *domain.DeliveryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *rec)
	return nil
}

func (r *inMemoryDeliveryRepo) ListByWebhook(ctx context.Context, webhookID uuid.UUID, limit, offset int) ([]domain.DeliveryRecord, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []domain.DeliveryRecord
	for _, rec := range r.records {
		if rec.WebhookID == webhookID {
			all = append(all, rec)
		}
	}
	return page(all, limit, offset), int64(len(all)), nil
}

// --- In-Memory Plan Repo ---

type inMemoryPlanRepo map[string]domain.Tier

func (r inMemoryPlanRepo) GetTier(ctx context.Context, subject string) (domain.Tier, bool, error) {
	tier, ok := r[subject]
	return tier, ok, nil
}

func page[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return []T{}
	}
	end := min(offset+limit, len(all))
	return all[offset:end]
}
