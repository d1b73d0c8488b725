package service

import (
	"context"
	"time"

	"survey-public-api/internal/core/domain"
	"survey-public-api/internal/core/ports"
	"survey-public-api/pkg/apperror"
	"survey-public-api/pkg/pagination"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type surveyService struct {
	surveyRepo ports.SurveyRepository
	dispatcher ports.WebhookDispatcher
	now        func() time.Time
	log        zerolog.Logger
}

// NewSurveyService creates the survey service. Mutations emit webhook events.
func NewSurveyService(surveyRepo ports.SurveyRepository, dispatcher ports.WebhookDispatcher, log zerolog.Logger) ports.SurveyService {
	return &surveyService{
		surveyRepo: surveyRepo,
		dispatcher: dispatcher,
		now:        time.Now,
		log:        log,
	}
}

func (s *surveyService) Create(ctx context.Context, ownerID string, in ports.CreateSurveyInput) (*domain.Survey, error) {
	status := in.Status
	if status == "" {
		status = domain.SurveyStatusDraft
	}
	if !status.Valid() {
		return nil, apperror.Validation("Invalid request body", apperror.FieldIssue{Field: "status", Issue: "must be one of draft, active, closed"})
	}

	now := s.now().UTC()
	survey := &domain.Survey{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Title:       in.Title,
		Description: in.Description,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.surveyRepo.Create(ctx, survey); err != nil {
		return nil, apperror.Internal(err)
	}

	s.emit(ownerID, domain.EventSurveyCreated, survey)
	return survey, nil
}

func (s *surveyService) Get(ctx context.Context, ownerID string, id uuid.UUID) (*domain.Survey, error) {
	survey, err := s.surveyRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if survey == nil || survey.OwnerID != ownerID {
		return nil, apperror.NotFound("Survey")
	}
	return survey, nil
}

func (s *surveyService) List(ctx context.Context, ownerID string, page pagination.Params) ([]domain.Survey, int64, error) {
	surveys, total, err := s.surveyRepo.ListByOwner(ctx, ownerID, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, apperror.Internal(err)
	}
	return surveys, total, nil
}

func (s *surveyService) Update(ctx context.Context, ownerID string, id uuid.UUID, in ports.UpdateSurveyInput) (*domain.Survey, error) {
	survey, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		survey.Title = *in.Title
	}
	if in.Description != nil {
		survey.Description = *in.Description
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, apperror.Validation("Invalid request body", apperror.FieldIssue{Field: "status", Issue: "must be one of draft, active, closed"})
		}
		survey.Status = *in.Status
	}
	survey.UpdatedAt = s.now().UTC()

	if err := s.surveyRepo.Update(ctx, survey); err != nil {
		return nil, apperror.Internal(err)
	}

	s.emit(ownerID, domain.EventSurveyUpdated, survey)
	return survey, nil
}

func (s *surveyService) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.surveyRepo.Delete(ctx, id); err != nil {
		return apperror.Internal(err)
	}

	s.emit(ownerID, domain.EventSurveyDeleted, map[string]string{"id": id.String()})
	return nil
}

// emit hands the event to the dispatcher. Failures never reach the caller.
func (s *surveyService) emit(ownerID string, t domain.EventType, data any) {
	emitEvent(s.dispatcher, s.log, s.now(), ownerID, t, data)
}

func emitEvent(d ports.WebhookDispatcher, log zerolog.Logger, now time.Time, ownerID string, t domain.EventType, data any) {
	event, err := domain.NewWebhookEvent(t, now, data)
	if err != nil {
		log.Error().Err(err).Str("event", string(t)).Msg("building webhook event failed")
		return
	}
	d.Dispatch(ownerID, event)
}
