package service

import (
	"context"
	"encoding/json"
	"time"

	"survey-public-api/internal/core/domain"
	"survey-public-api/internal/core/ports"
	"survey-public-api/pkg/apperror"
	"survey-public-api/pkg/pagination"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type responseService struct {
	surveys      ports.SurveyService
	responseRepo ports.ResponseRepository
	dispatcher   ports.WebhookDispatcher
	now          func() time.Time
	log          zerolog.Logger
}

// NewResponseService creates the response service. Ownership is checked
// through the survey service.
func NewResponseService(surveys ports.SurveyService, responseRepo ports.ResponseRepository, dispatcher ports.WebhookDispatcher, log zerolog.Logger) ports.ResponseService {
	return &responseService{
		surveys:      surveys,
		responseRepo: responseRepo,
		dispatcher:   dispatcher,
		now:          time.Now,
		log:          log,
	}
}

func (s *responseService) Create(ctx context.Context, ownerID string, surveyID uuid.UUID, answers json.RawMessage) (*domain.Response, error) {
	survey, err := s.surveys.Get(ctx, ownerID, surveyID)
	if err != nil {
		return nil, err
	}
	if !survey.IsOpen() {
		return nil, apperror.Validation("Survey is not accepting responses", apperror.FieldIssue{Field: "survey_id", Issue: "survey status is " + string(survey.Status)})
	}

	resp := &domain.Response{
		ID:        uuid.New(),
		SurveyID:  surveyID,
		Answers:   answers,
		CreatedAt: s.now().UTC(),
	}
	if err := s.responseRepo.Create(ctx, resp); err != nil {
		return nil, apperror.Internal(err)
	}

	emitEvent(s.dispatcher, s.log, s.now(), ownerID, domain.EventResponseCreated, resp)
	return resp, nil
}

func (s *responseService) List(ctx context.Context, ownerID string, surveyID uuid.UUID, page pagination.Params) ([]domain.Response, int64, error) {
	if _, err := s.surveys.Get(ctx, ownerID, surveyID); err != nil {
		return nil, 0, err
	}
	responses, total, err := s.responseRepo.ListBySurvey(ctx, surveyID, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, apperror.Internal(err)
	}
	return responses, total, nil
}
