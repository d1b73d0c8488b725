package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"survey-public-api/internal/core/domain"
	"survey-public-api/internal/core/ports/mocks"
	"survey-public-api/pkg/apperror"
	"survey-public-api/pkg/pagination"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestResponseService_Create(t *testing.T) {
	surveyID := uuid.New()
	answers := json.RawMessage(`{"q1":9}`)

	t.Run("active survey", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		surveys := mocks.NewMockSurveyService(ctrl)
		repo := mocks.NewMockResponseRepository(ctrl)
		dispatcher := mocks.NewMockWebhookDispatcher(ctrl)
		svc := NewResponseService(surveys, repo, dispatcher, zerolog.Nop())

		surveys.EXPECT().Get(gomock.Any(), "owner-1", surveyID).
			Return(&domain.Survey{ID: surveyID, OwnerID: "owner-1", Status: domain.SurveyStatusActive}, nil)
		repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
		dispatcher.EXPECT().Dispatch("owner-1", gomock.Any()).Do(func(_ string, ev domain.WebhookEvent) {
			assert.Equal(t, domain.EventResponseCreated, ev.Type)
		})

		resp, err := svc.Create(context.Background(), "owner-1", surveyID, answers)
		require.NoError(t, err)
		assert.Equal(t, surveyID, resp.SurveyID)
		assert.JSONEq(t, `{"q1":9}`, string(resp.Answers))
	})

	t.Run("closed survey", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		surveys := mocks.NewMockSurveyService(ctrl)
		svc := NewResponseService(surveys, mocks.NewMockResponseRepository(ctrl), mocks.NewMockWebhookDispatcher(ctrl), zerolog.Nop())

		surveys.EXPECT().Get(gomock.Any(), "owner-1", surveyID).
			Return(&domain.Survey{ID: surveyID, OwnerID: "owner-1", Status: domain.SurveyStatusClosed}, nil)

		_, err := svc.Create(context.Background(), "owner-1", surveyID, answers)
		assertKind(t, err, apperror.KindValidation)
	})

	t.Run("survey not found", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		surveys := mocks.NewMockSurveyService(ctrl)
		svc := NewResponseService(surveys, mocks.NewMockResponseRepository(ctrl), mocks.NewMockWebhookDispatcher(ctrl), zerolog.Nop())

		surveys.EXPECT().Get(gomock.Any(), "owner-1", surveyID).Return(nil, apperror.NotFound("Survey"))

		_, err := svc.Create(context.Background(), "owner-1", surveyID, answers)
		assertKind(t, err, apperror.KindNotFound)
	})

	t.Run("repo error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		surveys := mocks.NewMockSurveyService(ctrl)
		repo := mocks.NewMockResponseRepository(ctrl)
		svc := NewResponseService(surveys, repo, mocks.NewMockWebhookDispatcher(ctrl), zerolog.Nop())

		surveys.EXPECT().Get(gomock.Any(), gomock.Any(), surveyID).
			Return(&domain.Survey{ID: surveyID, Status: domain.SurveyStatusActive}, nil)
		repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("insert failed"))

		_, err := svc.Create(context.Background(), "owner-1", surveyID, answers)
		assertKind(t, err, apperror.KindServer)
	})
}

func TestResponseService_List(t *testing.T) {
	ctrl := gomock.NewController(t)
	surveys := mocks.NewMockSurveyService(ctrl)
	repo := mocks.NewMockResponseRepository(ctrl)
	svc := NewResponseService(surveys, repo, mocks.NewMockWebhookDispatcher(ctrl), zerolog.Nop())

	surveyID := uuid.New()
	surveys.EXPECT().Get(gomock.Any(), "owner-1", surveyID).Return(&domain.Survey{ID: surveyID}, nil)
	repo.EXPECT().ListBySurvey(gomock.Any(), surveyID, 50, 50).Return([]domain.Response{{ID: uuid.New()}}, int64(51), nil)

	items, total, err := svc.List(context.Background(), "owner-1", surveyID, pagination.Params{Page: 2, Limit: 50})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.EqualValues(t, 51, total)
}
