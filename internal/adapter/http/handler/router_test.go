package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"survey-public-api/internal/core/domain"
	"survey-public-api/internal/core/ports"
	"survey-public-api/internal/core/ports/mocks"
	"survey-public-api/internal/observability"
	"survey-public-api/pkg/apperror"
	"survey-public-api/pkg/pagination"
	"survey-public-api/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testToken = "Bearer test-token"

var testReset = time.Unix(1900000000, 0)

type routerFixture struct {
	surveys   *mocks.MockSurveyService
	responses *mocks.MockResponseService
	webhooks  *mocks.MockWebhookService
	tokens    *mocks.MockTokenValidator
	tiers     *mocks.MockTierResolver
	limiter   *mocks.MockRateLimiter
	router    *gin.Engine
}

func newRouterFixture(t *testing.T) *routerFixture {
	ctrl := gomock.NewController(t)
	f := &routerFixture{
		surveys:   mocks.NewMockSurveyService(ctrl),
		responses: mocks.NewMockResponseService(ctrl),
		webhooks:  mocks.NewMockWebhookService(ctrl),
		tokens:    mocks.NewMockTokenValidator(ctrl),
		tiers:     mocks.NewMockTierResolver(ctrl),
		limiter:   mocks.NewMockRateLimiter(ctrl),
	}
	f.router = SetupRouter(RouterDeps{
		SurveySvc:   f.surveys,
		ResponseSvc: f.responses,
		WebhookSvc:  f.webhooks,
		Tokens:      f.tokens,
		Tiers:       f.tiers,
		Limiter:     f.limiter,
		Metrics:     observability.NewMetrics(),
		Logger:      zerolog.Nop(),
	})
	return f
}

// admit lets one request through the guard with the given scope.
func (f *routerFixture) admit(scope string) {
	f.tokens.EXPECT().Validate(gomock.Any(), testToken).
		Return(&domain.CallerIdentity{Subject: "user-1", Scope: scope, ClientID: "client-1"}, nil)
	f.tiers.EXPECT().ResolveTier(gomock.Any(), "user-1").Return(domain.TierFree, nil)
	f.limiter.EXPECT().Admit(gomock.Any(), "client-1", domain.TierFree).
		Return(domain.RateLimitDecision{Allowed: true, Limit: 100, Remaining: 99, ResetAt: testReset}, nil)
}

func (f *routerFixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", testToken)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) response.ErrorResponse {
	t.Helper()
	var body response.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRouter_ScopeRejectedBeforeHandler(t *testing.T) {
	f := newRouterFixture(t)
	f.tokens.EXPECT().Validate(gomock.Any(), testToken).
		Return(&domain.CallerIdentity{Subject: "user-1", Scope: "surveys:read", ClientID: "client-1"}, nil)
	f.tiers.EXPECT().ResolveTier(gomock.Any(), "user-1").Return(domain.TierFree, nil)
	f.limiter.EXPECT().Check(gomock.Any(), "client-1", domain.TierFree).
		Return(domain.RateLimitDecision{Allowed: true, Limit: 100, Remaining: 100, ResetAt: testReset}, nil)
	// No SurveyService expectation: the handler must not run.

	w := f.do(http.MethodPost, "/api/v1/surveys", map[string]string{"title": "NPS"})

	assert.Equal(t, http.StatusForbidden, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, apperror.KindAuthorization, body.Error.Code)
	assert.Equal(t, "100", w.Header().Get("X-RateLimit-Remaining"))
}

func TestRouter_ListSurveysEnvelope(t *testing.T) {
	f := newRouterFixture(t)
	f.admit("surveys:read")

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	items := []domain.Survey{
		{ID: uuid.New(), OwnerID: "user-1", Title: "A", Status: domain.SurveyStatusActive, CreatedAt: now, UpdatedAt: now},
		{ID: uuid.New(), OwnerID: "user-1", Title: "B", Status: domain.SurveyStatusDraft, CreatedAt: now, UpdatedAt: now},
	}
	f.surveys.EXPECT().List(gomock.Any(), "user-1", pagination.Params{Page: 1, Limit: 2}).Return(items, int64(5), nil)

	w := f.do(http.MethodGet, "/api/v1/surveys?limit=2", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data []struct {
			ID         string         `json:"id"`
			Type       string         `json:"type"`
			Attributes map[string]any `json:"attributes"`
		} `json:"data"`
		Pagination pagination.Meta  `json:"pagination"`
		Links      pagination.Links `json:"links"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, "survey", body.Data[0].Type)
	assert.Equal(t, items[0].ID.String(), body.Data[0].ID)
	assert.Equal(t, "A", body.Data[0].Attributes["title"])
	assert.Equal(t, 3, body.Pagination.Pages)
	assert.True(t, body.Pagination.HasNext)
	assert.Contains(t, body.Links.Next, "page=2")
	assert.Empty(t, body.Links.Previous)
	assert.Equal(t, "99", w.Header().Get("X-RateLimit-Remaining"))
}

func TestRouter_CreateSurveyValidation(t *testing.T) {
	f := newRouterFixture(t)
	f.admit("surveys:write")

	w := f.do(http.MethodPost, "/api/v1/surveys", map[string]string{"status": "archived"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, apperror.KindValidation, body.Error.Code)
	assert.Contains(t, w.Body.String(), "title")
}

func TestRouter_CreateSurvey(t *testing.T) {
	f := newRouterFixture(t)
	f.admit("surveys:write")

	id := uuid.New()
	f.surveys.EXPECT().Create(gomock.Any(), "user-1", ports.CreateSurveyInput{Title: "NPS", Status: "active"}).
		Return(&domain.Survey{ID: id, OwnerID: "user-1", Title: "NPS", Status: domain.SurveyStatusActive}, nil)

	w := f.do(http.MethodPost, "/api/v1/surveys", map[string]string{"title": "  NPS  ", "status": "active"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), id.String())
}

func TestRouter_BadUUIDIsValidationError(t *testing.T) {
	f := newRouterFixture(t)
	f.admit("surveys:read")

	w := f.do(http.MethodGet, "/api/v1/surveys/not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.KindValidation, decodeError(t, w).Error.Code)
}

func TestRouter_SurveyNotFound(t *testing.T) {
	f := newRouterFixture(t)
	f.admit("surveys:read")
	id := uuid.New()
	f.surveys.EXPECT().Get(gomock.Any(), "user-1", id).Return(nil, apperror.NotFound("Survey"))

	w := f.do(http.MethodGet, "/api/v1/surveys/"+id.String(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Survey not found", decodeError(t, w).Error.Message)
}

func TestRouter_DeleteSurveyNoContent(t *testing.T) {
	f := newRouterFixture(t)
	f.admit("surveys:write")
	id := uuid.New()
	f.surveys.EXPECT().Delete(gomock.Any(), "user-1", id).Return(nil)

	w := f.do(http.MethodDelete, "/api/v1/surveys/"+id.String(), nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestRouter_SubmitResponse(t *testing.T) {
	f := newRouterFixture(t)
	f.admit("responses:write")
	surveyID := uuid.New()
	f.responses.EXPECT().Create(gomock.Any(), "user-1", surveyID, gomock.Any()).
		DoAndReturn(func(_ any, _ string, sid uuid.UUID, answers json.RawMessage) (*domain.Response, error) {
			assert.JSONEq(t, `{"q1":"yes"}`, string(answers))
			return &domain.Response{ID: uuid.New(), SurveyID: sid, Answers: answers}, nil
		})

	w := f.do(http.MethodPost, "/api/v1/surveys/"+surveyID.String()+"/responses",
		map[string]any{"answers": map[string]string{"q1": "yes"}})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"type":"response"`)
}

func TestRouter_WebhookSecretOnlyOnCreate(t *testing.T) {
	f := newRouterFixture(t)
	sub := &domain.WebhookSubscription{
		ID:        uuid.New(),
		OwnerID:   "user-1",
		URL:       "https://hooks.example.com/in",
		Events:    []domain.EventType{domain.EventSurveyCreated},
		Active:    true,
		SecretEnc: "ciphertext",
	}

	f.admit("webhooks:write")
	f.webhooks.EXPECT().Create(gomock.Any(), "user-1", gomock.Any()).
		Return(&ports.CreatedWebhook{Subscription: sub, Secret: "whsec_abc"}, nil)
	w := f.do(http.MethodPost, "/api/v1/webhooks", map[string]any{
		"url":    sub.URL,
		"events": []string{"survey.created"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "whsec_abc")

	f.admit("webhooks:read")
	f.webhooks.EXPECT().Get(gomock.Any(), "user-1", sub.ID).Return(sub, nil)
	w = f.do(http.MethodGet, "/api/v1/webhooks/"+sub.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "whsec_")
	assert.NotContains(t, w.Body.String(), "ciphertext")
}

func TestRouter_WebhookTest(t *testing.T) {
	f := newRouterFixture(t)
	f.admit("webhooks:write")
	id := uuid.New()
	status := 204
	f.webhooks.EXPECT().Test(gomock.Any(), "user-1", id).Return(&domain.DeliveryRecord{
		ID: "rec-1", WebhookID: id, PayloadID: "pay-1", EventType: domain.EventWebhookTest,
		Success: true, StatusCode: &status, Attempts: 1,
	}, nil)

	w := f.do(http.MethodPost, "/api/v1/webhooks/"+id.String()+"/test", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"type":"webhook_delivery"`)
	assert.Contains(t, w.Body.String(), `"success":true`)
}

func TestRouter_ServiceFailureIsOpaque(t *testing.T) {
	f := newRouterFixture(t)
	f.admit("webhooks:read")
	f.webhooks.EXPECT().List(gomock.Any(), "user-1", gomock.Any()).Return(nil, int64(0), errors.New("dial tcp: refused"))

	w := f.do(http.MethodGet, "/api/v1/webhooks", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "dial tcp")
}

func TestRouter_UnknownRoute(t *testing.T) {
	f := newRouterFixture(t)

	w := f.do(http.MethodGet, "/api/v1/nothing", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotEmpty(t, decodeError(t, w).Error.RequestID)
}

func TestRouter_MetricsAndDocs(t *testing.T) {
	f := newRouterFixture(t)

	w := f.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/docs/openapi.yaml", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/webhooks/{id}/deliveries")
}
