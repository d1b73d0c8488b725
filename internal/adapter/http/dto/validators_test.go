package dto

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"survey-public-api/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func bindBody(t *testing.T, body string, req any) error {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return BindJSON(c, req)
}

func validationIssues(t *testing.T, err error) []apperror.FieldIssue {
	t.Helper()
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, apperror.KindValidation, appErr.Kind)
	issues, ok := appErr.Details.([]apperror.FieldIssue)
	require.True(t, ok, "details should be field issues, got %T", appErr.Details)
	return issues
}

func TestBindJSON_CreateSurvey(t *testing.T) {
	var req CreateSurveyRequest
	require.NoError(t, bindBody(t, `{"title":"  NPS Q3  ","status":"active"}`, &req))
	assert.Equal(t, "NPS Q3", req.Title)
	assert.Equal(t, "active", string(req.ToInput().Status))
}

func TestBindJSON_MissingTitle(t *testing.T) {
	var req CreateSurveyRequest
	issues := validationIssues(t, bindBody(t, `{"description":"x"}`, &req))
	require.Len(t, issues, 1)
	assert.Equal(t, "title", issues[0].Field)
	assert.Equal(t, "is required", issues[0].Issue)
}

func TestBindJSON_BadStatus(t *testing.T) {
	var req CreateSurveyRequest
	issues := validationIssues(t, bindBody(t, `{"title":"x","status":"archived"}`, &req))
	assert.Equal(t, "status", issues[0].Field)
	assert.Contains(t, issues[0].Issue, "draft, active, closed")
}

func TestBindJSON_MalformedJSON(t *testing.T) {
	var req CreateSurveyRequest
	issues := validationIssues(t, bindBody(t, `{"title":`, &req))
	assert.Equal(t, "body", issues[0].Field)
}

func TestBindJSON_WrongType(t *testing.T) {
	var req CreateSurveyRequest
	issues := validationIssues(t, bindBody(t, `{"title":42}`, &req))
	assert.Equal(t, "title", issues[0].Field)
}

func TestBindJSON_UpdateSurveyPartial(t *testing.T) {
	var req UpdateSurveyRequest
	require.NoError(t, bindBody(t, `{"description":"  new  "}`, &req))
	assert.Nil(t, req.Title)
	require.NotNil(t, req.Description)
	assert.Equal(t, "new", *req.Description)

	in := req.ToInput()
	assert.Nil(t, in.Status)
}

func TestBindJSON_ResponseAnswersMustBeObject(t *testing.T) {
	var ok CreateResponseRequest
	require.NoError(t, bindBody(t, `{"answers":{"q1":"yes"}}`, &ok))

	for _, body := range []string{`{}`, `{"answers":[1,2]}`, `{"answers":"text"}`} {
		var req CreateResponseRequest
		issues := validationIssues(t, bindBody(t, body, &req))
		assert.Equal(t, "answers", issues[0].Field, body)
	}
}

func TestBindJSON_Webhook(t *testing.T) {
	var req CreateWebhookRequest
	require.NoError(t, bindBody(t, `{"url":"https://hooks.example.com/in","events":["survey.created","response.created"]}`, &req))
	in := req.ToInput()
	assert.Len(t, in.Events, 2)

	var bad CreateWebhookRequest
	issues := validationIssues(t, bindBody(t, `{"url":"https://hooks.example.com/in","events":["survey.created","survey.archived"]}`, &bad))
	assert.Equal(t, "events[1]", issues[0].Field)
	assert.Contains(t, issues[0].Issue, "survey.archived")

	var empty CreateWebhookRequest
	issues = validationIssues(t, bindBody(t, `{"url":"https://hooks.example.com/in","events":[]}`, &empty))
	assert.Equal(t, "events", issues[0].Field)
}

func TestSafeURL(t *testing.T) {
	valid := []string{"https://example.com/hook", "http://10.0.0.1:8080/x?y=1"}
	invalid := []string{"ftp://example.com", "javascript:alert(1)", "/relative", "https://user:pw@example.com", "not a url"}

	for _, u := range valid {
		var req CreateWebhookRequest
		assert.NoError(t, bindBody(t, `{"url":"`+u+`","events":["survey.created"]}`, &req), u)
	}
	for _, u := range invalid {
		var req CreateWebhookRequest
		issues := validationIssues(t, bindBody(t, `{"url":"`+u+`","events":["survey.created"]}`, &req))
		assert.Equal(t, "url", issues[0].Field, u)
	}
}

func TestBindJSON_BodyTooLarge(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body := `{"title":"` + strings.Repeat("a", 200) + `"}`
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	c.Request.Body = http.MaxBytesReader(w, c.Request.Body, 32)

	var req CreateSurveyRequest
	err := BindJSON(c, &req)
	issues := validationIssues(t, err)
	assert.Equal(t, "body", issues[0].Field)
	assert.Contains(t, issues[0].Issue, "32 bytes")
}

func TestTrimStrings_NonPointerIsNoOp(t *testing.T) {
	assert.NotPanics(t, func() { TrimStrings("hello") })
}
