package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"survey-public-api/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestOK_ResourceEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	OK(c, "survey", "abc", map[string]string{"title": "NPS"})

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"]
	assert.Equal(t, "abc", data["id"])
	assert.Equal(t, "survey", data["type"])
	attrs := data["attributes"].(map[string]any)
	assert.Equal(t, "NPS", attrs["title"])
}

func TestCreated(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Created(c, "webhook", "wh_1", map[string]string{"url": "https://example.com"})

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestError_AppError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(CtxRequestID, "test-req-789")

	Error(c, apperror.NotFound("Survey"))

	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, apperror.KindNotFound, resp.Error.Code)
	assert.Equal(t, "Survey not found", resp.Error.Message)
	assert.Equal(t, "test-req-789", resp.Error.RequestID)
	assert.Len(t, c.Errors, 1)
}

func TestError_WrappedAppError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	wrappedErr := fmt.Errorf("outer: %w", apperror.Authorization("surveys:write"))
	Error(c, wrappedErr)

	assert.Equal(t, http.StatusForbidden, w.Code)

	var resp map[string]map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "AUTHORIZATION_ERROR", resp["error"]["code"])
	details := resp["error"]["details"].(map[string]any)
	assert.Equal(t, "surveys:write", details["required_scope"])
}

func TestError_RateLimitDetails(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, apperror.RateLimitExceeded(60, time.Unix(1700000000, 0)))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	var resp map[string]map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	details := resp["error"]["details"].(map[string]any)
	assert.EqualValues(t, 60, details["limit"])
	assert.EqualValues(t, 1700000000, details["reset"])
}

func TestError_UnknownErrorWithheld(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, errors.New("pq: relation \"surveys\" does not exist"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "relation")

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, apperror.KindServer, resp.Error.Code)
	assert.NotEmpty(t, resp.Error.RequestID, "request id is generated when missing")
	assert.Nil(t, resp.Error.Details)
}

func TestAbort_StopsChain(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Abort(c, apperror.Validation("bad"))

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNoContent(t *testing.T) {
	r := gin.New()
	r.DELETE("/x", func(c *gin.Context) { NoContent(c) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/x", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
