package response

import (
	"errors"
	"net/http"

	"survey-public-api/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CtxRequestID is the gin context key holding the request ID.
const CtxRequestID = "request_id"

// Resource is the single-resource representation: {id, type, attributes}.
type Resource struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes any    `json:"attributes"`
}

// ResourceResponse is the single-resource envelope.
type ResourceResponse struct {
	Data Resource `json:"data"`
}

// ErrorBody is the inner error object.
type ErrorBody struct {
	Code      apperror.Kind `json:"code"`
	Message   string        `json:"message"`
	Details   any           `json:"details,omitempty"`
	RequestID string        `json:"request_id"`
}

// ErrorResponse is the shared error envelope.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// OK sends a 200 response with a single resource.
func OK(c *gin.Context, resourceType, id string, attributes any) {
	c.JSON(http.StatusOK, ResourceResponse{Data: Resource{ID: id, Type: resourceType, Attributes: attributes}})
}

// Created sends a 201 response with a single resource.
func Created(c *gin.Context, resourceType, id string, attributes any) {
	c.JSON(http.StatusCreated, ResourceResponse{Data: Resource{ID: id, Type: resourceType, Attributes: attributes}})
}

// List sends a 200 response with an already-built list envelope.
func List(c *gin.Context, body any) {
	c.JSON(http.StatusOK, body)
}

// NoContent sends a 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response. Non-AppError values become SERVER_ERROR.
// The error is attached to the gin context so the request logger records the cause.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = apperror.Internal(err)
	}
	_ = c.Error(err)

	body := ErrorBody{
		Code:      appErr.Kind,
		Message:   appErr.Message,
		RequestID: RequestID(c),
	}
	if appErr.Kind != apperror.KindServer {
		body.Details = appErr.Details
	}
	c.JSON(appErr.HTTPStatus(), ErrorResponse{Error: body})
}

// Abort writes err and stops the handler chain.
func Abort(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}

// RequestID retrieves request ID from context, or generates one.
func RequestID(c *gin.Context) string {
	if id, exists := c.Get(CtxRequestID); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return uuid.New().String()
}
