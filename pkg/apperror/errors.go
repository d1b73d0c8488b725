package apperror

import (
	"fmt"
	"net/http"
	"time"
)

// Kind is the closed set of error categories exposed by the public API.
type Kind string

const (
	KindAuthentication    Kind = "AUTHENTICATION_ERROR"
	KindAuthorization     Kind = "AUTHORIZATION_ERROR"
	KindValidation        Kind = "VALIDATION_ERROR"
	KindNotFound          Kind = "NOT_FOUND"
	KindRateLimitExceeded Kind = "RATE_LIMIT_EXCEEDED"
	KindServer            Kind = "SERVER_ERROR"
)

// HTTPStatus maps a kind to its response status. Unknown kinds are server errors.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimitExceeded:
		return http.StatusTooManyRequests
	case KindServer:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Kind    Kind
	Message string
	Details any   // Machine-readable detail, serialized as error.details
	Err     error // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the status code for the error's kind.
func (e *AppError) HTTPStatus() int {
	return e.Kind.HTTPStatus()
}

// New creates a new AppError.
func New(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

// Wrap wraps an internal error with an AppError.
func Wrap(kind Kind, message string, err error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

// FieldIssue describes one invalid input field.
type FieldIssue struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// RateLimitDetail is attached to RATE_LIMIT_EXCEEDED errors.
type RateLimitDetail struct {
	Limit int64 `json:"limit"`
	Reset int64 `json:"reset"` // Unix timestamp
}

// Authentication reports a missing, malformed or rejected bearer token.
// The cause is kept for logs only.
func Authentication(cause error) *AppError {
	return Wrap(KindAuthentication, "Invalid or missing access token", cause)
}

// Authorization reports a valid token lacking the required scope.
func Authorization(requiredScope string) *AppError {
	return &AppError{
		Kind:    KindAuthorization,
		Message: "Insufficient scope",
		Details: map[string]string{"required_scope": requiredScope},
	}
}

// Validation reports malformed input.
func Validation(message string, issues ...FieldIssue) *AppError {
	e := New(KindValidation, message)
	if len(issues) > 0 {
		e.Details = issues
	}
	return e
}

func NotFound(entity string) *AppError {
	return New(KindNotFound, fmt.Sprintf("%s not found", entity))
}

// RateLimitExceeded carries the tier limit and the window reset instant.
func RateLimitExceeded(limit int64, resetAt time.Time) *AppError {
	return &AppError{
		Kind:    KindRateLimitExceeded,
		Message: "Rate limit exceeded",
		Details: RateLimitDetail{Limit: limit, Reset: resetAt.Unix()},
	}
}

// Internal wraps an internal error as a SERVER_ERROR; the cause is never sent to the client.
func Internal(err error) *AppError {
	return Wrap(KindServer, "Internal server error", err)
}
