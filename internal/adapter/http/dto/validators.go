package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"survey-public-api/internal/core/domain"
	"survey-public-api/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
		_ = v.RegisterValidation("safe_url", validateSafeURL)
		_ = v.RegisterValidation("event_type", validateEventType)
		_ = v.RegisterValidation("json_object", validateJSONObject)
	}
}

// jsonFieldName reports validation failures under the JSON field name.
func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// validateSafeURL accepts only absolute http/https URLs with a host.
func validateSafeURL(fl validator.FieldLevel) bool {
	raw := fl.Field().String()
	if raw == "" {
		return true // optional field; use "required" tag to enforce presence
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil || u.Host == "" || u.User != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// validateEventType accepts the subscribable event types.
func validateEventType(fl validator.FieldLevel) bool {
	return domain.EventType(fl.Field().String()).Subscribable()
}

// validateJSONObject accepts a raw JSON value that decodes to an object.
func validateJSONObject(fl validator.FieldLevel) bool {
	raw, ok := fl.Field().Interface().(json.RawMessage)
	if !ok {
		return false
	}
	raw = bytes.TrimSpace(raw)
	return len(raw) > 1 && raw[0] == '{' && json.Valid(raw)
}

// BindJSON decodes and validates the request body into req, then trims its strings.
// Failures come back as VALIDATION_ERROR with per-field issues.
func BindJSON(c *gin.Context, req any) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return bindError(err)
	}
	TrimStrings(req)
	return nil
}

func bindError(err error) error {
	var (
		verrs     validator.ValidationErrors
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		sizeErr   *http.MaxBytesError
	)
	switch {
	case errors.As(err, &verrs):
		issues := make([]apperror.FieldIssue, 0, len(verrs))
		for _, fe := range verrs {
			issues = append(issues, apperror.FieldIssue{Field: fieldPath(fe), Issue: issueText(fe)})
		}
		return apperror.Validation("Invalid request body", issues...)
	case errors.As(err, &sizeErr):
		return apperror.Validation("Request body too large",
			apperror.FieldIssue{Field: "body", Issue: fmt.Sprintf("must not exceed %d bytes", sizeErr.Limit)})
	case errors.As(err, &typeErr):
		return apperror.Validation("Invalid request body",
			apperror.FieldIssue{Field: typeErr.Field, Issue: "must be of type " + typeErr.Type.String()})
	case errors.As(err, &syntaxErr), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return apperror.Validation("Request body is not valid JSON", apperror.FieldIssue{Field: "body", Issue: "malformed JSON"})
	default:
		return apperror.Validation("Invalid request body", apperror.FieldIssue{Field: "body", Issue: err.Error()})
	}
}

// fieldPath drops the top-level struct name: "CreateWebhookRequest.events[0]" becomes "events[0]".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func issueText(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		if fe.Kind() == reflect.Slice {
			return "must have at most " + fe.Param() + " items"
		}
		return "must be at most " + fe.Param() + " characters"
	case "min":
		if fe.Kind() == reflect.Slice {
			return "must have at least " + fe.Param() + " items"
		}
		return "must be at least " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "safe_url":
		return "must be an absolute http or https URL"
	case "event_type":
		return fmt.Sprintf("unsupported event type %q", fe.Value())
	case "json_object":
		return "must be a JSON object"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

// TrimStrings trims whitespace on every exported string field
// (including *string) of a struct pointer.
func TrimStrings(v any) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	rv = rv.Elem()
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(strings.TrimSpace(f.String()))
		case reflect.Ptr:
			if !f.IsNil() && f.Elem().Kind() == reflect.String {
				f.Elem().SetString(strings.TrimSpace(f.Elem().String()))
			}
		}
	}
}
