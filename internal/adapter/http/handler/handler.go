package handler

import (
	"survey-public-api/internal/adapter/http/middleware"
	"survey-public-api/internal/core/domain"
	"survey-public-api/pkg/apperror"
	"survey-public-api/pkg/pagination"
	"survey-public-api/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// caller returns the identity set by the guard. Routes without the guard
// are misconfigured, so a missing identity is an authentication failure.
func caller(c *gin.Context) (*domain.CallerIdentity, error) {
	id, ok := middleware.Identity(c)
	if !ok {
		return nil, apperror.New(apperror.KindAuthentication, "Invalid or missing access token")
	}
	return id, nil
}

// pathID parses a UUID path parameter.
func pathID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperror.Validation("Invalid path parameter", apperror.FieldIssue{Field: name, Issue: "must be a UUID"})
	}
	return id, nil
}

// requestURL rebuilds the absolute URL of the request for pagination links.
func requestURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	u := *c.Request.URL
	u.Scheme = scheme
	u.Host = c.Request.Host
	return u.String()
}

func pageParams(c *gin.Context) pagination.Params {
	return pagination.ParseParams(c.Request.URL.Query())
}

func notFound(c *gin.Context) {
	response.Error(c, apperror.New(apperror.KindNotFound, "Route not found"))
}

func methodNotAllowed(c *gin.Context) {
	response.Error(c, apperror.Validation("Method not allowed", apperror.FieldIssue{Field: "method", Issue: c.Request.Method + " is not supported on this route"}))
}
