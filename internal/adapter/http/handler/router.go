package handler

import (
	"survey-public-api/internal/adapter/http/middleware"
	"survey-public-api/internal/core/domain"
	"survey-public-api/internal/core/ports"
	"survey-public-api/internal/observability"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	SurveySvc      ports.SurveyService
	ResponseSvc    ports.ResponseService
	WebhookSvc     ports.WebhookService
	Tokens         ports.TokenValidator
	Tiers          ports.TierResolver
	Limiter        ports.RateLimiter
	HealthCheckers []ports.HealthChecker
	Metrics        *observability.Metrics // nil = metrics disabled
	MetricsPath    string
	MaxBodyBytes   int64
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(middleware.MaxBodySize(maxBody))

	// Deep health check of PostgreSQL and Redis
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	if deps.Metrics != nil {
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(deps.Metrics.Handler()))
	}

	docs := r.Group("/docs")
	{
		docs.GET("", DocsUI)
		docs.GET("/openapi.yaml", OpenAPISpec)
	}

	guard := middleware.NewGuard(deps.Tokens, deps.Tiers, deps.Limiter, deps.Metrics, deps.Logger)
	v1 := r.Group("/api/v1")

	surveyHandler := NewSurveyHandler(deps.SurveySvc)
	responseHandler := NewResponseHandler(deps.ResponseSvc)
	surveys := v1.Group("/surveys")
	{
		surveys.GET("", guard.Require(domain.ScopeSurveysRead), surveyHandler.List)
		surveys.POST("", guard.Require(domain.ScopeSurveysWrite), surveyHandler.Create)
		surveys.GET("/:id", guard.Require(domain.ScopeSurveysRead), surveyHandler.Get)
		surveys.PATCH("/:id", guard.Require(domain.ScopeSurveysWrite), surveyHandler.Update)
		surveys.DELETE("/:id", guard.Require(domain.ScopeSurveysWrite), surveyHandler.Delete)
		surveys.GET("/:id/responses", guard.Require(domain.ScopeResponsesRead), responseHandler.List)
		surveys.POST("/:id/responses", guard.Require(domain.ScopeResponsesWrite), responseHandler.Create)
	}

	webhookHandler := NewWebhookHandler(deps.WebhookSvc)
	webhooks := v1.Group("/webhooks")
	{
		webhooks.GET("", guard.Require(domain.ScopeWebhooksRead), webhookHandler.List)
		webhooks.POST("", guard.Require(domain.ScopeWebhooksWrite), webhookHandler.Create)
		webhooks.GET("/:id", guard.Require(domain.ScopeWebhooksRead), webhookHandler.Get)
		webhooks.DELETE("/:id", guard.Require(domain.ScopeWebhooksWrite), webhookHandler.Delete)
		webhooks.POST("/:id/test", guard.Require(domain.ScopeWebhooksWrite), webhookHandler.Test)
		webhooks.GET("/:id/deliveries", guard.Require(domain.ScopeWebhooksRead), webhookHandler.Deliveries)
	}

	r.NoRoute(notFound)
	r.NoMethod(methodNotAllowed)

	return r
}
