package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"survey-public-api/config"
	httpHandler "survey-public-api/internal/adapter/http/handler"
	"survey-public-api/internal/adapter/storage/memory"
	pgStorage "survey-public-api/internal/adapter/storage/postgres"
	redisStorage "survey-public-api/internal/adapter/storage/redis"
	"survey-public-api/internal/core/domain"
	"survey-public-api/internal/core/ports"
	"survey-public-api/internal/observability"
	"survey-public-api/internal/service"
	"survey-public-api/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath)
		},
	}
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(cfg.Server.Mode)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("ratelimit_store", cfg.RateLimit.Store).
		Msg("Starting Survey Public API")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics()
	}

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("connecting to PostgreSQL: %w", err)
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return fmt.Errorf("connecting to Redis: %w", err)
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	surveyRepo := pgStorage.NewSurveyRepo(pool)
	responseRepo := pgStorage.NewResponseRepo(pool)
	webhookRepo := pgStorage.NewWebhookRepo(pool)
	deliveryRepo := pgStorage.NewDeliveryRepo(pool)
	planRepo := pgStorage.NewPlanRepo(pool)

	// Initialize rate limit store
	var rateStore ports.RateLimitStore
	switch cfg.RateLimit.Store {
	case "redis":
		rateStore = redisStorage.NewRateLimitStore(rdb)
	default:
		mem := memory.NewRateLimitStore(log)
		mem.StartSweeper(cfg.RateLimit.SweepInterval)
		defer mem.Stop()
		rateStore = mem
	}

	limiter, err := service.NewRateLimitService(rateStore, tierPolicies(cfg.RateLimit.Tiers), metrics, log)
	if err != nil {
		return fmt.Errorf("initializing rate limiter: %w", err)
	}
	tiers := service.NewTierResolverService(planRepo, redisStorage.NewTierCache(rdb), cfg.RateLimit.TierCacheTTL, log)

	// Initialize token validation
	jwks := service.NewJWKSCache(service.JWKSConfig{
		URL:                cfg.Auth.JWKSURL,
		CacheTTL:           cfg.Auth.JWKSCacheTTL,
		FetchTimeout:       cfg.Auth.JWKSFetchTimeout,
		MinRefreshInterval: cfg.Auth.JWKSMinRefreshInterval,
	}, &http.Client{Timeout: cfg.Auth.JWKSFetchTimeout}, metrics, log)
	tokens := service.NewJWTTokenValidator(service.TokenConfig{
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		Leeway:   cfg.Auth.Leeway,
	}, jwks, nil, log)

	// Initialize webhook delivery
	encSvc, err := service.NewXChaChaEncryptionService(cfg.Encryption.Key)
	if err != nil {
		return fmt.Errorf("initializing encryption service: %w", err)
	}
	sigSvc := service.NewHMACSignatureService()
	dispatcher := service.NewWebhookDispatcher(service.DispatcherConfig{
		Timeout:     cfg.Webhook.Timeout,
		TestTimeout: cfg.Webhook.TestTimeout,
		MaxAttempts: cfg.Webhook.MaxAttempts,
		BaseBackoff: cfg.Webhook.BaseBackoff,
		Workers:     cfg.Webhook.Workers,
		QueueSize:   cfg.Webhook.QueueSize,
		UserAgent:   cfg.Webhook.UserAgent,
	}, webhookRepo, deliveryRepo, encSvc, sigSvc, nil, metrics, log)
	dispatcher.Start()

	// Initialize business services
	surveySvc := service.NewSurveyService(surveyRepo, dispatcher, log)
	responseSvc := service.NewResponseService(surveySvc, responseRepo, dispatcher, log)
	webhookSvc := service.NewWebhookService(webhookRepo, deliveryRepo, encSvc, dispatcher)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		SurveySvc:   surveySvc,
		ResponseSvc: responseSvc,
		WebhookSvc:  webhookSvc,
		Tokens:      tokens,
		Tiers:       tiers,
		Limiter:     limiter,
		HealthCheckers: []ports.HealthChecker{
			pgStorage.NewHealthCheck(pool),
			redisStorage.NewHealthCheck(rdb),
		},
		Metrics:      metrics,
		MetricsPath:  cfg.Metrics.Path,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Logger:       log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	// Drain queued webhook deliveries after the last request has finished.
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Webhook dispatcher did not drain in time")
	}

	log.Info().Msg("Server exited")
	return nil
}

func tierPolicies(tiers map[string]config.TierConfig) map[domain.Tier]domain.TierPolicy {
	policies := make(map[domain.Tier]domain.TierPolicy, len(tiers))
	for name, t := range tiers {
		policies[domain.Tier(name)] = domain.TierPolicy{Window: t.Window, MaxRequests: t.MaxRequests}
	}
	return policies
}
