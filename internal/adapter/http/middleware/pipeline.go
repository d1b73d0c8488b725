package middleware

import (
	"errors"
	"strconv"
	"time"

	"survey-public-api/internal/core/domain"
	"survey-public-api/internal/core/ports"
	"survey-public-api/internal/observability"
	"survey-public-api/pkg/apperror"
	"survey-public-api/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Rate limit response headers.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
)

// Context keys set by the guard.
const (
	CtxIdentity = "caller_identity"
	CtxTier     = "rate_limit_tier"
)

// Guard runs the access pipeline in front of protected routes:
// validate token, resolve tier, authorize scope, admit against the rate limit.
type Guard struct {
	tokens  ports.TokenValidator
	tiers   ports.TierResolver
	limiter ports.RateLimiter
	metrics *observability.Metrics
	now     func() time.Time
	log     zerolog.Logger
}

// NewGuard creates the access pipeline.
func NewGuard(tokens ports.TokenValidator, tiers ports.TierResolver, limiter ports.RateLimiter, metrics *observability.Metrics, log zerolog.Logger) *Guard {
	return &Guard{
		tokens:  tokens,
		tiers:   tiers,
		limiter: limiter,
		metrics: metrics,
		now:     time.Now,
		log:     log,
	}
}

// Require returns a handler admitting only callers granted scope.
// Later stages never run once a stage fails. Rate limit headers are set on
// every response once the tier is known; a scope failure reports the current
// window without consuming quota.
func (g *Guard) Require(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		identity, err := g.tokens.Validate(ctx, c.GetHeader("Authorization"))
		if err != nil {
			g.metrics.ObserveAuthFailure("token")
			response.Abort(c, asAuthentication(err))
			return
		}

		tier, err := g.tiers.ResolveTier(ctx, identity.Subject)
		if err != nil {
			response.Abort(c, apperror.Internal(err))
			return
		}
		c.Set(CtxIdentity, identity)
		c.Set(CtxTier, tier)

		if !identity.HasScope(scope) {
			g.metrics.ObserveAuthFailure("scope")
			if decision, err := g.limiter.Check(ctx, identity.ClientID, tier); err == nil {
				setRateLimitHeaders(c, decision)
			} else {
				g.log.Warn().Err(err).Str("client_id", identity.ClientID).Msg("rate limit peek failed")
			}
			response.Abort(c, apperror.Authorization(scope))
			return
		}

		decision, err := g.limiter.Admit(ctx, identity.ClientID, tier)
		if err != nil {
			response.Abort(c, apperror.Internal(err))
			return
		}
		setRateLimitHeaders(c, decision)
		if !decision.Allowed {
			c.Header(HeaderRetryAfter, strconv.FormatInt(decision.RetryAfter(g.now()), 10))
			response.Abort(c, apperror.RateLimitExceeded(decision.Limit, decision.ResetAt))
			return
		}

		c.Next()
	}
}

func setRateLimitHeaders(c *gin.Context, d domain.RateLimitDecision) {
	c.Header(HeaderRateLimitLimit, strconv.FormatInt(d.Limit, 10))
	c.Header(HeaderRateLimitRemaining, strconv.FormatInt(d.Remaining, 10))
	c.Header(HeaderRateLimitReset, strconv.FormatInt(d.ResetAt.Unix(), 10))
}

// asAuthentication keeps validator AppErrors and wraps anything else as a 401.
func asAuthentication(err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Kind == apperror.KindAuthentication {
		return appErr
	}
	return apperror.Authentication(err)
}

// Identity returns the caller identity stored by the guard.
func Identity(c *gin.Context) (*domain.CallerIdentity, bool) {
	v, ok := c.Get(CtxIdentity)
	if !ok {
		return nil, false
	}
	id, ok := v.(*domain.CallerIdentity)
	return id, ok && id != nil
}

func identitySubject(v any) string {
	if id, ok := v.(*domain.CallerIdentity); ok && id != nil {
		return id.Subject
	}
	return ""
}
