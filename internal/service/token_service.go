package service

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"survey-public-api/internal/core/domain"
	"survey-public-api/pkg/apperror"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// KeyResolver returns the verification key named by a token's kid.
type KeyResolver interface {
	Key(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// TokenConfig holds the claims a token must carry to be accepted.
type TokenConfig struct {
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// accessClaims are the claims read from an access token.
type accessClaims struct {
	Scope           string `json:"scope"`
	AuthorizedParty string `json:"azp"`
	ClientID        string `json:"client_id"`
	jwt.RegisteredClaims
}

// JWTTokenValidator implements ports.TokenValidator for RS256 bearer tokens.
type JWTTokenValidator struct {
	keys   KeyResolver
	parser *jwt.Parser
	log    zerolog.Logger
}

// NewJWTTokenValidator creates a validator. now may be nil to use the wall clock.
func NewJWTTokenValidator(cfg TokenConfig, keys KeyResolver, now func() time.Time, log zerolog.Logger) *JWTTokenValidator {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if now != nil {
		opts = append(opts, jwt.WithTimeFunc(now))
	}
	return &JWTTokenValidator{
		keys:   keys,
		parser: jwt.NewParser(opts...),
		log:    log,
	}
}

// Validate verifies the bearer token in the Authorization header value.
// The reason for a rejection is logged, never returned to the client.
func (v *JWTTokenValidator) Validate(ctx context.Context, authorization string) (*domain.CallerIdentity, error) {
	identity, err := v.validate(ctx, authorization)
	if err != nil {
		v.log.Warn().Err(err).Msg("token rejected")
		return nil, apperror.Authentication(err)
	}
	return identity, nil
}

func (v *JWTTokenValidator) validate(ctx context.Context, authorization string) (*domain.CallerIdentity, error) {
	raw, err := bearerToken(authorization)
	if err != nil {
		return nil, err
	}

	claims := &accessClaims{}
	_, err = v.parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token header has no kid")
		}
		return v.keys.Key(ctx, kid)
	})
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	if claims.Subject == "" {
		return nil, errors.New("missing subject claim")
	}
	if strings.TrimSpace(claims.Scope) == "" {
		return nil, errors.New("missing scope claim")
	}

	clientID := claims.AuthorizedParty
	if clientID == "" {
		clientID = claims.ClientID
	}
	if clientID == "" {
		clientID = claims.Subject
	}

	return &domain.CallerIdentity{
		Subject:  claims.Subject,
		Scope:    claims.Scope,
		ClientID: clientID,
	}, nil
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("missing authorization header")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errors.New("authorization header is not a bearer token")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("empty bearer token")
	}
	return token, nil
}
