package service

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"survey-public-api/internal/observability"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

var (
	// ErrUnknownKeyID is returned when no key in the remote set matches the token's kid.
	ErrUnknownKeyID     = errors.New("unknown key id")
	errRefreshThrottled = errors.New("key set refresh throttled")
)

const maxJWKSBodyBytes = 1 << 20

// JWKSConfig configures the remote key set cache.
type JWKSConfig struct {
	URL                string
	CacheTTL           time.Duration
	FetchTimeout       time.Duration
	MinRefreshInterval time.Duration // between refreshes triggered by unknown kids
}

// JWKSCache resolves RSA verification keys by kid from a remote JSON Web Key Set.
// Reads are served from memory. Concurrent refreshes share one in-flight fetch,
// and a failed refresh keeps serving keys that were already cached.
type JWKSCache struct {
	cfg     JWKSConfig
	client  HTTPClient
	limiter *rate.Limiter
	group   singleflight.Group
	now     func() time.Time
	log     zerolog.Logger
	metrics *observability.Metrics

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// NewJWKSCache creates an empty cache. Keys are fetched on first use.
func NewJWKSCache(cfg JWKSConfig, client HTTPClient, metrics *observability.Metrics, log zerolog.Logger) *JWKSCache {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 15 * time.Minute
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 5 * time.Second
	}
	if cfg.MinRefreshInterval <= 0 {
		cfg.MinRefreshInterval = 10 * time.Second
	}
	if client == nil {
		client = &http.Client{}
	}
	return &JWKSCache{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Every(cfg.MinRefreshInterval), 1),
		now:     time.Now,
		log:     log,
		metrics: metrics,
		keys:    map[string]*rsa.PublicKey{},
	}
}

// Key returns the public key for kid, refreshing the set when it is stale or
// does not contain kid.
func (c *JWKSCache) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	key, fresh := c.lookup(kid)
	if key != nil && fresh {
		return key, nil
	}

	err := c.refresh(ctx, kid)

	key, _ = c.lookup(kid)
	if key != nil {
		if err != nil && !errors.Is(err, errRefreshThrottled) {
			c.log.Warn().Err(err).Str("kid", kid).Msg("jwks: refresh failed, serving cached key")
		}
		return key, nil
	}
	if err != nil && !errors.Is(err, errRefreshThrottled) {
		return nil, fmt.Errorf("fetching key set: %w", err)
	}
	return nil, ErrUnknownKeyID
}

func (c *JWKSCache) lookup(kid string) (*rsa.PublicKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fresh := !c.fetchedAt.IsZero() && c.now().Sub(c.fetchedAt) < c.cfg.CacheTTL
	return c.keys[kid], fresh
}

// refresh fetches the key set at most once for all concurrent callers.
func (c *JWKSCache) refresh(ctx context.Context, kid string) error {
	ch := c.group.DoChan("jwks", func() (any, error) {
		// A flight that finished just before this one may already have the key.
		key, fresh := c.lookup(kid)
		if fresh {
			if key != nil {
				return nil, nil
			}
			if !c.limiter.Allow() {
				return nil, errRefreshThrottled
			}
		}

		keys, err := c.fetch()
		c.metrics.ObserveJWKSRefresh(err)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.keys = keys
		c.fetchedAt = c.now()
		c.mu.Unlock()

		c.log.Debug().Int("keys", len(keys)).Msg("jwks: key set refreshed")
		return nil, nil
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fetch runs under its own timeout so one caller's cancellation does not fail
// the waiters sharing the flight.
func (c *JWKSCache) fetch() (map[string]*rsa.PublicKey, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var set jwkSet
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJWKSBodyBytes)).Decode(&set); err != nil {
		return nil, fmt.Errorf("decoding key set: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" || k.Kid == "" || (k.Use != "" && k.Use != "sig") {
			continue
		}
		pub, err := k.rsaPublicKey()
		if err != nil {
			c.log.Warn().Err(err).Str("kid", k.Kid).Msg("jwks: skipping malformed key")
			continue
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return nil, errors.New("key set contains no usable RSA signing keys")
	}
	return keys, nil
}

type jwkSet struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (k jwk) rsaPublicKey() (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}
	if len(nb) == 0 || len(eb) == 0 || len(eb) > 4 {
		return nil, errors.New("invalid key parameters")
	}

	e := 0
	for _, b := range eb {
		e = e<<8 | int(b)
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: e}, nil
}
