package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"survey-public-api/pkg/apperror"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://auth.example.com/"
	testAudience = "https://api.example.com"
)

var (
	keyOnce   sync.Once
	keyA      *rsa.PrivateKey
	keyB      *rsa.PrivateKey
	keyGenErr error
)

func testKeys(t *testing.T) (*rsa.PrivateKey, *rsa.PrivateKey) {
	t.Helper()
	keyOnce.Do(func() {
		keyA, keyGenErr = rsa.GenerateKey(rand.Reader, 2048)
		if keyGenErr == nil {
			keyB, keyGenErr = rsa.GenerateKey(rand.Reader, 2048)
		}
	})
	require.NoError(t, keyGenErr)
	return keyA, keyB
}

// jwksServer serves the public halves of keys and counts fetches.
type jwksServer struct {
	*httptest.Server
	mu      sync.Mutex
	keys    map[string]*rsa.PublicKey
	fetches atomic.Int32
	fail    atomic.Bool
	delay   atomic.Int64 // nanoseconds
}

func newJWKSServer(t *testing.T, keys map[string]*rsa.PublicKey) *jwksServer {
	t.Helper()
	s := &jwksServer{keys: keys}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.fetches.Add(1)
		if d := s.delay.Load(); d > 0 {
			time.Sleep(time.Duration(d))
		}
		if s.fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		set := jwkSet{}
		for kid, pub := range s.keys {
			set.Keys = append(set.Keys, jwk{
				Kty: "RSA",
				Kid: kid,
				Use: "sig",
				Alg: "RS256",
				N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(set)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *jwksServer) setKeys(keys map[string]*rsa.PublicKey) {
	s.mu.Lock()
	s.keys = keys
	s.mu.Unlock()
}

func signToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		tok.Header["kid"] = kid
	}
	s, err := tok.SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"sub":   "user_123",
		"aud":   testAudience,
		"iss":   testIssuer,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
		"scope": "surveys:read responses:write",
		"azp":   "client_abc",
	}
}

func newTestValidator(t *testing.T, srv *jwksServer) (*JWTTokenValidator, *JWKSCache) {
	t.Helper()
	cache := NewJWKSCache(JWKSConfig{
		URL:                srv.URL,
		CacheTTL:           time.Minute,
		FetchTimeout:       2 * time.Second,
		MinRefreshInterval: time.Hour,
	}, srv.Client(), nil, zerolog.Nop())
	v := NewJWTTokenValidator(TokenConfig{Issuer: testIssuer, Audience: testAudience}, cache, nil, zerolog.Nop())
	return v, cache
}

func assertAuthError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperror.KindAuthentication, appErr.Kind)
}

func TestJWTTokenValidator_Valid(t *testing.T) {
	a, _ := testKeys(t)
	srv := newJWKSServer(t, map[string]*rsa.PublicKey{"k1": &a.PublicKey})
	v, _ := newTestValidator(t, srv)

	id, err := v.Validate(context.Background(), "Bearer "+signToken(t, a, "k1", validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "user_123", id.Subject)
	assert.Equal(t, "surveys:read responses:write", id.Scope)
	assert.Equal(t, "client_abc", id.ClientID)
}

func TestJWTTokenValidator_ClientIDFallback(t *testing.T) {
	a, _ := testKeys(t)
	srv := newJWKSServer(t, map[string]*rsa.PublicKey{"k1": &a.PublicKey})
	v, _ := newTestValidator(t, srv)

	claims := validClaims()
	delete(claims, "azp")
	claims["client_id"] = "client_from_claim"
	id, err := v.Validate(context.Background(), "Bearer "+signToken(t, a, "k1", claims))
	require.NoError(t, err)
	assert.Equal(t, "client_from_claim", id.ClientID)

	delete(claims, "client_id")
	id, err = v.Validate(context.Background(), "Bearer "+signToken(t, a, "k1", claims))
	require.NoError(t, err)
	assert.Equal(t, "user_123", id.ClientID)
}

func TestJWTTokenValidator_Rejections(t *testing.T) {
	a, b := testKeys(t)
	srv := newJWKSServer(t, map[string]*rsa.PublicKey{"k1": &a.PublicKey})

	with := func(mut func(jwt.MapClaims)) jwt.MapClaims {
		c := validClaims()
		mut(c)
		return c
	}

	hs256 := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims())
	hs256.Header["kid"] = "k1"
	hsToken, err := hs256.SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"empty bearer", "Bearer "},
		{"garbage token", "Bearer not.a.jwt"},
		{"wrong audience", "Bearer " + signToken(t, a, "k1", with(func(c jwt.MapClaims) { c["aud"] = "https://other.example.com" }))},
		{"wrong issuer", "Bearer " + signToken(t, a, "k1", with(func(c jwt.MapClaims) { c["iss"] = "https://evil.example.com/" }))},
		{"expired", "Bearer " + signToken(t, a, "k1", with(func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Hour).Unix() }))},
		{"no exp", "Bearer " + signToken(t, a, "k1", with(func(c jwt.MapClaims) { delete(c, "exp") }))},
		{"missing scope", "Bearer " + signToken(t, a, "k1", with(func(c jwt.MapClaims) { delete(c, "scope") }))},
		{"empty scope", "Bearer " + signToken(t, a, "k1", with(func(c jwt.MapClaims) { c["scope"] = "  " }))},
		{"missing subject", "Bearer " + signToken(t, a, "k1", with(func(c jwt.MapClaims) { delete(c, "sub") }))},
		{"missing kid", "Bearer " + signToken(t, a, "", validClaims())},
		{"signed by other key", "Bearer " + signToken(t, b, "k1", validClaims())},
		{"hs256 rejected", "Bearer " + hsToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _ := newTestValidator(t, srv)
			_, err := v.Validate(context.Background(), tt.header)
			assertAuthError(t, err)
		})
	}
}

func TestJWTTokenValidator_MalformedHeaderMakesNoNetworkCall(t *testing.T) {
	a, _ := testKeys(t)
	srv := newJWKSServer(t, map[string]*rsa.PublicKey{"k1": &a.PublicKey})
	v, _ := newTestValidator(t, srv)

	_, err := v.Validate(context.Background(), "Token abc")
	assertAuthError(t, err)
	assert.Equal(t, int32(0), srv.fetches.Load())
}

func TestJWTTokenValidator_ErrorDoesNotLeakReason(t *testing.T) {
	a, _ := testKeys(t)
	srv := newJWKSServer(t, map[string]*rsa.PublicKey{"k1": &a.PublicKey})
	v, _ := newTestValidator(t, srv)

	c := validClaims()
	c["aud"] = "https://other.example.com"
	_, err := v.Validate(context.Background(), "Bearer "+signToken(t, a, "k1", c))

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.NotContains(t, appErr.Message, "aud")
}

func TestJWKSCache_CachesKeys(t *testing.T) {
	a, _ := testKeys(t)
	srv := newJWKSServer(t, map[string]*rsa.PublicKey{"k1": &a.PublicKey})
	v, _ := newTestValidator(t, srv)
	token := "Bearer " + signToken(t, a, "k1", validClaims())

	for range 5 {
		_, err := v.Validate(context.Background(), token)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), srv.fetches.Load())
}

func TestJWKSCache_ConcurrentColdStartSharesFetch(t *testing.T) {
	a, _ := testKeys(t)
	srv := newJWKSServer(t, map[string]*rsa.PublicKey{"k1": &a.PublicKey})
	srv.delay.Store(int64(50 * time.Millisecond))
	v, _ := newTestValidator(t, srv)
	token := "Bearer " + signToken(t, a, "k1", validClaims())

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := v.Validate(context.Background(), token)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), srv.fetches.Load())
}

func TestJWKSCache_UnknownKidTriggersRefresh(t *testing.T) {
	a, b := testKeys(t)
	srv := newJWKSServer(t, map[string]*rsa.PublicKey{"k1": &a.PublicKey})
	v, _ := newTestValidator(t, srv)

	_, err := v.Validate(context.Background(), "Bearer "+signToken(t, a, "k1", validClaims()))
	require.NoError(t, err)

	// Key rotation: the provider now publishes k2.
	srv.setKeys(map[string]*rsa.PublicKey{"k1": &a.PublicKey, "k2": &b.PublicKey})

	id, err := v.Validate(context.Background(), "Bearer "+signToken(t, b, "k2", validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "user_123", id.Subject)
	assert.Equal(t, int32(2), srv.fetches.Load())
}

func TestJWKSCache_UnknownKidRefreshIsThrottled(t *testing.T) {
	a, b := testKeys(t)
	srv := newJWKSServer(t, map[string]*rsa.PublicKey{"k1": &a.PublicKey})
	_, cache := newTestValidator(t, srv)
	ctx := context.Background()

	_, err := cache.Key(ctx, "k1")
	require.NoError(t, err)

	_, err = cache.Key(ctx, "nope")
	assert.ErrorIs(t, err, ErrUnknownKeyID)
	assert.Equal(t, int32(2), srv.fetches.Load())

	srv.setKeys(map[string]*rsa.PublicKey{"k2": &b.PublicKey})
	_, err = cache.Key(ctx, "k2")
	assert.ErrorIs(t, err, ErrUnknownKeyID, "second unknown kid within the interval does not refetch")
	assert.Equal(t, int32(2), srv.fetches.Load())
}

func TestJWKSCache_StaleKeyServedWhenRefreshFails(t *testing.T) {
	a, _ := testKeys(t)
	srv := newJWKSServer(t, map[string]*rsa.PublicKey{"k1": &a.PublicKey})
	_, cache := newTestValidator(t, srv)

	now := time.Now()
	cache.now = func() time.Time { return now }

	_, err := cache.Key(context.Background(), "k1")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	srv.fail.Store(true)

	key, err := cache.Key(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, a.PublicKey.N, key.N)
	assert.Equal(t, int32(2), srv.fetches.Load())
}

func TestJWKSCache_FetchFailureWithoutCachedKey(t *testing.T) {
	a, _ := testKeys(t)
	srv := newJWKSServer(t, map[string]*rsa.PublicKey{"k1": &a.PublicKey})
	srv.fail.Store(true)
	_, cache := newTestValidator(t, srv)

	_, err := cache.Key(context.Background(), "k1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownKeyID)
}

func TestJWK_RSAPublicKey(t *testing.T) {
	a, _ := testKeys(t)
	k := jwk{
		Kty: "RSA",
		Kid: "k1",
		N:   base64.RawURLEncoding.EncodeToString(a.PublicKey.N.Bytes()),
		E:   "AQAB",
	}
	pub, err := k.rsaPublicKey()
	require.NoError(t, err)
	assert.Equal(t, 65537, pub.E)
	assert.Equal(t, 0, pub.N.Cmp(a.PublicKey.N))

	_, err = jwk{N: "!!", E: "AQAB"}.rsaPublicKey()
	assert.Error(t, err)
}
