package domain

import "strings"

// CallerIdentity is the principal extracted from a verified bearer token.
// It lives for one request and is never persisted.
type CallerIdentity struct {
	Subject  string
	Scope    string // space-separated granted scopes
	ClientID string
}

// Scopes required by the public API routes.
const (
	ScopeSurveysRead    = "surveys:read"
	ScopeSurveysWrite   = "surveys:write"
	ScopeResponsesRead  = "responses:read"
	ScopeResponsesWrite = "responses:write"
	ScopeWebhooksRead   = "webhooks:read"
	ScopeWebhooksWrite  = "webhooks:write"
)

// HasScope reports whether required is one of the whitespace-separated scopes in granted.
// Matching is exact; "surveys:*" does not imply "surveys:read".
func HasScope(granted, required string) bool {
	if required == "" {
		return false
	}
	for _, s := range strings.Fields(granted) {
		if s == required {
			return true
		}
	}
	return false
}

// HasScope reports whether the caller was granted required.
func (c *CallerIdentity) HasScope(required string) bool {
	return c != nil && HasScope(c.Scope, required)
}
