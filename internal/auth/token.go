package auth

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/richxcame/driver-agent/pkg/common"
)

// TokenSource holds the platform bearer token and answers expiry
// questions, so the agent can surface "re-login required" before the
// server starts rejecting calls.
type TokenSource struct {
	mu    sync.RWMutex
	token string
}

// NewTokenSource creates a token source with the initial token, which may
// be empty until login completes.
func NewTokenSource(token string) *TokenSource {
	return &TokenSource{token: token}
}

// Set replaces the stored token
func (t *TokenSource) Set(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = token
}

// Token returns the raw stored token
func (t *TokenSource) Token() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.token
}

// Header returns the Authorization header value, empty when no token is set
func (t *TokenSource) Header() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.token == "" {
		return ""
	}
	return "Bearer " + t.token
}

// ExpiresWithin reports whether the token expires inside the given
// window. The token is parsed without signature verification; the server
// remains the authority, this is only an early warning.
func (t *TokenSource) ExpiresWithin(window time.Duration) (bool, error) {
	t.mu.RLock()
	token := t.token
	t.mu.RUnlock()

	if token == "" {
		return true, common.ErrTokenExpired
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false, fmt.Errorf("parse bearer token: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		// No exp claim; treat as non-expiring
		return false, nil
	}

	return time.Until(exp.Time) < window, nil
}
