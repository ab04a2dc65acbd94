// Package auth authenticates the subsystems calling the governance API.
// This is transport-level identity for the caller process, not the actor
// inside a DecisionRequest — the engine trusts the actor identity as handed.
package auth

import (
	"context"
	"errors"
	"strings"
)

// CallerContext holds the authenticated calling subsystem's identity.
type CallerContext struct {
	CallerID  string
	Subsystem string
}

// ErrUnauthenticated is returned when no valid credentials are found.
var ErrUnauthenticated = errors.New("unauthenticated")

// Authenticator validates a presented API key. Unlike a request-screening
// guard, a governance gate never degrades to fail-open: an unverifiable
// caller is an unauthenticated caller.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*CallerContext, error)
}

// keyPrefix is the fixed prefix of gatehouse API keys.
const keyPrefix = "ghk_"

// ParseBearerToken extracts a ghk_ API key from an Authorization header value.
func ParseBearerToken(header string) (string, error) {
	token := strings.TrimPrefix(header, "Bearer ")
	token = strings.TrimPrefix(token, "bearer ")
	if !strings.HasPrefix(token, keyPrefix) {
		return "", ErrUnauthenticated
	}
	return token, nil
}
