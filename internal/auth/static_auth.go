package auth

import (
	"context"
)

// StaticAuthenticator is a development-only authenticator that accepts any
// ghk_ key.
type StaticAuthenticator struct{}

func NewStaticAuthenticator() *StaticAuthenticator {
	return &StaticAuthenticator{}
}

func (a *StaticAuthenticator) Authenticate(_ context.Context, token string) (*CallerContext, error) {
	if len(token) < 8 {
		return nil, ErrUnauthenticated
	}
	return &CallerContext{
		CallerID:  "static-" + token[:8],
		Subsystem: "default",
	}, nil
}
