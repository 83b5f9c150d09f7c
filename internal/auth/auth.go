package auth

import (
	"context"
	"errors"
)

var (
	// ErrInvalidCredentials is returned when a username and password pair is rejected.
	ErrInvalidCredentials = errors.New("incorrect username or password")

	// ErrInvalidToken is returned for missing, malformed, expired or forged tokens.
	ErrInvalidToken = errors.New("could not validate credentials")
)

// IdentityProvider resolves a bearer token into an opaque principal id.
type IdentityProvider interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// Directory checks a username and password pair.
type Directory interface {
	Verify(ctx context.Context, username, password string) error
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying principal.
func WithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

// PrincipalFrom returns the principal stored by WithPrincipal.
func PrincipalFrom(ctx context.Context) (string, bool) {
	p, ok := ctx.Value(principalKey{}).(string)
	return p, ok && p != ""
}
