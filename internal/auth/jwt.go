package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL is the lifetime of issued access tokens.
const DefaultTokenTTL = 30 * time.Minute

// JWTProvider issues and validates HS256 access tokens whose subject is the
// principal id.
type JWTProvider struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

var _ IdentityProvider = (*JWTProvider)(nil)

// JWTOption configures a JWTProvider.
type JWTOption func(*JWTProvider)

// WithTokenClock replaces time.Now for issuing and validating tokens.
func WithTokenClock(now func() time.Time) JWTOption {
	return func(p *JWTProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// NewJWTProvider creates a provider signing with secret. A non-positive ttl
// selects DefaultTokenTTL.
func NewJWTProvider(secret string, ttl time.Duration, opts ...JWTOption) (*JWTProvider, error) {
	if secret == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	p := &JWTProvider{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// TTL returns the lifetime of issued tokens.
func (p *JWTProvider) TTL() time.Duration {
	return p.ttl
}

// Issue signs a token for subject and returns it with its expiry.
func (p *JWTProvider) Issue(subject string) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, errors.New("auth: subject is required")
	}

	now := p.now()
	expires := now.Add(p.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Authenticate validates token and returns its subject. Every failure
// wraps ErrInvalidToken.
func (p *JWTProvider) Authenticate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}
