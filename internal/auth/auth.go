// Package auth establishes the identity the tracker reads and writes under.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "mahjong"

var (
	ErrMissingSecret = errors.New("auth secret not configured")
	ErrInvalidToken  = errors.New("invalid auth token")
)

// Session is an established identity.
type Session struct {
	UserID    string    `json:"user_id"`
	Anonymous bool      `json:"anonymous"`
	IssuedAt  time.Time `json:"issued_at"`
}

type Claims struct {
	jwt.RegisteredClaims
}

// Provider signs in with a custom token when one is configured and falls
// back to an anonymous session when that is allowed.
type Provider struct {
	Token          string
	Secret         []byte
	AllowAnonymous bool
	TokenTTL       time.Duration

	now func() time.Time
}

func NewProvider(token, secret string, allowAnonymous bool) *Provider {
	return &Provider{
		Token:          strings.TrimSpace(token),
		Secret:         []byte(secret),
		AllowAnonymous: allowAnonymous,
		TokenTTL:       30 * 24 * time.Hour,
		now:            time.Now,
	}
}

// EstablishSession returns the session to subscribe under. A nil session
// with a nil error means no identity is available and nothing should be
// subscribed.
func (p *Provider) EstablishSession(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Token != "" {
		claims, err := p.Verify(p.Token)
		if err != nil {
			return nil, err
		}
		return &Session{UserID: claims.Subject, IssuedAt: p.now().UTC()}, nil
	}
	if p.AllowAnonymous {
		return &Session{UserID: "anon-" + uuid.NewString(), Anonymous: true, IssuedAt: p.now().UTC()}, nil
	}
	return nil, nil
}

// Sign issues a custom token for subject.
func (p *Provider) Sign(subject string) (string, error) {
	if len(p.Secret) == 0 {
		return "", ErrMissingSecret
	}
	now := p.now().UTC()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(p.TokenTTL)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.Secret)
}

// Verify checks an HS256 custom token and returns its claims.
func (p *Provider) Verify(token string) (Claims, error) {
	if len(p.Secret) == 0 {
		return Claims{}, ErrMissingSecret
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.Secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(p.now))
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	c, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || strings.TrimSpace(c.Subject) == "" {
		return Claims{}, ErrInvalidToken
	}
	return *c, nil
}
