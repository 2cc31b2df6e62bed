// Package session carries the authenticated identity explicitly through every
// data-access call and encodes it as signed bearer tokens.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrInvalidToken     = errors.New("invalid token")
)

// Session identifies the signed-in user. The zero value means signed out.
type Session struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

func (s Session) IsZero() bool { return s.UserID == "" }

// Require fails with ErrNotAuthenticated for a zero session.
func Require(s Session) error {
	if s.IsZero() {
		return ErrNotAuthenticated
	}
	return nil
}

type ctxKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored by WithSession, or the zero session.
func FromContext(ctx context.Context) Session {
	s, _ := ctx.Value(ctxKey{}).(Session)
	return s
}

const (
	purposeSession = "session"
	purposeReset   = "reset"
)

type claims struct {
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Purpose string `json:"purpose"`
	// Fingerprint binds reset tokens to the password they replace.
	Fingerprint string `json:"pwf,omitempty"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 tokens.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret string, ttl time.Duration) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("auth.secret is empty")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("auth.token_ttl must be positive, got %s", ttl)
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (g *Signer) sign(c claims, ttl time.Duration) (string, error) {
	now := g.now()
	c.IssuedAt = jwt.NewNumericDate(now)
	c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(g.secret)
}

func (g *Signer) parse(token, purpose string) (claims, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(g.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Purpose != purpose || c.Subject == "" {
		return claims{}, ErrInvalidToken
	}
	return c, nil
}

// Issue returns a bearer token for s valid for the signer's TTL.
func (g *Signer) Issue(s Session) (string, error) {
	if err := Require(s); err != nil {
		return "", err
	}
	return g.sign(claims{
		Email:            s.Email,
		Name:             s.Name,
		Purpose:          purposeSession,
		RegisteredClaims: jwt.RegisteredClaims{Subject: s.UserID},
	}, g.ttl)
}

// Parse verifies a bearer token and rebuilds the session it carries.
func (g *Signer) Parse(token string) (Session, error) {
	c, err := g.parse(token, purposeSession)
	if err != nil {
		return Session{}, err
	}
	return Session{UserID: c.Subject, Email: c.Email, Name: c.Name}, nil
}

// IssueReset returns a single-purpose password reset token. It stops
// verifying once the password behind fingerprint changes.
func (g *Signer) IssueReset(userID, fingerprint string, ttl time.Duration) (string, error) {
	return g.sign(claims{
		Purpose:          purposeReset,
		Fingerprint:      fingerprint,
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
	}, ttl)
}

// ParseReset returns the user id and password fingerprint of a reset token.
func (g *Signer) ParseReset(token string) (userID, fingerprint string, err error) {
	c, err := g.parse(token, purposeReset)
	if err != nil {
		return "", "", err
	}
	return c.Subject, c.Fingerprint, nil
}
