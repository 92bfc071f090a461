// Package auth verifies bearer credentials and carries the caller's identity
// through request contexts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"campus-gate-backend/internal/clock"
	"campus-gate-backend/internal/model"
)

// Role is an actor's authority level.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleGuard Role = "guard"
	RoleUser  Role = "user"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleGuard, RoleUser:
		return true
	}
	return false
}

var (
	ErrTokenExpired = errors.New("token has expired")
	ErrInvalidToken = errors.New("invalid token")
)

// Identity is an authenticated actor.
type Identity struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
	Name string `json:"name,omitempty"`
	// Shift is the guard's assigned shift, if the token carries one.
	Shift model.Shift `json:"shift,omitempty"`
}

// IsAdmin reports whether the identity has the admin role.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// CanOperateGate reports whether the identity may log vehicles in and out.
func (i Identity) CanOperateGate() bool {
	return i.Role == RoleGuard || i.Role == RoleAdmin
}

// Claims represents the JWT claims.
type Claims struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
	Name   string `json:"name,omitempty"`
	Shift  string `json:"shift,omitempty"`
	jwt.RegisteredClaims
}

// Verifier turns a raw credential into an Identity.
type Verifier interface {
	Verify(token string) (Identity, error)
}

// Authority signs and verifies HS256 tokens with a shared secret.
type Authority struct {
	secret []byte
	issuer string
	clock  clock.Clock
}

// NewAuthority creates an Authority. An empty issuer disables the issuer check.
func NewAuthority(secret, issuer string, clk clock.Clock) *Authority {
	if clk == nil {
		clk = clock.Real()
	}
	return &Authority{secret: []byte(secret), issuer: issuer, clock: clk}
}

// Issue signs a token for id that expires after ttl.
func (a *Authority) Issue(id Identity, ttl time.Duration) (string, error) {
	if id.ID == "" || !id.Role.Valid() {
		return "", fmt.Errorf("cannot issue token for identity %q with role %q", id.ID, id.Role)
	}
	now := a.clock.Now()
	claims := Claims{
		UserID: id.ID,
		Role:   id.Role,
		Name:   id.Name,
		Shift:  string(id.Shift),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			Issuer:    a.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Verify validates a token and returns the identity it names.
func (a *Authority) Verify(tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.clock.Now),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrTokenExpired
		}
		return Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" || !claims.Role.Valid() {
		return Identity{}, ErrInvalidToken
	}

	id := Identity{ID: claims.UserID, Role: claims.Role, Name: claims.Name}
	switch model.Shift(claims.Shift) {
	case model.ShiftDay, model.ShiftNight:
		id.Shift = model.Shift(claims.Shift)
	}
	return id, nil
}

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored in ctx, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
