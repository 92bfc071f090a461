package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus-gate-backend/internal/clock"
	"campus-gate-backend/internal/model"
)

func TestAuthority_IssueAndVerify(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	a := NewAuthority("s3cret", "gate", clk)

	token, err := a.Issue(Identity{ID: "g-7", Role: RoleGuard, Name: "Meena", Shift: model.ShiftNight}, time.Hour)
	require.NoError(t, err)

	id, err := a.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{ID: "g-7", Role: RoleGuard, Name: "Meena", Shift: model.ShiftNight}, id)
	assert.True(t, id.CanOperateGate())
	assert.False(t, id.IsAdmin())

	clk.Advance(2 * time.Hour)
	_, err = a.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestAuthority_Rejects(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	a := NewAuthority("s3cret", "gate", clk)

	otherSecret, err := NewAuthority("different", "gate", clk).Issue(Identity{ID: "u-1", Role: RoleUser}, time.Hour)
	require.NoError(t, err)
	otherIssuer, err := NewAuthority("s3cret", "elsewhere", clk).Issue(Identity{ID: "u-1", Role: RoleUser}, time.Hour)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID: "u-1",
		Role:   RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(clk.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	badRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: "u-1",
		Role:   "superuser",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "gate",
			ExpiresAt: jwt.NewNumericDate(clk.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	testCases := map[string]string{
		"empty":        "",
		"garbage":      "not-a-token",
		"wrong secret": otherSecret,
		"wrong issuer": otherIssuer,
		"alg none":     unsigned,
		"unknown role": badRole,
	}
	for name, token := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := a.Verify(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestIssue_RequiresRole(t *testing.T) {
	a := NewAuthority("s3cret", "", nil)
	_, err := a.Issue(Identity{ID: "u-1"}, time.Hour)
	assert.Error(t, err)
}

func TestContextIdentity(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{ID: "a-1", Role: RoleAdmin})
	id, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.True(t, id.IsAdmin())
}
