package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/id"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc, err := NewJWTService(DefaultJWTConfig("test-secret"))
	require.NoError(t, err)

	tenantID := id.New()
	token, expiresAt, err := svc.GenerateAccessToken("alice", tenantID, []string{"operator"})
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	ident, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", ident.UserID)
	assert.Equal(t, tenantID, ident.TenantID)
	assert.True(t, ident.HasRole("operator"))
	assert.False(t, ident.HasRole("admin"))
}

func TestJWTService_RejectsForeignSecret(t *testing.T) {
	issuer, err := NewJWTService(DefaultJWTConfig("secret-a"))
	require.NoError(t, err)
	verifier, err := NewJWTService(DefaultJWTConfig("secret-b"))
	require.NoError(t, err)

	token, _, err := issuer.GenerateAccessToken("alice", id.New(), nil)
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTService_RejectsExpired(t *testing.T) {
	cfg := DefaultJWTConfig("test-secret")
	svc, err := NewJWTService(cfg)
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(past.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(past),
		},
		UserID:   "alice",
		TenantID: id.New().String(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTService_RejectsBadTenantClaim(t *testing.T) {
	cfg := DefaultJWTConfig("test-secret")
	svc, err := NewJWTService(cfg)
	require.NoError(t, err)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID:   "alice",
		TenantID: "acme",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestNewJWTService_RequiresSecret(t *testing.T) {
	_, err := NewJWTService(JWTConfig{})
	assert.Error(t, err)
}
