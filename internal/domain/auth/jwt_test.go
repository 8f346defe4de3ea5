package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "bakery/internal/core/context"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("secret"))

	token, expires, err := svc.GenerateAccessToken(appctx.UserContext{UserID: "u-1", Email: "baker@example.com", Roles: []string{"admin"}})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expires, time.Minute)

	user, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.UserID)
	assert.Equal(t, []string{"admin"}, user.Roles)
}

func TestJWTService_Rejects(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("secret"))
	token, _, err := svc.GenerateAccessToken(appctx.UserContext{UserID: "u-1"})
	require.NoError(t, err)

	other := NewJWTService(DefaultJWTConfig("another-secret"))
	_, err = other.ValidateToken(token)
	assert.Error(t, err, "wrong secret")

	foreign := DefaultJWTConfig("secret")
	foreign.Issuer = "someone-else"
	_, err = NewJWTService(foreign).ValidateToken(token)
	assert.Error(t, err, "wrong issuer")

	expired := DefaultJWTConfig("secret")
	expired.AccessTokenTTL = -time.Minute
	old, _, err := NewJWTService(expired).GenerateAccessToken(appctx.UserContext{UserID: "u-1"})
	require.NoError(t, err)
	_, err = svc.ValidateToken(old)
	assert.Error(t, err, "expired")

	_, err = svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}
