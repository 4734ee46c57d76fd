package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTMaker_GenerateAndParseToken(t *testing.T) {
	tokenTTL := 15 * time.Minute
	maker := NewJWTMaker("test_secret_key_1234567890", tokenTTL)

	tests := []struct {
		name   string
		userID string
		email  string
	}{
		{name: "regular user", userID: "u-1", email: "a@x.com"},
		{name: "plus address", userID: "u-2", email: "user+tag@domain.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := maker.GenerateToken(tt.userID, tt.email)
			require.NoError(t, err)
			assert.NotEmpty(t, token)

			claims, err := maker.ParseToken(token)
			require.NoError(t, err)

			assert.Equal(t, tt.userID, claims.Subject)
			assert.Equal(t, tt.email, claims.Email)
			assert.WithinDuration(t, time.Now(), claims.IssuedAt.Time, time.Second)
			assert.WithinDuration(t, time.Now().Add(tokenTTL), claims.ExpiresAt.Time, time.Second)
		})
	}
}

func TestJWTMaker_ParseToken_InvalidTokens(t *testing.T) {
	secretKey := "test_secret_key_1234567890"
	maker := NewJWTMaker(secretKey, 15*time.Minute)

	validToken, err := maker.GenerateToken("u-1", "a@x.com")
	require.NoError(t, err)

	expired, err := NewJWTMaker(secretKey, -time.Hour).GenerateToken("u-1", "a@x.com")
	require.NoError(t, err)

	wrongSecret, err := NewJWTMaker("wrong_secret_key", 15*time.Minute).GenerateToken("u-1", "a@x.com")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "malformed token", token: "invalid.token.here"},
		{name: "expired token", token: expired},
		{name: "wrong secret key", token: wrongSecret},
		{name: "tampered token", token: validToken + "tampered"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := maker.ParseToken(tt.token)
			assert.Error(t, err)
			assert.Nil(t, claims)
		})
	}
}

func TestInspector_Expired(t *testing.T) {
	live, err := NewJWTMaker("k", time.Hour).GenerateToken("u-1", "a@x.com")
	require.NoError(t, err)
	dead, err := NewJWTMaker("k", -time.Hour).GenerateToken("u-1", "a@x.com")
	require.NoError(t, err)

	inspector := NewInspector()

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{name: "live jwt", token: live, want: false},
		{name: "expired jwt", token: dead, want: true},
		{name: "opaque token", token: "opaque-session-token", want: false},
		{name: "empty token", token: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inspector.Expired(tt.token))
		})
	}
}

func TestInspector_ExpiresAt(t *testing.T) {
	token, err := NewJWTMaker("k", time.Hour).GenerateToken("u-1", "a@x.com")
	require.NoError(t, err)

	exp, err := NewInspector().ExpiresAt(token)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Second)

	_, err = NewInspector().ExpiresAt("opaque")
	assert.Error(t, err)
}
