package service

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoseq/sequences-backend-go/internal/database"
	"github.com/geoseq/sequences-backend-go/internal/repository"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "sequences-service-test")
	if err != nil {
		panic(err)
	}
	if err := database.Init(database.Config{Path: filepath.Join(dir, "tokens.db")}); err != nil {
		panic(err)
	}

	code := m.Run()

	database.Close()
	os.RemoveAll(dir)
	os.Exit(code)
}

func newTokenService(t *testing.T) *TokenService {
	t.Helper()
	s := NewTokenService(repository.NewTokenRepository(database.GetDB()))
	t.Cleanup(func() {
		s.Clear(IntegrationMapillary)
		s.Clear(IntegrationMTP)
	})
	return s
}

func signedJWT(t *testing.T, expiry time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user",
		"exp": expiry.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestTokenRoundTrip(t *testing.T) {
	s := newTokenService(t)

	require.NoError(t, s.Set(IntegrationMTP, "mtp-token"))

	token, err := s.Get(IntegrationMTP)
	require.NoError(t, err)
	assert.Equal(t, "mtp-token", token)

	// Replacing is an upsert, not an error.
	require.NoError(t, s.Set(IntegrationMTP, "newer-token"))
	token, err = s.Get(IntegrationMTP)
	require.NoError(t, err)
	assert.Equal(t, "newer-token", token)

	require.NoError(t, s.Clear(IntegrationMTP))
	token, err = s.Get(IntegrationMTP)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestTokenGetAll(t *testing.T) {
	s := newTokenService(t)

	require.NoError(t, s.Set(IntegrationMTP, "mtp-token"))
	require.NoError(t, s.Set(IntegrationMapillary, signedJWT(t, time.Now().Add(time.Hour))))

	all, err := s.GetAll()
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, "mtp-token", all[IntegrationMTP])
}

func TestTokenRejectsUnknownIntegration(t *testing.T) {
	s := newTokenService(t)

	assert.Error(t, s.Set("flickr", "token"))
	assert.Error(t, s.Clear("flickr"))
	_, err := s.Get("flickr")
	assert.Error(t, err)
}

func TestTokenRejectsEmptyToken(t *testing.T) {
	s := newTokenService(t)
	assert.Error(t, s.Set(IntegrationMTP, ""))
}

func TestSetRejectsExpiredMapillaryJWT(t *testing.T) {
	s := newTokenService(t)

	err := s.Set(IntegrationMapillary, signedJWT(t, time.Now().Add(-time.Hour)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")

	// A live JWT is accepted.
	assert.NoError(t, s.Set(IntegrationMapillary, signedJWT(t, time.Now().Add(time.Hour))))
}

func TestTokenExpiry(t *testing.T) {
	deadline := time.Now().Add(30 * time.Minute).Truncate(time.Second)

	expiry, ok := TokenExpiry(signedJWT(t, deadline))
	require.True(t, ok)
	assert.True(t, expiry.Equal(deadline))

	// Opaque tokens carry no readable expiry.
	_, ok = TokenExpiry("not-a-jwt")
	assert.False(t, ok)
}
