package service

import (
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/geoseq/sequences-backend-go/internal/repository"
)

// Integration names accepted by the token store.
const (
	IntegrationMapillary = "mapillary"
	IntegrationMTP       = "mtp"
)

// TokenService owns the credential lifecycle: tokens are loaded from the
// repository at startup, replaced on login, cleared on logout, and read-only
// for the duration of any publish run.
type TokenService struct {
	tokenRepo *repository.TokenRepository
}

// NewTokenService creates a new token service
func NewTokenService(tokenRepo *repository.TokenRepository) *TokenService {
	return &TokenService{tokenRepo: tokenRepo}
}

func validIntegration(integration string) bool {
	return integration == IntegrationMapillary || integration == IntegrationMTP
}

// Set stores the access token for an integration. Mapillary tokens are
// JWTs; an already-expired one is rejected up front instead of failing
// later mid-publish.
func (s *TokenService) Set(integration, token string) error {
	if !validIntegration(integration) {
		return fmt.Errorf("unknown integration %q", integration)
	}
	if token == "" {
		return fmt.Errorf("empty token for %q", integration)
	}

	if integration == IntegrationMapillary {
		if expiry, ok := TokenExpiry(token); ok && expiry.Before(time.Now()) {
			return fmt.Errorf("mapillary token expired at %s", expiry.UTC().Format(time.RFC3339))
		}
	}

	return s.tokenRepo.Set(integration, token)
}

// Get returns the stored token for an integration, or "".
func (s *TokenService) Get(integration string) (string, error) {
	if !validIntegration(integration) {
		return "", fmt.Errorf("unknown integration %q", integration)
	}
	return s.tokenRepo.Get(integration)
}

// GetAll returns every stored token keyed by integration.
func (s *TokenService) GetAll() (map[string]string, error) {
	return s.tokenRepo.GetAll()
}

// Clear removes an integration's token (logout).
func (s *TokenService) Clear(integration string) error {
	if !validIntegration(integration) {
		return fmt.Errorf("unknown integration %q", integration)
	}
	return s.tokenRepo.Clear(integration)
}

// TokenExpiry parses a JWT without verifying its signature and returns its
// expiry claim. ok is false when the token is not a JWT or carries no
// expiry; signature verification belongs to the platform, not to us.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	expiry, err := claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return time.Time{}, false
	}
	return expiry.Time, true
}

// warnIfExpired logs when a stored token looks expired; the publish attempt
// still proceeds so the platform's own answer is authoritative.
func warnIfExpired(integration, token string) {
	if token == "" {
		return
	}
	if expiry, ok := TokenExpiry(token); ok && expiry.Before(time.Now()) {
		log.Printf("stored %s token expired at %s", integration, expiry.UTC().Format(time.RFC3339))
	}
}
