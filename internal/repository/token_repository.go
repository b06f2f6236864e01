package repository

import (
	"database/sql"
	"fmt"
)

// TokenRepository persists integration access tokens so a restart does not
// force a fresh login.
type TokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Get returns the stored token for an integration, or "" when none is set.
func (r *TokenRepository) Get(integration string) (string, error) {
	var token string
	err := r.db.QueryRow(
		"SELECT token FROM integration_tokens WHERE integration = ?", integration,
	).Scan(&token)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get token: %w", err)
	}
	return token, nil
}

// GetAll returns every stored token keyed by integration name.
func (r *TokenRepository) GetAll() (map[string]string, error) {
	rows, err := r.db.Query("SELECT integration, token FROM integration_tokens")
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	defer rows.Close()

	tokens := make(map[string]string)
	for rows.Next() {
		var integration, token string
		if err := rows.Scan(&integration, &token); err != nil {
			return nil, fmt.Errorf("failed to scan token row: %w", err)
		}
		tokens[integration] = token
	}
	return tokens, rows.Err()
}

// Set stores or replaces the token for an integration.
func (r *TokenRepository) Set(integration, token string) error {
	_, err := r.db.Exec(`
		INSERT INTO integration_tokens (integration, token, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(integration) DO UPDATE SET token = excluded.token, updated_at = CURRENT_TIMESTAMP`,
		integration, token)
	if err != nil {
		return fmt.Errorf("failed to set token: %w", err)
	}
	return nil
}

// Clear removes the token for an integration (logout).
func (r *TokenRepository) Clear(integration string) error {
	_, err := r.db.Exec("DELETE FROM integration_tokens WHERE integration = ?", integration)
	if err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}
