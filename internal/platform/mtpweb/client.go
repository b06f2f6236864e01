// Package mtpweb is the client for the direct-post photo-mapping platform:
// one sequence post plus an optional cross-reference to the session-based
// platform's record.
package mtpweb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/geoseq/sequences-backend-go/internal/models"
)

// Client talks to the MTP web API with a user access token per request.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the given API root.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// PostSequence publishes the sequence metadata and returns the remote
// unique id.
func (c *Client) PostSequence(ctx context.Context, meta *models.SequenceMetadata, token string) (string, error) {
	body, err := json.Marshal(meta)
	if err != nil {
		return "", &models.PostError{Reason: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/sequences", bytes.NewReader(body))
	if err != nil {
		return "", &models.PostError{Reason: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &models.PostError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &models.PostError{Reason: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	var posted struct {
		UniqueID string `json:"unique_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&posted); err != nil {
		return "", &models.PostError{Reason: err.Error()}
	}
	if posted.UniqueID == "" {
		return "", &models.PostError{Reason: "response carried no unique_id"}
	}
	return posted.UniqueID, nil
}

// LinkSequences cross-references the posted sequence with the session-based
// platform's record. The post is never unwound when linking fails; the
// caller records the failure and moves on.
func (c *Client) LinkSequences(ctx context.Context, uniqueID, token, mapillaryKey, mapillaryToken string) error {
	body, err := json.Marshal(map[string]string{
		"mapillary_sequence_key": mapillaryKey,
		"mapillary_token":        mapillaryToken,
	})
	if err != nil {
		return &models.LinkError{Reason: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		fmt.Sprintf("%s/api/v1/sequences/%s/link", c.baseURL, uniqueID), bytes.NewReader(body))
	if err != nil {
		return &models.LinkError{Reason: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return &models.LinkError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &models.LinkError{Reason: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}
	return nil
}
