package mtpweb

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoseq/sequences-backend-go/internal/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c := NewClient("https://mtp.example.com", 5*time.Second)
	httpmock.ActivateNonDefault(c.http)
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func TestPostSequence(t *testing.T) {
	c := newTestClient(t)

	var seen map[string]interface{}
	httpmock.RegisterResponder(http.MethodPost, "https://mtp.example.com/api/v1/sequences",
		func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "Token user-token", req.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(req.Body).Decode(&seen))
			return httpmock.NewStringResponse(201, `{"unique_id": "abc-123"}`), nil
		})

	meta := &models.SequenceMetadata{Name: "street tour", DistanceKm: 1.5}
	id, err := c.PostSequence(context.Background(), meta, "user-token")
	require.NoError(t, err)
	assert.Equal(t, "abc-123", id)
	assert.Equal(t, "street tour", seen["uploader_sequence_name"])
}

func TestPostSequenceMissingUniqueID(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodPost, "https://mtp.example.com/api/v1/sequences",
		httpmock.NewStringResponder(201, `{}`))

	_, err := c.PostSequence(context.Background(), &models.SequenceMetadata{}, "token")
	var postErr *models.PostError
	require.True(t, errors.As(err, &postErr))
	assert.Contains(t, postErr.Reason, "unique_id")
}

func TestPostSequenceErrorStatus(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodPost, "https://mtp.example.com/api/v1/sequences",
		httpmock.NewStringResponder(401, "unauthorized"))

	_, err := c.PostSequence(context.Background(), &models.SequenceMetadata{}, "token")
	var postErr *models.PostError
	require.True(t, errors.As(err, &postErr))
	assert.Contains(t, err.Error(), "MTPSequence")
}

func TestLinkSequences(t *testing.T) {
	c := newTestClient(t)

	var seen map[string]string
	httpmock.RegisterResponder(http.MethodPut, "https://mtp.example.com/api/v1/sequences/abc-123/link",
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, json.NewDecoder(req.Body).Decode(&seen))
			return httpmock.NewStringResponse(200, "{}"), nil
		})

	err := c.LinkSequences(context.Background(), "abc-123", "mtp-token", "seq-key", "map-token")
	require.NoError(t, err)
	assert.Equal(t, "seq-key", seen["mapillary_sequence_key"])
	assert.Equal(t, "map-token", seen["mapillary_token"])
}

func TestLinkSequencesFailure(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodPut, "https://mtp.example.com/api/v1/sequences/abc-123/link",
		httpmock.NewStringResponder(500, "boom"))

	err := c.LinkSequences(context.Background(), "abc-123", "mtp-token", "seq-key", "map-token")
	var linkErr *models.LinkError
	require.True(t, errors.As(err, &linkErr))
}
