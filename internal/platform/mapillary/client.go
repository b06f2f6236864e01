// Package mapillary is the client for the session-based photo-mapping
// platform: open an upload session, push every image through it one at a
// time, close the session, and query the remote state of previously
// uploaded sequences.
package mapillary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/geoseq/sequences-backend-go/internal/models"
)

// DefaultRetries is how many times a single image upload is retried after
// its first failure, matching the transport retry policy the platform
// recommends.
const DefaultRetries = 3

// Session is the server-issued upload session handle. Every image upload
// posts the session fields plus the prefixed object key.
type Session struct {
	Key       string            `json:"key"`
	URL       string            `json:"url"`
	Fields    map[string]string `json:"fields"`
	KeyPrefix string            `json:"key_prefix"`
	Error     string            `json:"error,omitempty"`
}

// uploadStatus is one entry of the session listing endpoint.
type uploadStatus struct {
	Key   string `json:"key"`
	Error *struct {
		Reason string `json:"reason"`
	} `json:"error,omitempty"`
}

// Client talks to the platform API. Safe for concurrent use; one upload
// session belongs to one sequence.
type Client struct {
	baseURL  string
	clientID string
	http     *http.Client
	retries  int
}

// NewClient creates a client. timeout bounds every request including the
// image uploads themselves.
func NewClient(baseURL, clientID string, timeout time.Duration) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		clientID: clientID,
		http:     &http.Client{Timeout: timeout},
		retries:  DefaultRetries,
	}
}

// OpenSession requests a new image-sequence upload session. Any transport
// failure or error payload comes back as a SessionError; the caller must
// not attempt a partial upload after that.
func (c *Client) OpenSession(ctx context.Context, token string) (*Session, error) {
	body, _ := json.Marshal(map[string]string{"type": "images/sequence"})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/v3/me/uploads?client_id=%s", c.baseURL, c.clientID), bytes.NewReader(body))
	if err != nil {
		return nil, &models.SessionError{Reason: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &models.SessionError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &models.SessionError{Reason: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, &models.SessionError{Reason: err.Error()}
	}
	if session.Error != "" {
		return nil, &models.SessionError{Reason: session.Error}
	}
	return &session, nil
}

// UploadImage posts one image into the session as a multipart form carrying
// the session fields, the prefixed key and the file itself. Retried up to
// c.retries times; the last error wins.
func (c *Client) UploadImage(ctx context.Context, session *Session, filePath, filename string) error {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lastErr = c.uploadOnce(ctx, session, filePath, filename); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (c *Client) uploadOnce(ctx context.Context, session *Session, filePath, filename string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	for key, value := range session.Fields {
		if err := form.WriteField(key, value); err != nil {
			return err
		}
	}
	if err := form.WriteField("key", session.KeyPrefix+filename); err != nil {
		return err
	}
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	if err := form.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, session.URL, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// UploadAll uploads every point's image out of imagesDir (the finished
// output variant directory) strictly in point order, one at a time. The
// object key is "<normalized sequence name>_<image>". The first image whose
// retries are exhausted aborts the remaining uploads; there is no
// partial-batch success.
func (c *Client) UploadAll(ctx context.Context, points []models.GeoPoint, imagesDir, seqName string, session *Session, progress func(string)) error {
	prefix := strings.Join(strings.Fields(strings.ToLower(seqName)), "_")

	for i := range points {
		image := points[i].Image
		if progress != nil {
			progress(fmt.Sprintf("%s is uploading to Mapillary", image))
		}

		filename := prefix + "_" + image
		if err := c.UploadImage(ctx, session, filepath.Join(imagesDir, image), filename); err != nil {
			return &models.UploadError{Image: image, Err: err}
		}
	}
	return nil
}

// PublishSession closes the upload session so the platform starts
// processing it.
func (c *Client) PublishSession(ctx context.Context, token, sessionKey string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		fmt.Sprintf("%s/v3/me/uploads/%s/closed?client_id=%s", c.baseURL, sessionKey, c.clientID), nil)
	if err != nil {
		return &models.SessionError{Reason: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return &models.SessionError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &models.SessionError{Reason: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}
	return nil
}

// GetUser fetches the authenticated user's key.
func (c *Client) GetUser(ctx context.Context, token string) (string, error) {
	var user struct {
		Key string `json:"key"`
	}
	if err := c.getJSON(ctx, token, fmt.Sprintf("%s/v3/me?client_id=%s", c.baseURL, c.clientID), &user); err != nil {
		return "", err
	}
	return user.Key, nil
}

// SessionErrorReason looks up one session in the user's upload listing and
// returns its error reason, or "" when the session shows no error.
func (c *Client) SessionErrorReason(ctx context.Context, token, sessionKey string) (string, error) {
	var sessions []uploadStatus
	if err := c.getJSON(ctx, token, fmt.Sprintf("%s/v3/me/uploads?client_id=%s", c.baseURL, c.clientID), &sessions); err != nil {
		return "", err
	}
	for _, s := range sessions {
		if s.Key == sessionKey && s.Error != nil {
			return s.Error.Reason, nil
		}
	}
	return "", nil
}

// FindSequence queries the platform for a processed sequence belonging to
// the user inside the capture window. Returns the remote sequence key, or
// "" when the platform has not produced one yet.
func (c *Client) FindSequence(ctx context.Context, token string, earliest, latest time.Time) (string, error) {
	userKey, err := c.GetUser(ctx, token)
	if err != nil {
		return "", err
	}

	query := url.Values{}
	query.Set("userkeys", userKey)
	query.Set("client_id", c.clientID)
	query.Set("start_time", earliest.UTC().Format(time.RFC3339))
	query.Set("end_time", latest.UTC().Format(time.RFC3339))

	var listing struct {
		Features []struct {
			Properties struct {
				Key string `json:"key"`
			} `json:"properties"`
		} `json:"features"`
	}
	if err := c.getJSON(ctx, token, c.baseURL+"/v3/sequences?"+query.Encode(), &listing); err != nil {
		return "", err
	}
	if len(listing.Features) == 0 {
		return "", nil
	}
	return listing.Features[0].Properties.Key, nil
}

func (c *Client) getJSON(ctx context.Context, token, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
