package twitch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/parsascontentcorner/streambot/internal/ratelimit"
)

// DefaultAPIBaseURL is the Helix API root.
const DefaultAPIBaseURL = "https://api.twitch.tv/helix"

// rateBucket is the Helix bucket: limits apply per client id.
const rateBucket = "helix"

// APIError is a non-2xx answer from the Helix API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twitch api error (status %d): %s", e.Status, e.Message)
}

// Client calls the Helix API with an app access token.
type Client struct {
	baseURL    string
	clientID   string
	creds      *Credentials
	httpClient *http.Client
	limiter    *ratelimit.RateLimiter
	logger     *zap.Logger
}

// NewClient creates a Helix client.
func NewClient(baseURL, clientID string, creds *Credentials, limiter *ratelimit.RateLimiter, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if limiter == nil {
		limiter = ratelimit.NewRateLimiter(logger)
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		clientID: clientID,
		creds:    creds,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: limiter,
		logger:  logger,
	}
}

// do sends a request to path and decodes a JSON answer into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	token, err := c.creds.Token(ctx)
	if err != nil {
		return err
	}

	if err := c.limiter.Wait(ctx, rateBucket); err != nil {
		return err
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Client-Id", c.clientID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", path, err)
	}
	defer resp.Body.Close()

	c.limiter.UpdateFromHeaders(rateBucket, resp.Header)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return c.limiter.HandleRateLimitResponse(rateBucket, resp.Header)
	case resp.StatusCode == http.StatusUnauthorized:
		// The token was revoked or expired early; the next call renews it.
		c.creds.Invalidate()
		return &APIError{Status: resp.StatusCode, Message: readMessage(resp.Body)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &APIError{Status: resp.StatusCode, Message: readMessage(resp.Body)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func readMessage(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 4096))
	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil && body.Message != "" {
		return body.Message
	}
	return strings.TrimSpace(string(data))
}

// User is a Helix user.
type User struct {
	ID          string `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
}

// ErrUserNotFound is returned when a login does not exist.
var ErrUserNotFound = errors.New("twitch user not found")

// UserByLogin looks a user up by login name.
func (c *Client) UserByLogin(ctx context.Context, login string) (*User, error) {
	var resp struct {
		Data []User `json:"data"`
	}
	query := url.Values{"login": {strings.ToLower(login)}}
	if err := c.do(ctx, http.MethodGet, "/users", query, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%s: %w", login, ErrUserNotFound)
	}
	return &resp.Data[0], nil
}
