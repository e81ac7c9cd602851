// Package api wraps the lead-management REST backend. It attaches bearer
// tokens, normalizes every failure into *APIError, and transparently
// refreshes an expired access token: concurrent 401s share a single
// refresh call and each original request is retried at most once.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"

	"github.com/corvandale/leadctl/internal/model"
)

const defaultTimeout = 10 * time.Second

// SessionStore is the slice of the session store the client needs.
type SessionStore interface {
	Load(ctx context.Context) (*model.Session, error)
	SetAccessToken(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	sessions   SessionStore
	refresh    singleflight.Group
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout overrides the default 10s request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// New creates a client for the API at baseURL (no trailing slash).
func New(baseURL string, sessions SessionStore, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		sessions:   sessions,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the backend's wrapped response shape. Some endpoints return
// bare payloads instead; decode tolerates both.
type envelope struct {
	Success *bool               `json:"success"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Errors  map[string][]string `json:"errors"`
}

// requestOptions control the 401 handling of a single call.
type requestOptions struct {
	// skipRefresh disables refresh-and-retry. Set for the auth endpoints
	// themselves so a failing refresh or login cannot recurse.
	skipRefresh bool
}

// do issues one API request and decodes the response into out (which may
// be nil). On a 401 it refreshes the access token once and retries the
// original request exactly once; a second 401 is surfaced as an error.
func (c *Client) do(ctx context.Context, method, path string, body any, out any, opts requestOptions) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	resp, err := c.send(ctx, method, path, payload)
	if err != nil {
		return normalizeTransportError(err)
	}

	if resp.StatusCode == http.StatusUnauthorized && !opts.skipRefresh {
		resp.Body.Close()

		if err := c.refreshAccessToken(ctx); err != nil {
			return err
		}

		// Retried at most once; a second 401 falls through to the
		// error path below.
		resp, err = c.send(ctx, method, path, payload)
		if err != nil {
			return normalizeTransportError(err)
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return normalizeTransportError(err)
	}

	if resp.StatusCode >= 400 {
		return errorFromBody(resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}
	return decodePayload(raw, out)
}

// send builds and issues a single HTTP request with the standard headers
// and the stored bearer token, if any.
func (c *Client) send(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	if sess, err := c.sessions.Load(ctx); err == nil && sess != nil {
		if exp, ok := TokenExpiry(sess.AccessToken); ok && exp.Before(time.Now()) {
			slog.Debug("stored access token is expired", "expired_at", exp)
		}
		req.Header.Set("Authorization", "Bearer "+sess.AccessToken)
	}

	return c.httpClient.Do(req)
}

// refreshAccessToken exchanges the stored refresh token for a new access
// token and persists it. Concurrent callers share one exchange. On
// failure the session is cleared and ErrSessionExpired returned.
func (c *Client) refreshAccessToken(ctx context.Context) error {
	_, err, _ := c.refresh.Do("refresh", func() (any, error) {
		sess, err := c.sessions.Load(ctx)
		if err != nil {
			return nil, err
		}
		if sess == nil {
			return nil, fmt.Errorf("no refresh token stored")
		}

		token, err := c.RefreshToken(ctx, sess.RefreshToken)
		if err != nil {
			return nil, err
		}
		if err := c.sessions.SetAccessToken(ctx, token); err != nil {
			return nil, err
		}
		return token, nil
	})
	if err != nil {
		slog.Warn("token refresh failed, clearing session", "error", err)
		if clearErr := c.sessions.Clear(ctx); clearErr != nil {
			slog.Error("clearing session after failed refresh", "error", clearErr)
		}
		return fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}
	return nil
}

// getWithRetry wraps do for idempotent GETs: transport-level failures are
// retried with capped exponential backoff, HTTP errors are not.
func (c *Client) getWithRetry(ctx context.Context, path string, out any) error {
	backoff := retry.WithCappedDuration(2*time.Second,
		retry.WithMaxRetries(2, retry.NewExponential(200*time.Millisecond)))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.do(ctx, http.MethodGet, path, nil, out, requestOptions{})
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Transport() {
			return retry.RetryableError(err)
		}
		return err
	})
}

// errorFromBody builds an APIError from an HTTP error response,
// preferring the backend's own message when the body parses.
func errorFromBody(status int, raw []byte) *APIError {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Message != "" {
		return &APIError{StatusCode: status, Message: env.Message, Errors: env.Errors}
	}
	return &APIError{
		StatusCode: status,
		Message:    fmt.Sprintf("Request failed with status %d", status),
	}
}

// decodePayload unmarshals a response body into out, accepting both the
// wrapped {success, message, data} envelope and a bare payload.
func decodePayload(raw []byte, out any) error {
	if len(raw) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
