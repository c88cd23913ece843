// Package backend is the HTTP client for the garden's REST backend.
//
// The backend is an external collaborator consumed as given: sensor data,
// notifications and attendance live there. Every request is rate limited by
// a token bucket so user-initiated refreshes cannot pile onto the 1s poll.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/nutricomm/kebun-gizi/internal/config"
)

const (
	defaultTimeout   = 5 * time.Second
	defaultRPS       = 5
	maxErrorBodySize = 200
	maxResponseBody  = 1 << 20
)

// APIError is a non-2xx backend response.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend %s %s returned %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// Client is the shared HTTP client for all backend endpoints.
type Client struct {
	httpClient *http.Client
	endpoints  *config.Endpoints
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a backend client. The base URL is read from endpoints on
// every request so a reconfigured backend takes effect immediately.
func NewClient(endpoints *config.Endpoints, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoints:  endpoints,
		limiter:    rate.NewLimiter(rate.Limit(defaultRPS), defaultRPS),
		logger:     logger,
	}
}

// HTTPClient exposes the underlying client for callers that share its
// timeout settings.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// do performs a rate-limited request and decodes a JSON response into out
// (which may be nil). Non-2xx responses become *APIError.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	u := c.endpoints.BackendURL() + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if len(data) > maxResponseBody {
		return fmt.Errorf("response body from %s exceeds %d bytes", path, maxResponseBody)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: truncate(data, maxErrorBodySize)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
