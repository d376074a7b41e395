// Package generation hands article requests to the external workflow engine
// and waits for the engine to drop the finished artifacts on disk.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultEngineURL      = "http://localhost:5678/webhook"
	DefaultEngineTimeout  = 5 * time.Minute
	DefaultForwardTimeout = 30 * time.Second
	DefaultMaxRetries     = 3
	generatePath          = "/english/generate"
	reachableTimeout      = 5 * time.Second
)

type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("engine http %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("engine http %d", e.StatusCode)
}

type EngineOptions struct {
	BaseURL        string
	Timeout        time.Duration
	ForwardTimeout time.Duration
	MaxRetries     int
	HTTPClient     *http.Client
}

// EngineClient talks to the workflow engine's webhook endpoints.
type EngineClient struct {
	baseURL        string
	httpClient     *http.Client
	timeout        time.Duration
	forwardTimeout time.Duration
	maxRetries     int
	baseDelay      time.Duration
	maxDelay       time.Duration
}

func NewEngineClient(opts EngineOptions) *EngineClient {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultEngineURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultEngineTimeout
	}
	forwardTimeout := opts.ForwardTimeout
	if forwardTimeout <= 0 {
		forwardTimeout = DefaultForwardTimeout
	}
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &EngineClient{
		baseURL:        baseURL,
		httpClient:     httpClient,
		timeout:        timeout,
		forwardTimeout: forwardTimeout,
		maxRetries:     maxRetries,
		baseDelay:      250 * time.Millisecond,
		maxDelay:       5 * time.Second,
	}
}

func (c *EngineClient) BaseURL() string {
	return c.baseURL
}

// Generate asks the engine to write a new article into the folder named
// requestID. The response body is drained and ignored.
func (c *EngineClient) Generate(ctx context.Context, message, requestID string) error {
	payload, err := json.Marshal(map[string]string{
		"message":    message,
		"request_id": requestID,
	})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	_, err = c.post(ctx, generatePath, payload, requestID)
	return err
}

// Forward posts body to an engine webhook and returns the raw response.
// Proxy calls are never retried.
func (c *EngineClient) Forward(ctx context.Context, path string, body []byte) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.forwardTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodPost, path, body, "")
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	out := &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        payload,
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, Body: truncate(string(payload), 512)}
	}
	return out, nil
}

type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Reachable reports whether the generate webhook answers at all.
func (c *EngineClient) Reachable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, reachableTimeout)
	defer cancel()
	req, err := c.newRequest(ctx, http.MethodHead, generatePath, nil, "")
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode < 500
}

func (c *EngineClient) post(ctx context.Context, path string, body []byte, correlation string) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		req, err := c.newRequest(ctx, http.MethodPost, path, body, correlation)
		if err != nil {
			return nil, err
		}
		// Transport failures are not retried; the engine may already be running.
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		payload, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, readErr
		}
		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			return payload, nil
		}
		if retryableStatus(resp.StatusCode) && attempt < c.maxRetries {
			if err := waitWithContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); err != nil {
				return nil, err
			}
			continue
		}
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, Body: truncate(string(payload), 512)}
	}
}

func (c *EngineClient) newRequest(ctx context.Context, method, path string, body []byte, correlation string) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if correlation == "" {
		correlation = uuid.NewString()
	}
	req.Header.Set("X-Correlation-Id", correlation)
	return req, nil
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func (c *EngineClient) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	if retryAfter := parseRetryAfter(retryAfterHeader); retryAfter > 0 {
		return min(retryAfter, c.maxDelay)
	}
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	return min(delay, c.maxDelay)
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if ts, err := http.ParseTime(header); err == nil {
		if delta := time.Until(ts); delta > 0 {
			return delta
		}
	}
	return 0
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// IsHTTPStatus reports whether err carries an engine response with code.
func IsHTTPStatus(err error, code int) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == code
}
