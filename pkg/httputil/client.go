package httputil

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/mzurek/divtrack/pkg/logger"
)

// CallRecorder is notified after every successful HTTP attempt so the
// quota ledger can account for provider usage.
type CallRecorder interface {
	Record(ctx context.Context, provider string) error
}

// Client is an HTTP client wrapper with retry logic and logging.
// All provider HTTP requests go through this client.
type Client struct {
	httpClient  *http.Client
	logger      *logger.Logger
	retryConfig RetryConfig
	recorder    CallRecorder
	provider    string

	// sleep is replaceable in tests
	sleep func(time.Duration)
}

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxAttempts int
	DelayBase   int // seconds; attempt n sleeps base^n (doubled on 429)
}

// AttemptTimeout bounds a single HTTP attempt
const AttemptTimeout = 10 * time.Second

// New creates a new HTTP client
func New(log *logger.Logger, retry RetryConfig) *Client {
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 3
	}
	if retry.DelayBase < 1 {
		retry.DelayBase = 2
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: AttemptTimeout,
		},
		logger:      log,
		retryConfig: retry,
		sleep:       time.Sleep,
	}
}

// ForProvider returns a copy of the client that records successful
// attempts against the given provider id.
func (c *Client) ForProvider(provider string, recorder CallRecorder) *Client {
	clone := *c
	clone.provider = provider
	clone.recorder = recorder
	return &clone
}

// Get performs a GET request with retries
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create GET request: %w", err)
	}

	return c.do(req)
}

// GetWithHeaders performs a GET request with custom headers
func (c *Client) GetWithHeaders(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create GET request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return c.do(req)
}

// do executes the request with retry logic and logging
func (c *Client) do(req *http.Request) (*http.Response, error) {
	startTime := time.Now()
	url := req.URL.String()

	c.logger.WithFields(map[string]interface{}{
		"method": req.Method,
		"url":    url,
	}).Debug("HTTP request started")

	resp, err := c.doWithRetry(req)

	duration := time.Since(startTime)

	if err != nil {
		c.logger.WithFields(map[string]interface{}{
			"method":   req.Method,
			"url":      url,
			"duration": duration,
			"error":    err.Error(),
		}).Error("HTTP request failed")
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"method":      req.Method,
		"url":         url,
		"status_code": resp.StatusCode,
		"duration":    duration,
	}).Debug("HTTP request completed")

	return resp, nil
}

// doWithRetry executes the request with exponential backoff.
// 429 sleeps base^attempt doubled; 5xx and transport errors sleep
// base^attempt; other 4xx fail immediately.
func (c *Client) doWithRetry(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error

	for attempt := 1; attempt <= c.retryConfig.MaxAttempts; attempt++ {
		resp, err = c.httpClient.Do(req.Clone(req.Context()))

		if err == nil {
			c.recordAttempt(req.Context())

			switch {
			case resp.StatusCode < 300:
				return resp, nil
			case resp.StatusCode == http.StatusTooManyRequests:
				// fall through to retry with the doubled delay
			case resp.StatusCode >= 400 && resp.StatusCode < 500:
				drain(resp)
				return nil, fmt.Errorf("request rejected with status %d", resp.StatusCode)
			}
			// 429 or 5xx: retry
			drain(resp)
		}

		if attempt == c.retryConfig.MaxAttempts {
			break
		}

		delay := c.backoffDelay(attempt, resp)
		c.logger.WithFields(map[string]interface{}{
			"attempt": attempt,
			"delay":   delay,
			"url":     req.URL.String(),
		}).Warn("Retrying HTTP request")

		c.sleep(delay)
	}

	if err != nil {
		return nil, fmt.Errorf("request failed after %d attempts: %w", c.retryConfig.MaxAttempts, err)
	}
	return nil, fmt.Errorf("request failed after %d attempts with status %d", c.retryConfig.MaxAttempts, resp.StatusCode)
}

// backoffDelay computes the sleep before the next attempt
func (c *Client) backoffDelay(attempt int, resp *http.Response) time.Duration {
	base := math.Pow(float64(c.retryConfig.DelayBase), float64(attempt))
	if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		base *= 2
	}
	return time.Duration(base * float64(time.Second))
}

// recordAttempt notifies the quota ledger about a completed attempt
func (c *Client) recordAttempt(ctx context.Context) {
	if c.recorder == nil || c.provider == "" {
		return
	}
	if err := c.recorder.Record(ctx, c.provider); err != nil {
		c.logger.WithError(err).WithField("provider", c.provider).Warn("Failed to record API call")
	}
}

// drain discards and closes a response body so the connection is reusable
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

// IsRetryableStatus reports whether a status code is worth retrying
func IsRetryableStatus(statusCode int) bool {
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}
