// Package httpclient provides an http.Client wrapper with status-aware
// retries, used by the LLM provider.
package httpclient

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"
)

type RetryStrategy int

const (
	NoRetry RetryStrategy = iota
	ConservativeRetry
	SmartRetry
)

type RetryStrategyFunc func(statusCode int) RetryStrategy

type Client struct {
	client       *http.Client
	maxRetries   int
	baseDelay    time.Duration
	strategyFunc RetryStrategyFunc
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.client = client }
}

func WithMaxRetries(max int) Option {
	return func(c *Client) { c.maxRetries = max }
}

func WithBaseDelay(delay time.Duration) Option {
	return func(c *Client) { c.baseDelay = delay }
}

func WithRetryStrategy(strategyFunc RetryStrategyFunc) Option {
	return func(c *Client) { c.strategyFunc = strategyFunc }
}

func New(opts ...Option) *Client {
	client := &Client{
		client:       &http.Client{Timeout: 60 * time.Second},
		maxRetries:   5,
		baseDelay:    2 * time.Second,
		strategyFunc: DefaultRetryStrategy,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// DefaultRetryStrategy retries aggressively on rate limits and cautiously
// on transient server errors.
func DefaultRetryStrategy(statusCode int) RetryStrategy {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusServiceUnavailable:
		return SmartRetry
	case http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusGatewayTimeout:
		return ConservativeRetry
	default:
		return NoRetry
	}
}

// Do executes req, retrying per the configured strategy. The request must
// carry GetBody for retries to replay the payload.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("failed to recreate request body for retry: %w", err)
			}
			req.Body = body
		}

		resp, strategy, retryAfter, err := c.attemptRequest(req)

		if strategy == NoRetry || err == nil {
			return resp, err
		}

		delay := c.calculateDelay(strategy, attempt, retryAfter)

		if attempt >= c.maxRetries || delay == 0 {
			statusCode := 0
			if resp != nil {
				statusCode = resp.StatusCode
			}
			return resp, &RetryableError{
				StatusCode: statusCode,
				Message:    fmt.Sprintf("max HTTP retries (%d) exceeded", c.maxRetries),
				RetryAfter: delay,
				Err:        err,
			}
		}

		if resp != nil {
			resp.Body.Close()
		}
		slog.Warn("Retrying HTTP request",
			"status", resp.StatusCode,
			"delay", delay,
			"attempt", attempt+1,
			"max", c.maxRetries)
		time.Sleep(delay)
	}

	return nil, &RetryableError{
		Message: fmt.Sprintf("max retries exceeded after %d attempts", c.maxRetries),
		Err:     fmt.Errorf("max retries exceeded"),
	}
}

func (c *Client) attemptRequest(req *http.Request) (*http.Response, RetryStrategy, time.Duration, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, NoRetry, 0, err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, NoRetry, 0, nil
	}

	retryAfter := parseRetryAfter(resp.Header)
	strategy := c.strategyFunc(resp.StatusCode)

	return resp, strategy, retryAfter, fmt.Errorf("HTTP %d", resp.StatusCode)
}

func parseRetryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func (c *Client) calculateDelay(strategy RetryStrategy, attempt int, retryAfter time.Duration) time.Duration {
	switch strategy {
	case SmartRetry:
		if retryAfter > 0 {
			return retryAfter
		}
		exponentialDelay := time.Duration(math.Pow(2, float64(attempt))) * c.baseDelay
		jitter := time.Duration(float64(exponentialDelay) * 0.1)
		return exponentialDelay + jitter

	case ConservativeRetry:
		if attempt >= 2 {
			return 0
		}
		return time.Duration(2+attempt) * time.Second

	default:
		return 0
	}
}
