package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const maxResponseBodySize = 4 << 20 // 4MB

// connection pooling limits shared by every feed download
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 4
	defaultIdleConnTimeout     = 60 * time.Second
)

const (
	defaultTimeout        = 15 * time.Second
	defaultRetries        = 2
	defaultInitialBackoff = 250 * time.Millisecond
	defaultUserAgent      = "feedstore/1.0"
)

// errRetryable marks responses worth another attempt.
var errRetryable = errors.New("retryable response")

// Client downloads feed documents.
//
// Each attempt is bounded by the configured timeout via its context.
// Network errors and 5xx responses are retried with exponential backoff;
// other non-2xx responses fail immediately. Bodies are limited to 4MB.
type Client struct {
	httpClient     *http.Client
	timeout        time.Duration
	retries        uint64
	initialBackoff time.Duration
	userAgent      string
}

// NewClient creates a [Client]. Zero values select the defaults: 15s
// timeout, 250ms initial backoff and the "feedstore/1.0" user agent.
// retries is the number of attempts after the first one.
func NewClient(timeout time.Duration, retries int, initialBackoff time.Duration, userAgent string) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if retries < 0 {
		retries = 0
	}
	if initialBackoff <= 0 {
		initialBackoff = defaultInitialBackoff
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Client{
		httpClient: &http.Client{
			// no default timeout - we use per-attempt timeouts via context
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
		timeout:        timeout,
		retries:        uint64(retries),
		initialBackoff: initialBackoff,
		userAgent:      userAgent,
	}
}

// Get downloads url and returns the response body.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialBackoff
	bo.MaxInterval = 10 * c.initialBackoff
	bo.MaxElapsedTime = 0 // bounded by retries and ctx instead

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.retries), ctx)

	return backoff.RetryWithData(func() ([]byte, error) {
		return c.attempt(ctx, url)
	}, policy)
}

// attempt performs a single GET. Errors that must not be retried are
// wrapped with [backoff.Permanent].
func (c *Client) attempt(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/feed+json, application/xml;q=0.9, */*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", errRetryable, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, backoff.Permanent(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// Close closes all idle connections in the client's connection pool.
// Safe to call multiple times; the client remains usable afterwards.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
