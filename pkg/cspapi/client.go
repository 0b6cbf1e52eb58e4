// ABOUTME: HTTP client for the Common Standards Project API
// ABOUTME: Client-side rate limiting, retry with backoff and an on-disk response cache

package cspapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/nainya/standardstore/internal/logger"
	"github.com/nainya/standardstore/internal/metrics"
	"github.com/nainya/standardstore/internal/retry"
	"github.com/nainya/standardstore/pkg/datastore"
)

var (
	// ErrUnauthorized is returned for 401 responses; the API key is wrong.
	ErrUnauthorized = errors.New("csp api: authentication failed, check CSP_API_KEY")
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("csp api: resource not found")
	// ErrRetriesExhausted is returned when every attempt failed transiently.
	ErrRetriesExhausted = errors.New("csp api: retries exhausted")
)

// HTTPError is a non-retryable HTTP failure.
type HTTPError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("csp api: %s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Options configures a Client.
type Options struct {
	BaseURL           string
	APIKey            string
	RequestsPerMinute int
	MaxAttempts       int
	Timeout           time.Duration
	Concurrency       int

	// BackoffBase is the unit of the 2^attempt backoff. Defaults to one second.
	BackoffBase time.Duration
	// MaxBackoff caps a single backoff wait. Defaults to 60 seconds.
	MaxBackoff time.Duration
	// DefaultRetryAfter is used when a 429 carries no Retry-After header.
	DefaultRetryAfter time.Duration

	Cache      *datastore.Store // nil disables the on-disk cache
	HTTPClient *http.Client
	Logger     *logger.Logger
	Metrics    *metrics.Metrics
}

// Client talks to the standards API.
type Client struct {
	opts    Options
	http    *http.Client
	limiter *rate.Limiter
	cache   *datastore.Store
	log     *logger.Logger
	metrics *metrics.Metrics
}

// New builds a client, filling unset options with defaults.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.commonstandardsproject.com/api/v1"
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = 60
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 60 * time.Second
	}
	if opts.DefaultRetryAfter <= 0 {
		opts.DefaultRetryAfter = 60 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	// A full bucket of one minute's budget, refilled continuously.
	perSecond := rate.Limit(float64(opts.RequestsPerMinute) / 60)
	return &Client{
		opts:    opts,
		http:    httpClient,
		limiter: rate.NewLimiter(perSecond, opts.RequestsPerMinute),
		cache:   opts.Cache,
		log:     logger.OrNop(opts.Logger).APILogger(),
		metrics: opts.Metrics,
	}
}

// get fetches endpoint and returns the raw response body.
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	url := c.opts.BaseURL + endpoint
	for attempt := 0; attempt < c.opts.MaxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		start := time.Now()
		body, status, retryAfter, err := c.do(ctx, url)
		c.log.LogAPIRequest(endpoint, status, attempt+1, time.Since(start), err)

		last := attempt == c.opts.MaxAttempts-1
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.metrics.RecordAPIRequest(endpoint, "transport_error")
			if last {
				return nil, fmt.Errorf("%w: %s: %v", ErrRetriesExhausted, endpoint, err)
			}
			c.metrics.RecordAPIRetry("transport")
			if err := retry.Sleep(ctx, c.backoff(attempt)); err != nil {
				return nil, err
			}
			continue
		}

		c.metrics.RecordAPIRequest(endpoint, strconv.Itoa(status))
		switch {
		case status == http.StatusOK:
			return body, nil
		case status == http.StatusUnauthorized:
			return nil, ErrUnauthorized
		case status == http.StatusNotFound:
			return nil, fmt.Errorf("%w: %s", ErrNotFound, endpoint)
		case status == http.StatusTooManyRequests:
			c.log.Warn("Server rate limit hit").Dur("retry_after", retryAfter).Send()
			c.metrics.RecordAPIRetry("rate_limited")
			if err := retry.Sleep(ctx, retryAfter); err != nil {
				return nil, err
			}
		case status >= 500:
			if last {
				return nil, fmt.Errorf("%w: %s: HTTP %d", ErrRetriesExhausted, endpoint, status)
			}
			c.metrics.RecordAPIRetry("server_error")
			if err := retry.Sleep(ctx, c.backoff(attempt)); err != nil {
				return nil, err
			}
		default:
			return nil, &HTTPError{Endpoint: endpoint, StatusCode: status, Body: truncate(string(body), 200)}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrRetriesExhausted, endpoint)
}

func (c *Client) do(ctx context.Context, url string) ([]byte, int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, 0, err
	}
	req.Header.Set("Api-Key", c.opts.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, 0, err
	}
	return body, resp.StatusCode, c.retryAfter(resp.Header.Get("Retry-After")), nil
}

func (c *Client) retryAfter(header string) time.Duration {
	if header == "" {
		return c.opts.DefaultRetryAfter
	}
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs < 0 {
		return c.opts.DefaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}

func (c *Client) backoff(attempt int) time.Duration {
	return retry.Backoff(attempt, c.opts.BackoffBase, c.opts.MaxBackoff)
}

// cached returns the document at path, fetching and storing it when the
// cache is disabled, empty, unreadable or refresh is set.
func (c *Client) cached(ctx context.Context, kind, path, endpoint string, refresh bool, valid func([]byte) error) ([]byte, error) {
	if c.cache != nil && !refresh {
		if data, ok := c.cache.ReadCache(path); ok {
			err := valid(data)
			if err == nil {
				c.metrics.RecordCacheHit(kind)
				c.log.Debug("Loaded from cache").Str("path", path).Send()
				return data, nil
			}
			c.log.Warn("Ignoring unreadable cache").Str("path", path).Err(err).Send()
		}
	}

	data, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if err := valid(data); err != nil {
		return nil, err
	}
	if c.cache != nil {
		if err := c.cache.WriteCache(path, data); err != nil {
			c.log.Warn("Failed to save cache").Str("path", path).Err(err).Send()
		}
	}
	return data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
