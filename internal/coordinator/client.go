package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Static errors for coordinator client operations. All of them mean the
// coordinator is unavailable for this call.
var (
	// ErrIdentityRequired is returned when the host.principal identity is empty.
	ErrIdentityRequired = errors.New("coordinator: identity is required")
	// ErrEmptyResponse is returned when /inc answers with an empty body.
	ErrEmptyResponse = errors.New("coordinator: empty response")
	// ErrMalformedResponse is returned when the body is not a worker id list.
	ErrMalformedResponse = errors.New("coordinator: malformed response")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("coordinator: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("coordinator: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("coordinator: request failed")
)

// Client defines the interface for talking to the coordinator.
type Client interface {
	// Inc asks the coordinator to mint a candidate worker id for ipu.
	Inc(ctx context.Context, ipu string) (int64, error)

	// Sync reports the worker ids present locally for ipu and returns the
	// ids the coordinator associates with it.
	Sync(ctx context.Context, ipu string, ids []int64) ([]int64, error)
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)

// HTTPClient is the HTTP implementation of Client.
type HTTPClient struct {
	baseURL     string
	httpClient  *http.Client
	timeout     time.Duration
	maxRetries  int
	baseBackoff time.Duration
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithTimeout bounds each Inc or Sync call, retries included.
func WithTimeout(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.timeout = d
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(hc *HTTPClient) {
		hc.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseBackoff = d
	}
}

// NewClient creates a coordinator client for baseURL. An empty baseURL
// selects DefaultBaseURL.
func NewClient(baseURL string, opts ...ClientOption) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &HTTPClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{},
		timeout:     3 * time.Second,
		maxRetries:  1,
		baseBackoff: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Inc asks the coordinator to mint a candidate worker id for ipu.
func (c *HTTPClient) Inc(ctx context.Context, ipu string) (int64, error) {
	if ipu == "" {
		return 0, ErrIdentityRequired
	}

	q := url.Values{}
	q.Set("ipu", ipu)

	body, err := c.get(ctx, "/inc", q)
	if err != nil {
		return 0, err
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return 0, ErrEmptyResponse
	}
	id, err := strconv.ParseInt(body, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedResponse, body)
	}
	return id, nil
}

// Sync reports local ids for ipu and returns the coordinator's view.
func (c *HTTPClient) Sync(ctx context.Context, ipu string, ids []int64) ([]int64, error) {
	if ipu == "" {
		return nil, ErrIdentityRequired
	}

	q := url.Values{}
	q.Set("ipu", ipu)
	q.Set("ids", FormatIDs(ids))

	body, err := c.get(ctx, "/sync", q)
	if err != nil {
		return nil, err
	}
	return ParseIDs(body)
}

// get performs a GET with exponential backoff retry within the call timeout.
func (c *HTTPClient) get(ctx context.Context, path string, q url.Values) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	target := c.baseURL + path + "?" + q.Encode()

	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("coordinator: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		body, err := c.doRequest(ctx, target)
		if err == nil {
			return body, nil
		}

		if !isRetryable(err) {
			return "", err
		}

		lastErr = err
	}

	return "", fmt.Errorf("coordinator: max retries exceeded: %w", lastErr)
}

// doRequest performs a single HTTP request and returns the body text.
func (c *HTTPClient) doRequest(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("coordinator: create request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &retryableError{err: fmt.Errorf("coordinator: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", &retryableError{err: fmt.Errorf("coordinator: read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			return "", &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, string(respBody))}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return "", &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, string(respBody))}
		}
		return "", fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	return string(respBody), nil
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
