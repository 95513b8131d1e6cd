package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/sentidca/pkg/retrier"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout      = 15 * time.Second
	defaultRequestsPerS = 5
	maxErrorBody        = 512
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
	Wait       time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d: %s", e.URL, e.StatusCode, e.Body)
}

// Temporary reports whether repeating the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// RetryAfter is the server's Retry-After hint, zero when absent.
func (e *StatusError) RetryAfter() time.Duration {
	return e.Wait
}

// RESTClient performs rate-limited GET requests with retries on transient failures.
type RESTClient struct {
	http    *http.Client
	limiter *rate.Limiter
	retrier *retrier.Retrier
	logger  *zap.Logger
}

// RESTOption configures a RESTClient.
type RESTOption func(*RESTClient)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) RESTOption {
	return func(r *RESTClient) {
		r.http = c
	}
}

// WithRateLimit sets the request rate. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) RESTOption {
	return func(r *RESTClient) {
		if rps <= 0 {
			r.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetryOptions overrides the backoff settings.
func WithRetryOptions(opts ...retrier.Option) RESTOption {
	return func(r *RESTClient) {
		r.retrier = r.newRetrier(opts...)
	}
}

// NewRESTClient creates a client with a 15s timeout, 5 req/s and exponential backoff.
func NewRESTClient(logger *zap.Logger, opts ...RESTOption) *RESTClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &RESTClient{
		http:    &http.Client{Timeout: defaultTimeout},
		limiter: rate.NewLimiter(rate.Limit(defaultRequestsPerS), defaultRequestsPerS),
		logger:  logger,
	}
	c.retrier = c.newRetrier(retrier.WithMaxRetries(3))

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *RESTClient) newRetrier(opts ...retrier.Option) *retrier.Retrier {
	base := []retrier.Option{
		retrier.WithNotify(func(attempt int, err error, wait time.Duration) {
			c.logger.Warn("retrying request",
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		}),
	}
	return retrier.New(append(base, opts...)...)
}

// Get returns the response body of a successful GET.
func (c *RESTClient) Get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	return retrier.Value(ctx, c.retrier, func(ctx context.Context) ([]byte, error) {
		body, err := c.get(ctx, url, header)
		if err != nil && !isRetryable(err) {
			return nil, retrier.Permanent(err)
		}
		return body, err
	})
}

// GetJSON decodes the response body of a successful GET into out.
func (c *RESTClient) GetJSON(ctx context.Context, url string, header http.Header, out interface{}) error {
	body, err := c.Get(ctx, url, header)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "decode response from %s", url)
	}

	return nil
}

func (c *RESTClient) get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "wait for rate limiter")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "build request for %s", url)
	}
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", url)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read response from %s", url)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &StatusError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Wait:       parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	return body, nil
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}

	return true
}

// parseRetryAfter reads the delay-seconds form of Retry-After. HTTP dates are ignored.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
