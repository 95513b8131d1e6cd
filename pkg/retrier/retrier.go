// Package retrier repeats failing calls with capped exponential backoff.
package retrier

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

const (
	defaultInitialInterval = 1 * time.Second
	defaultMaxInterval     = 30 * time.Second
	defaultMultiplier      = 2.0
	defaultMaxRetries      = 5
	defaultJitter          = 0.1
)

// Hinted is implemented by errors that know when the call may succeed again,
// e.g. an HTTP 429 carrying Retry-After.
type Hinted interface {
	RetryAfter() time.Duration
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns the wrapped error as is.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retrier holds a backoff policy. It is stateless between calls and safe for
// concurrent use.
type Retrier struct {
	initialInterval time.Duration
	maxInterval     time.Duration
	multiplier      float64
	maxRetries      int
	jitter          float64
	notify          func(attempt int, err error, wait time.Duration)
}

// Option configures a Retrier.
type Option func(*Retrier)

func WithInitialInterval(d time.Duration) Option {
	return func(r *Retrier) { r.initialInterval = d }
}

func WithMaxInterval(d time.Duration) Option {
	return func(r *Retrier) { r.maxInterval = d }
}

func WithMultiplier(m float64) Option {
	return func(r *Retrier) { r.multiplier = m }
}

// WithMaxRetries sets how many times a call is repeated after the first attempt.
func WithMaxRetries(n int) Option {
	return func(r *Retrier) { r.maxRetries = n }
}

// WithJitter spreads each wait by ±j of its length. j is clamped to [0, 1].
func WithJitter(j float64) Option {
	return func(r *Retrier) { r.jitter = math.Max(0, math.Min(1, j)) }
}

// WithNotify registers a hook called before each wait.
func WithNotify(fn func(attempt int, err error, wait time.Duration)) Option {
	return func(r *Retrier) { r.notify = fn }
}

func New(opts ...Option) *Retrier {
	r := &Retrier{
		initialInterval: defaultInitialInterval,
		maxInterval:     defaultMaxInterval,
		multiplier:      defaultMultiplier,
		maxRetries:      defaultMaxRetries,
		jitter:          defaultJitter,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do calls fn until it succeeds, returns a Permanent error, the retries run
// out or ctx is done. The last error from fn is returned.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		var permanent *permanentError
		if errors.As(err, &permanent) {
			return permanent.err
		}
		if attempt >= r.maxRetries {
			return err
		}

		wait := r.wait(attempt+1, err)
		if r.notify != nil {
			r.notify(attempt+1, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// wait returns the pause before retry number attempt (1-based). A server hint
// wins over the computed backoff but is still capped by the max interval.
func (r *Retrier) wait(attempt int, err error) time.Duration {
	var hinted Hinted
	if errors.As(err, &hinted) {
		if d := hinted.RetryAfter(); d > 0 {
			return min(d, r.maxInterval)
		}
	}

	backoff := float64(r.initialInterval) * math.Pow(r.multiplier, float64(attempt-1))
	backoff = math.Min(backoff, float64(r.maxInterval))
	backoff += (rand.Float64()*2 - 1) * r.jitter * backoff

	return time.Duration(math.Max(0, backoff))
}

// Value is Do for calls that produce a result.
func Value[T any](ctx context.Context, r *Retrier, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
