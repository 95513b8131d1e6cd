package retrier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hintedErr time.Duration

func (e hintedErr) Error() string              { return "slow down" }
func (e hintedErr) RetryAfter() time.Duration { return time.Duration(e) }

func TestRetrier_Do(t *testing.T) {
	fail := errors.New("fail")

	tests := []struct {
		name        string
		maxRetries  int
		failures    int
		wantErr     bool
		wantAttempt int
	}{
		{name: "success on first attempt", maxRetries: 3, failures: 0, wantAttempt: 1},
		{name: "success after retries", maxRetries: 3, failures: 2, wantAttempt: 3},
		{name: "retries exhausted", maxRetries: 2, failures: 10, wantErr: true, wantAttempt: 3},
		{name: "no retries", maxRetries: 0, failures: 10, wantErr: true, wantAttempt: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(WithMaxRetries(tt.maxRetries), WithInitialInterval(time.Millisecond))

			attempts := 0
			err := r.Do(context.Background(), func(ctx context.Context) error {
				attempts++
				if attempts <= tt.failures {
					return fail
				}
				return nil
			})

			if tt.wantErr {
				assert.ErrorIs(t, err, fail)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantAttempt, attempts)
		})
	}
}

func TestRetrier_ContextCancelled(t *testing.T) {
	r := New(WithMaxRetries(5), WithInitialInterval(100*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := r.Do(ctx, func(ctx context.Context) error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("fail")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, attempts)
}

func TestRetrier_Permanent(t *testing.T) {
	bad := errors.New("bad request")
	r := New(WithMaxRetries(5), WithInitialInterval(time.Millisecond))

	attempts := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts == 2 {
			return Permanent(bad)
		}
		return errors.New("transient")
	})

	assert.Equal(t, bad, err)
	assert.Equal(t, 2, attempts)
	assert.NoError(t, Permanent(nil))
}

func TestRetrier_Notify(t *testing.T) {
	var seen []int
	r := New(
		WithMaxRetries(2),
		WithInitialInterval(time.Millisecond),
		WithNotify(func(attempt int, err error, wait time.Duration) {
			seen = append(seen, attempt)
			assert.EqualError(t, err, "fail")
		}),
	)

	err := r.Do(context.Background(), func(ctx context.Context) error {
		return errors.New("fail")
	})

	assert.Error(t, err)
	assert.Equal(t, []int{1, 2}, seen)
}

func TestRetrier_Wait(t *testing.T) {
	r := New(
		WithInitialInterval(time.Second),
		WithMaxInterval(5*time.Second),
		WithMultiplier(2),
		WithJitter(0),
	)
	plain := errors.New("fail")

	assert.Equal(t, time.Second, r.wait(1, plain))
	assert.Equal(t, 2*time.Second, r.wait(2, plain))
	assert.Equal(t, 4*time.Second, r.wait(3, plain))
	assert.Equal(t, 5*time.Second, r.wait(4, plain))

	assert.Equal(t, 3*time.Second, r.wait(1, hintedErr(3*time.Second)))
	assert.Equal(t, 5*time.Second, r.wait(1, hintedErr(time.Minute)))
	assert.Equal(t, time.Second, r.wait(1, hintedErr(0)))
}

func TestValue(t *testing.T) {
	r := New(WithMaxRetries(1), WithInitialInterval(time.Millisecond))

	calls := 0
	val, err := Value(context.Background(), r, func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "partial", errors.New("fail")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)

	val, err = Value(context.Background(), r, func(ctx context.Context) (string, error) {
		return "partial", errors.New("fail")
	})
	assert.Error(t, err)
	assert.Empty(t, val)
}
