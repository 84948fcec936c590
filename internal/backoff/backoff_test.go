package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects requested sleeps instead of blocking.
type recorder struct {
	waits []time.Duration
}

func (r *recorder) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func testController(maxRetries int, jitter float64) (*Controller, *recorder) {
	rec := &recorder{}
	c := New(maxRetries, 100*time.Millisecond)
	c.Jitter = func() float64 { return jitter }
	c.Sleep = rec.sleep
	return c, rec
}

func TestBaseDelay_Doubles(t *testing.T) {
	c := New(6, time.Second)
	assert.Equal(t, time.Second, c.BaseDelay(1))
	assert.Equal(t, 2*time.Second, c.BaseDelay(2))
	assert.Equal(t, 4*time.Second, c.BaseDelay(3))
	assert.Equal(t, 32*time.Second, c.BaseDelay(6))

	for attempt := 1; attempt < 10; attempt++ {
		assert.Less(t, c.BaseDelay(attempt), c.BaseDelay(attempt+1))
	}
}

func TestDelay_JitterBounds(t *testing.T) {
	c := New(6, time.Second)
	c.Jitter = func() float64 { return 0 }
	assert.Equal(t, 2*time.Second, c.Delay(2))

	c.Jitter = func() float64 { return 0.999 }
	d := c.Delay(2)
	assert.GreaterOrEqual(t, d, 2*time.Second)
	assert.Less(t, d, 2500*time.Millisecond)
}

func TestNew_Defaults(t *testing.T) {
	c := New(-1, 0)
	assert.Equal(t, DefaultMaxRetries, c.MaxRetries)
	assert.Equal(t, DefaultBase, c.Base)
}

func TestDo_SucceedsAfterRateLimits(t *testing.T) {
	c, rec := testController(6, 0)
	calls := 0
	err := c.Do(context.Background(), "embed", func(context.Context) error {
		calls++
		if calls < 3 {
			return &RateLimitError{Err: errors.New("429")}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, rec.waits)
}

func TestDo_HonoursRetryAfter(t *testing.T) {
	c, rec := testController(6, 0)
	calls := 0
	err := c.Do(context.Background(), "chat", func(context.Context) error {
		calls++
		if calls == 1 {
			return &RateLimitError{RetryAfter: 7 * time.Second, Err: errors.New("429")}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{7 * time.Second}, rec.waits)
}

func TestDo_ExhaustsRetries(t *testing.T) {
	c, rec := testController(3, 0)
	original := &TransientError{Err: errors.New("503 service unavailable")}
	calls := 0
	err := c.Do(context.Background(), "embed", func(context.Context) error {
		calls++
		return original
	})
	assert.Same(t, original, err)
	assert.Equal(t, 4, calls)
	assert.Len(t, rec.waits, 3)
}

func TestDo_NonRetryableReturnsImmediately(t *testing.T) {
	c, rec := testController(6, 0)
	boom := errors.New("invalid api key")
	calls := 0
	err := c.Do(context.Background(), "chat", func(context.Context) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.waits)
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	c := New(6, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	limited := &RateLimitError{Err: errors.New("429")}
	err := c.Do(ctx, "chat", func(context.Context) error { return limited })
	assert.ErrorIs(t, err, limited)
}

func TestCall_ReturnsValue(t *testing.T) {
	c, _ := testController(2, 0)
	calls := 0
	v, err := Call(context.Background(), c, "embed", func(context.Context) ([]float32, error) {
		calls++
		if calls == 1 {
			return nil, &TransientError{Err: errors.New("timeout")}
		}
		return []float32{0.1, 0.2}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, v)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&RateLimitError{Err: errors.New("x")}))
	assert.True(t, IsRetryable(&TransientError{Err: errors.New("x")}))
	assert.False(t, IsRetryable(errors.New("x")))
	assert.False(t, IsRetryable(nil))
}
