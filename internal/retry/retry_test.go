package retry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func TestDoSucceedsOnThirdAttempt(t *testing.T) {
	sleeper := &recordingSleeper{}
	r := New(DefaultPolicy(), sleeper.sleep)

	calls := 0
	result := r.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return errors.New("503 service unavailable")
		}
		return nil
	})

	require.True(t, result.Success)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, sleeper.delays)
	assert.Equal(t, 6*time.Second, result.TotalWait)
	assert.NoError(t, result.LastError)
}

func TestDoExhaustsAttempts(t *testing.T) {
	sleeper := &recordingSleeper{}
	r := New(DefaultPolicy(), sleeper.sleep)

	result := r.Do(context.Background(), func(ctx context.Context, attempt int) error {
		return errors.New("timeout")
	})

	assert.False(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.EqualError(t, result.LastError, "timeout")
	// No wait after the final attempt.
	assert.Len(t, sleeper.delays, 2)
	assert.EqualError(t, result.Err(), "failed after 3 attempts: timeout")
}

func TestDoDelayCap(t *testing.T) {
	sleeper := &recordingSleeper{}
	r := New(Policy{MaxAttempts: 5, InitialDelay: 2 * time.Second, Multiplier: 2, MaxDelay: 8 * time.Second}, sleeper.sleep)

	r.Do(context.Background(), func(ctx context.Context, attempt int) error {
		return errors.New("fail")
	})

	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 8 * time.Second}, sleeper.delays)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	sleeper := &recordingSleeper{}
	r := New(DefaultPolicy(), sleeper.sleep)
	notFound := errors.New("repository not found")

	calls := 0
	result := r.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return Permanent(notFound)
	})

	assert.False(t, result.Success)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeper.delays)
	assert.Same(t, notFound, result.LastError)
	assert.False(t, IsPermanent(result.LastError))
}

func TestDoHonoursCancellationDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := New(Policy{MaxAttempts: 3, InitialDelay: time.Hour, Multiplier: 2, MaxDelay: time.Hour}, nil)

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	result := r.Do(ctx, func(ctx context.Context, attempt int) error {
		return errors.New("fail")
	})

	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
	assert.ErrorIs(t, result.LastError, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDoRealTimerWaits(t *testing.T) {
	r := New(Policy{MaxAttempts: 3, InitialDelay: 20 * time.Millisecond, Multiplier: 2, MaxDelay: 80 * time.Millisecond}, nil)

	start := time.Now()
	result := r.Do(context.Background(), func(ctx context.Context, attempt int) error {
		if attempt < 3 {
			return errors.New("fail")
		}
		return nil
	})
	elapsed := time.Since(start)

	require.True(t, result.Success)
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestPermanentNil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
	assert.Nil(t, Unwrap(nil))
}

func TestBudget(t *testing.T) {
	tests := []struct {
		name       string
		policy     Policy
		perAttempt time.Duration
		want       time.Duration
	}{
		{"default policy", DefaultPolicy(), 60 * time.Second, 186 * time.Second},
		{"capped delays", Policy{MaxAttempts: 5, InitialDelay: 2 * time.Second, Multiplier: 2, MaxDelay: 4 * time.Second}, time.Second, 19 * time.Second},
		{"single attempt", Policy{MaxAttempts: 1, InitialDelay: time.Second}, 10 * time.Second, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.policy, nil).Budget(tt.perAttempt))
		})
	}
}

func TestBudgetMatchesObservedDelays(t *testing.T) {
	sleeper := &recordingSleeper{}
	r := New(DefaultPolicy(), sleeper.sleep)

	result := r.Do(context.Background(), func(ctx context.Context, attempt int) error {
		return errors.New("timeout")
	})

	require.False(t, result.Success)
	assert.Equal(t, r.Budget(0), result.TotalWait)
}
