package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

var errUpstream = errors.New("upstream failed")

func failing(ctx context.Context) error { return errUpstream }
func ok(ctx context.Context) error      { return nil }

func newTestBreaker(c *clock) *CircuitBreaker {
	return NewCircuitBreaker(&Config{
		Name:                "gemini-2.5-flash",
		ConsecutiveFailures: 3,
		OpenTimeout:         time.Minute,
		HalfOpenMaxCalls:    1,
		Now:                 c.now,
	})
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	c := &clock{t: time.Now()}
	cb := newTestBreaker(c)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, failing), errUpstream)
	}
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Execute(ctx, func(ctx context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestSuccessResetsConsecutiveCount(t *testing.T) {
	cb := newTestBreaker(&clock{t: time.Now()})
	ctx := context.Background()

	_ = cb.Execute(ctx, failing)
	_ = cb.Execute(ctx, failing)
	_ = cb.Execute(ctx, ok)
	_ = cb.Execute(ctx, failing)

	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, 1, cb.GetStats().ConsecutiveFails)
}

func TestHalfOpenRecovery(t *testing.T) {
	c := &clock{t: time.Now()}
	cb := newTestBreaker(c)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, failing)
	}
	c.t = c.t.Add(2 * time.Minute)

	assert.NoError(t, cb.Execute(ctx, ok))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	c := &clock{t: time.Now()}
	cb := newTestBreaker(c)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, failing)
	}
	c.t = c.t.Add(2 * time.Minute)

	assert.ErrorIs(t, cb.Execute(ctx, failing), errUpstream)
	assert.Equal(t, StateOpen, cb.GetState())
	assert.ErrorIs(t, cb.Execute(ctx, ok), ErrCircuitOpen)
}

func TestCallerCancellationIsNotAFailure(t *testing.T) {
	cb := newTestBreaker(&clock{t: time.Now()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 5; i++ {
		_ = cb.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	}
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, 0, cb.GetStats().TotalFailures)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(*DefaultConfig(""))
	a := r.Get("a")
	assert.Same(t, a, r.Get("a"))
	assert.NotSame(t, a, r.Get("b"))
	assert.Len(t, r.Stats(), 2)
	assert.Equal(t, "a", r.Stats()["a"].Name)
}
