// Package retry runs an operation with bounded attempts and exponential
// backoff. Errors wrapped with Permanent stop the loop immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/caption-studio/internal/logging"
)

// Policy configures retry behavior
type Policy struct {
	MaxAttempts  int           // total attempts including the first
	InitialDelay time.Duration // wait after the first failure
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultPolicy waits 2s then 4s (8s cap) across three attempts
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		Multiplier:   2.0,
		MaxDelay:     8 * time.Second,
	}
}

// Result contains information about the retry operation
type Result struct {
	Attempts      int           `json:"attempts"`
	Success       bool          `json:"success"`
	TotalDuration time.Duration `json:"totalDuration"`
	TotalWait     time.Duration `json:"totalWait"`
	Delays        []time.Duration
	LastError     error `json:"-"`
}

// Func is an operation that can be retried. attempt starts at 1.
type Func func(ctx context.Context, attempt int) error

// SleepFunc blocks for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Permanent marks err as non-retryable
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var perm *backoff.PermanentError
	return errors.As(err, &perm)
}

// Unwrap strips the permanent marker, returning the original error
func Unwrap(err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Unwrap()
	}
	return err
}

// Retrier executes operations under a policy
type Retrier struct {
	policy Policy
	sleep  SleepFunc
}

// New creates a retrier. A nil sleep uses a context aware timer.
func New(policy Policy, sleep SleepFunc) *Retrier {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.Multiplier <= 0 {
		policy.Multiplier = 2.0
	}
	if sleep == nil {
		sleep = timerSleep
	}
	return &Retrier{policy: policy, sleep: sleep}
}

// Policy returns the retrier's policy
func (r *Retrier) Policy() Policy {
	return r.policy
}

func (r *Retrier) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.InitialDelay
	b.Multiplier = r.policy.Multiplier
	b.RandomizationFactor = 0
	b.MaxInterval = r.policy.MaxDelay
	if b.MaxInterval <= 0 {
		b.MaxInterval = r.policy.InitialDelay
	}
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Do executes fn until it succeeds, returns a permanent error, the attempts
// are spent, or ctx is cancelled. LastError never carries the permanent marker.
func (r *Retrier) Do(ctx context.Context, fn Func) *Result {
	logger := logging.FromContext(ctx)
	start := time.Now()
	b := r.newBackOff()
	result := &Result{}

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		result.Attempts = attempt

		err := fn(ctx, attempt)
		if err == nil {
			result.Success = true
			result.LastError = nil
			result.TotalDuration = time.Since(start)
			if attempt > 1 {
				logger.WithFields(map[string]interface{}{
					"attempts":      attempt,
					"totalDuration": result.TotalDuration.String(),
				}).Info("Operation succeeded after retry")
			}
			return result
		}

		result.LastError = Unwrap(err)

		if IsPermanent(err) {
			logger.WithError(result.LastError).WithField("attempt", attempt).Warn("Operation failed with non-retryable error")
			break
		}

		if attempt >= r.policy.MaxAttempts {
			logger.WithFields(map[string]interface{}{
				"attempts": attempt,
				"error":    result.LastError.Error(),
			}).Error("Operation failed after max retry attempts")
			break
		}

		if ctx.Err() != nil {
			result.LastError = ctx.Err()
			break
		}

		delay := b.NextBackOff()
		logger.WithFields(map[string]interface{}{
			"attempt":     attempt,
			"maxAttempts": r.policy.MaxAttempts,
			"delay":       delay.String(),
			"error":       result.LastError.Error(),
		}).Warn("Operation failed, retrying with exponential backoff")

		if err := r.sleep(ctx, delay); err != nil {
			logger.WithError(err).Warn("Retry cancelled during backoff")
			result.LastError = err
			break
		}
		result.Delays = append(result.Delays, delay)
		result.TotalWait += delay
	}

	result.TotalDuration = time.Since(start)
	return result
}

// Budget is the longest Do can take when every attempt runs for perAttempt:
// all attempts plus every backoff delay between them.
func (r *Retrier) Budget(perAttempt time.Duration) time.Duration {
	b := r.newBackOff()
	total := time.Duration(r.policy.MaxAttempts) * perAttempt
	for i := 1; i < r.policy.MaxAttempts; i++ {
		total += b.NextBackOff()
	}
	return total
}

// Run executes fn and returns nil on success or the last error otherwise
func (r *Retrier) Run(ctx context.Context, fn Func) error {
	result := r.Do(ctx, fn)
	if result.Success {
		return nil
	}
	return result.LastError
}

// Err describes a failed result including the attempt count
func (res *Result) Err() error {
	if res.Success {
		return nil
	}
	return fmt.Errorf("failed after %d attempts: %w", res.Attempts, res.LastError)
}

func timerSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
