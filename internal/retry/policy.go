// Package retry decides whether a classified failure is retried and how long
// to wait before the next attempt.
package retry

import (
	"context"
	"math"
	"time"

	"github.com/eshaffer321/apiclient-go/internal/types"
)

// SleepFunc blocks for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy is the backoff retry policy
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration

	// MaxDelay caps a single delay when positive
	MaxDelay time.Duration

	// Sleep defaults to a timer-backed wait
	Sleep SleepFunc
}

// NewPolicy creates a policy from a retry config. A nil config uses the defaults.
func NewPolicy(cfg *types.RetryConfig) *Policy {
	if cfg == nil {
		cfg = types.DefaultRetryConfig()
	}

	p := &Policy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		MaxDelay:    cfg.MaxDelay,
		Sleep:       sleepContext,
	}
	if p.MaxAttempts < 0 {
		p.MaxAttempts = 0
	}
	// Zero base delay retries immediately; defaults apply only to a nil config
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	return p
}

// ShouldRetry reports whether another attempt is allowed for the classification
func ShouldRetry(c *types.Error, attempt, maxAttempts int) bool {
	if c == nil {
		return false
	}
	return c.Retryable && attempt < maxAttempts
}

// ComputeDelay returns base * 2^(attempt-1). Attempts are counted from 1.
func ComputeDelay(attempt int, base time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		return 0
	}

	shift := attempt - 1
	if shift >= 63 || base > time.Duration(math.MaxInt64>>uint(shift)) {
		return time.Duration(math.MaxInt64)
	}
	return base << uint(shift)
}

// ShouldRetry applies the policy's attempt bound
func (p *Policy) ShouldRetry(c *types.Error, attempt int) bool {
	return ShouldRetry(c, attempt, p.MaxAttempts)
}

// Delay returns the delay before the given attempt, honoring MaxDelay
func (p *Policy) Delay(attempt int) time.Duration {
	d := ComputeDelay(attempt, p.BaseDelay)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Wait blocks for the delay of the given attempt. It returns the context
// error if ctx is done first.
func (p *Policy) Wait(ctx context.Context, attempt int) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	return sleep(ctx, p.Delay(attempt))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
