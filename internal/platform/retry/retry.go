package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/deepen-live/deepen-backend/internal/platform/logger"
)

// PermanentError marks a failure no amount of retrying can fix. Do unwraps it
// and returns the inner error immediately.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	if e == nil || e.Err == nil {
		return "permanent failure"
	}
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Permanent wraps err so Do stops retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Policy is a bounded retry policy. Every retry path in the backend has a
// fixed attempt ceiling; nothing retries indefinitely.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Factor       float64
	MaxDelay     time.Duration
	Jitter       bool
}

// UpsertPolicy wraps vector-index mutations: 3 attempts, 2s initial delay.
func UpsertPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		Factor:       2.0,
		MaxDelay:     10 * time.Second,
		Jitter:       true,
	}
}

// TaskPolicy is the outer policy for per-document embedding tasks.
func TaskPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 5 * time.Second,
		Factor:       1.8,
		MaxDelay:     30 * time.Second,
		Jitter:       true,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = time.Second
	}
	if p.Factor < 1 {
		p.Factor = 1
	}
	return p
}

// Do runs fn up to p.MaxAttempts times with multiplicative backoff between
// attempts. It stops early on context cancellation and returns the last error
// once attempts are exhausted.
func Do(ctx context.Context, log *logger.Logger, label string, p Policy, fn func(ctx context.Context) error) error {
	p = p.normalized()

	delay := p.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		var permanent *PermanentError
		if errors.As(lastErr, &permanent) {
			return permanent.Err
		}
		if attempt == p.MaxAttempts {
			break
		}

		sleepFor := delay
		if p.MaxDelay > 0 && sleepFor > p.MaxDelay {
			sleepFor = p.MaxDelay
		}
		if p.Jitter {
			sleepFor = jitter(sleepFor)
		}

		if log != nil {
			log.Warn("Retrying after failure",
				"label", label,
				"attempt", attempt,
				"max_attempts", p.MaxAttempts,
				"sleep", sleepFor.String(),
				"error", lastErr.Error(),
			)
		}

		timer := time.NewTimer(sleepFor)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = time.Duration(float64(delay) * p.Factor)
	}

	return fmt.Errorf("%s failed after %d attempts: %w", label, p.MaxAttempts, lastErr)
}

// jitter spreads a delay by +/- 20%.
func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	j := 0.2
	delta := base.Seconds() * j
	low := base.Seconds() - delta
	high := base.Seconds() + delta
	if low < 0 {
		low = 0
	}
	v := low + rand.Float64()*(high-low)
	return time.Duration(v * float64(time.Second))
}
