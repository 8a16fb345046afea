// Package retry wraps fallible operations with bounded exponential backoff.
// It knows nothing about sheets or browsers; callers classify which errors
// are worth retrying.
package retry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sheetdrive/internal/logging"
)

// PermanentError marks an error as non-retryable. Do surfaces the wrapped
// error immediately without consuming the remaining attempt budget.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the policy will not retry it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err carries the non-retryable marker.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Config tunes a Policy.
type Config struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	BackoffFactor float64
	// NonRetryable classifies additional errors as permanent. Optional;
	// PermanentError-wrapped errors are always treated as permanent.
	NonRetryable func(error) bool
}

// DefaultConfig matches the delays the run controller uses between attempts
// against a remote chat service.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   3,
		BaseDelay:     2 * time.Second,
		BackoffFactor: 2.0,
	}
}

// Stats is a read-only snapshot of a policy's activity.
type Stats struct {
	Operations    int64
	Succeeded     int64
	Failed        int64
	TotalAttempts int64
	TimeRetrying  time.Duration
}

// Policy executes operations with bounded retry. Safe for concurrent use.
type Policy struct {
	cfg Config
	log *logging.Logger

	mu    sync.Mutex
	stats Stats
}

// New builds a policy, normalizing nonsensical config values.
func New(cfg Config) *Policy {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffFactor < 1 {
		cfg.BackoffFactor = 2.0
	}
	if cfg.BaseDelay < 0 {
		cfg.BaseDelay = 0
	}
	return &Policy{
		cfg: cfg,
		log: logging.Get(logging.CategoryRetry),
	}
}

// Stats returns a snapshot of the policy's observed activity.
func (p *Policy) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Do runs op up to the policy's attempt budget. Attempt k waits
// BaseDelay * BackoffFactor^(k-1) after the k-th retryable failure.
//
// It returns the result, the number of attempts consumed, and the last
// error. Permanent errors abort immediately and are returned verbatim; after
// the final attempt the last error is returned unwrapped, never swallowed.
func Do[T any](ctx context.Context, p *Policy, name string, op func(context.Context) (T, error)) (T, int, error) {
	var zero T
	var lastErr error
	var retryWait time.Duration

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				p.log.Info("%s succeeded on attempt %d/%d", name, attempt, p.cfg.MaxAttempts)
			}
			p.record(attempt, retryWait, true)
			return result, attempt, nil
		}
		lastErr = err

		if p.permanent(err) {
			p.log.Warn("%s: non-retryable failure on attempt %d: %v", name, attempt, err)
			p.record(attempt, retryWait, false)
			return zero, attempt, err
		}
		p.log.Warn("%s: attempt %d/%d failed: %v", name, attempt, p.cfg.MaxAttempts, err)

		if attempt == p.cfg.MaxAttempts {
			break
		}

		delay := p.delayFor(attempt)
		p.log.Debug("%s: waiting %s before attempt %d", name, delay, attempt+1)
		select {
		case <-ctx.Done():
			p.record(attempt, retryWait, false)
			return zero, attempt, ctx.Err()
		case <-time.After(delay):
			retryWait += delay
		}
	}

	p.record(p.cfg.MaxAttempts, retryWait, false)
	return zero, p.cfg.MaxAttempts, lastErr
}

func (p *Policy) permanent(err error) bool {
	if IsPermanent(err) {
		return true
	}
	return p.cfg.NonRetryable != nil && p.cfg.NonRetryable(err)
}

// delayFor computes the wait after the attempt-th failure (1-indexed).
func (p *Policy) delayFor(attempt int) time.Duration {
	delay := float64(p.cfg.BaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= p.cfg.BackoffFactor
	}
	return time.Duration(delay)
}

func (p *Policy) record(attempts int, retryWait time.Duration, success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.Operations++
	p.stats.TotalAttempts += int64(attempts)
	p.stats.TimeRetrying += retryWait
	if success {
		p.stats.Succeeded++
	} else {
		p.stats.Failed++
	}
}

// String renders stats for the end-of-run summary.
func (s Stats) String() string {
	return fmt.Sprintf("operations=%d succeeded=%d failed=%d attempts=%d time_retrying=%s",
		s.Operations, s.Succeeded, s.Failed, s.TotalAttempts, s.TimeRetrying)
}
