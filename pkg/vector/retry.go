package vector

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RetryConfig tunes a Retrier's backoff schedule.
type RetryConfig struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	Jitter            bool
}

// DefaultRetryConfig is a general-purpose schedule suitable for most
// outbound calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// DatabaseRetryConfig is tuned for database-backed vector collections,
// which see more transient contention (deadlocks, serialization failures)
// than a typical network call.
func DatabaseRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       5,
		InitialDelay:      250 * time.Millisecond,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 1.5,
		Jitter:            true,
	}
}

var retryableSubstrings = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"temporary failure",
	"too many connections",
	"deadlock detected",
	"lock timeout",
	"serialization failure",
	"could not serialize access",
	"connection lost",
	"server closed the connection",
	"broken pipe",
	"i/o timeout",
	"network is unreachable",
	"no route to host",
}

type retryableError struct {
	err       error
	retryable bool
	context   string
}

func (e *retryableError) Error() string {
	return fmt.Sprintf("%s: %v", e.context, e.err)
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// WrapRetryableError annotates err with an explicit retry decision that
// overrides IsRetryableError's heuristic. Returns nil when err is nil.
func WrapRetryableError(err error, retryable bool, context string) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err, retryable: retryable, context: context}
}

// IsRetryableError reports whether err is worth retrying: an explicit
// WrapRetryableError decision if present; a bare context.Canceled is not
// retried and a bare context.DeadlineExceeded is; otherwise a substring
// match against known-transient database/network error messages.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var re *retryableError
	if asRetryableError(err, &re) {
		return re.retryable
	}
	if err == context.Canceled {
		return false
	}
	if err == context.DeadlineExceeded {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range retryableSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return msg == strings.ToLower(contextDeadlineMsg) || msg == strings.ToLower(sqlConnDoneMsg)
}

const (
	contextDeadlineMsg = "context deadline exceeded"
	sqlConnDoneMsg     = "sql: connection is already closed"
)

func asRetryableError(err error, target **retryableError) bool {
	if re, ok := err.(*retryableError); ok {
		*target = re
		return true
	}
	return false
}

// Retrier executes an operation under a RetryConfig's backoff schedule.
type Retrier struct {
	config RetryConfig
	logger *zap.Logger
}

// NewRetrier builds a Retrier. A nil logger is replaced with a no-op one.
func NewRetrier(config RetryConfig, logger *zap.Logger) *Retrier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrier{config: config, logger: logger}
}

// Operation is one attempt of retried work; attempt is 1-indexed.
type Operation func(ctx context.Context, attempt int) (any, error)

// ExecuteWithType runs operation, retrying on IsRetryableError up to
// config.MaxAttempts times with exponential backoff (plus jitter, when
// enabled) between attempts. A non-retryable error returns immediately.
func (r *Retrier) ExecuteWithType(ctx context.Context, operation Operation) (any, error) {
	var lastErr error
	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		result, err := operation(ctx, attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !IsRetryableError(err) {
			return nil, err
		}
		if attempt == r.config.MaxAttempts {
			break
		}

		delay := r.backoff(attempt)
		r.logger.Debug("retrying vector operation",
			zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("operation failed after %d attempts: %w", r.config.MaxAttempts, lastErr)
}

func (r *Retrier) backoff(attempt int) time.Duration {
	delay := float64(r.config.InitialDelay) * math.Pow(r.config.BackoffMultiplier, float64(attempt-1))
	if max := float64(r.config.MaxDelay); delay > max {
		delay = max
	}
	if r.config.Jitter {
		delay *= 0.5 + rand.Float64()*0.5
	}
	return time.Duration(delay)
}
