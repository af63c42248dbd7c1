// Package httpx provides the shared HTTP client construction, error
// classification and retry/backoff machinery used by the walker and the
// transfer engine.
package httpx

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/googleapi"

	"github.com/ontahood/drivefetch/internal/constants"
)

// ErrorType represents classes of errors for the retry strategy.
type ErrorType int

const (
	// ErrorTypeSuccess indicates the operation succeeded.
	ErrorTypeSuccess ErrorType = iota
	// ErrorTypeNetwork indicates connection-level issues (timeouts, resets).
	ErrorTypeNetwork
	// ErrorTypeRetryable indicates server errors worth retrying (5xx, 429).
	ErrorTypeRetryable
	// ErrorTypePermanent indicates errors that must not be retried
	// (403/404, bad requests, broken shortcut targets).
	ErrorTypePermanent
	// ErrorTypeCancelled indicates the run's context was cancelled.
	ErrorTypeCancelled
)

// String returns a human-readable name for the error type.
func (t ErrorType) String() string {
	switch t {
	case ErrorTypeSuccess:
		return "success"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeRetryable:
		return "retryable"
	case ErrorTypePermanent:
		return "permanent"
	case ErrorTypeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// StatusError carries an HTTP status from a raw content request so the
// classifier can decide on the status code rather than message text.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d (%s) from %s",
		e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

// Config holds retry parameters for ExecuteWithRetry.
type Config struct {
	// MaxAttempts is the total number of attempts, first try included.
	MaxAttempts int
	// InitialDelay is the base delay for exponential backoff.
	InitialDelay time.Duration
	// MaxDelay caps the delay between retries.
	MaxDelay time.Duration
	// OnRetry is invoked before each retry attempt.
	OnRetry func(attempt int, err error, errType ErrorType)
}

// DefaultConfig returns the default retry policy.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  constants.DefaultMaxAttempts,
		InitialDelay: constants.DefaultInitialDelay,
		MaxDelay:     constants.DefaultMaxDelay,
	}
}

// ClassifyError determines the error type for the retry strategy.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeSuccess
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeCancelled
	}

	// Errors can opt into retries regardless of their status code, e.g.
	// a thumbnail the backend has not generated yet.
	var terr interface{ Temporary() bool }
	if errors.As(err, &terr) && terr.Temporary() {
		return ErrorTypeRetryable
	}

	code := 0
	var gerr *googleapi.Error
	var serr *StatusError
	switch {
	case errors.As(err, &gerr):
		code = gerr.Code
	case errors.As(err, &serr):
		code = serr.StatusCode
	}
	switch {
	case code == 429 || (code >= 500 && code <= 599):
		return ErrorTypeRetryable
	case code == 401 || code == 403 || code == 404 || (code >= 400 && code < 500):
		return ErrorTypePermanent
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "tls handshake timeout"),
		strings.Contains(errStr, "connection reset"),
		strings.Contains(errStr, "connection refused"),
		strings.Contains(errStr, "broken pipe"),
		strings.Contains(errStr, "i/o timeout"),
		strings.Contains(errStr, "unexpected eof"),
		strings.Contains(errStr, "timeout"):
		return ErrorTypeNetwork
	case strings.Contains(errStr, "rate limit"),
		strings.Contains(errStr, "quota exceeded"),
		strings.Contains(errStr, "backenderror"),
		strings.Contains(errStr, "internalerror"):
		return ErrorTypeRetryable
	}

	// Unknown errors are not retried to avoid spinning on the unexpected.
	return ErrorTypePermanent
}

// IsRetryable reports whether an error should be retried with backoff.
func IsRetryable(err error) bool {
	switch ClassifyError(err) {
	case ErrorTypeNetwork, ErrorTypeRetryable:
		return true
	}
	return false
}

// CalculateBackoff returns an exponential backoff duration with full jitter.
// Full jitter spreads simultaneous retries out instead of synchronizing them.
//
// Formula: random(0, min(maxDelay, initialDelay * 2^attempt))
func CalculateBackoff(attempt int, initialDelay, maxDelay time.Duration) time.Duration {
	if attempt <= 0 {
		return 0
	}
	base := time.Duration(1<<uint(attempt)) * initialDelay
	if base > maxDelay || base <= 0 {
		base = maxDelay
	}
	return time.Duration(rand.Int63n(int64(base)))
}

// ExecuteWithRetry runs an operation under the retry policy.
//
// Network and server errors back off exponentially with jitter; permanent
// errors return immediately; context cancellation interrupts both attempts
// and backoff sleeps. When attempts are exhausted the last error is
// returned, wrapped with the attempt count.
func ExecuteWithRetry(ctx context.Context, cfg Config, operation func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = constants.DefaultMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		switch errType := ClassifyError(err); errType {
		case ErrorTypeCancelled:
			return err
		case ErrorTypePermanent:
			return err
		case ErrorTypeNetwork, ErrorTypeRetryable:
			if attempt == cfg.MaxAttempts {
				break
			}
			if cfg.OnRetry != nil {
				cfg.OnRetry(attempt, err, errType)
			}
			backoff := CalculateBackoff(attempt, cfg.InitialDelay, cfg.MaxDelay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}
