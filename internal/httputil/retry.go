package httputil

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ironsheep/occupancy-counter/internal/timeutil"
)

// RetryPolicy bounds how often an operation is attempted.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, at least 1.
	MaxAttempts int
	// Backoff returns the wait after failed attempt n (1-based).
	Backoff func(attempt int) time.Duration
	// Clock is used for waiting; nil means the real clock.
	Clock timeutil.Clock
}

// LinearBackoff waits step*attempt after each failure.
func LinearBackoff(step time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return step * time.Duration(attempt)
	}
}

// permanentError marks an error that must not be retried.
type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so that Do returns it at once instead of retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// NoRetry makes exactly one attempt.
var NoRetry = RetryPolicy{MaxAttempts: 1}

// Do runs fn until it succeeds, the attempts are exhausted or ctx is done.
// It returns the last error; errors wrapped with Permanent end the loop
// immediately. op names the operation in log lines.
func Do(ctx context.Context, op string, policy RetryPolicy, fn func(ctx context.Context) error) error {
	attempts := max(1, policy.MaxAttempts)
	clock := policy.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt == attempts {
			break
		}

		var delay time.Duration
		if policy.Backoff != nil {
			delay = policy.Backoff(attempt)
		}
		log.WithFields(log.Fields{
			"op":       op,
			"attempt":  attempt,
			"attempts": attempts,
			"delay":    delay,
		}).WithError(err).Warn("Retrying after failure")

		if serr := timeutil.Sleep(ctx, clock, delay); serr != nil {
			return serr
		}
	}
	return err
}
