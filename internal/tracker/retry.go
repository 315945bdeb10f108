package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chickmaster/internal/game"
	"chickmaster/internal/telemetry"
)

// ErrTransient marks an operation that kept failing after every retry.
var ErrTransient = errors.New("transient operation failure")

// RetryError carries the last failure of a retried operation. It matches
// both ErrTransient and the wrapped error.
type RetryError struct {
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() []error { return []error{ErrTransient, e.Err} }

// Retrier runs an operation up to Attempts times, sleeping Delay between
// attempts.
type Retrier struct {
	Attempts  int
	Delay     time.Duration
	Clock     game.Clock
	Telemetry telemetry.Recorder
}

func (r Retrier) Do(ctx context.Context, name string, op func() error) error {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	clock := r.Clock
	if clock == nil {
		clock = game.RealClock{}
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		slog.Warn("operation failed", "op", name, "attempt", attempt, "of", attempts, "error", err)
		if r.Telemetry != nil {
			_ = r.Telemetry.RecordEvent(telemetry.EventRetryAttempt, telemetry.EventMetadata{
				"op":      name,
				"attempt": attempt,
				"error":   err.Error(),
			})
		}
		if attempt == attempts {
			break
		}
		if serr := clock.Sleep(ctx, r.Delay); serr != nil {
			return serr
		}
	}
	return &RetryError{Attempts: attempts, Err: err}
}
