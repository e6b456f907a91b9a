package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Outcome classifies the result of a single attempt
type Outcome int

const (
	// Success terminates the loop, the attempt produced a usable result
	Success Outcome = iota
	// Retryable sleeps the scheduled delay and tries again
	Retryable
	// Reauth means credentials were rejected; the attempt func is expected
	// to have refreshed them before returning. Consumes an attempt like
	// Retryable.
	Reauth
	// Fatal terminates the loop immediately without further attempts
	Fatal
)

// ErrExhausted wraps the last attempt error once the schedule runs out
var ErrExhausted = errors.New("retry attempts exhausted")

// DefaultSchedule returns the fixed backoff schedule. Its length bounds the
// total number of attempts.
func DefaultSchedule() []time.Duration {
	return []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second}
}

// AttemptFunc performs one attempt. attempt is 1-based.
type AttemptFunc func(ctx context.Context, attempt int) (Outcome, error)

// Engine executes attempts against a fixed backoff schedule
type Engine struct {
	schedule []time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	onError  func()
}

// New creates an engine with the given schedule. onError fires once per
// non-success attempt and may be nil.
func New(schedule []time.Duration, onError func()) *Engine {
	return &Engine{
		schedule: schedule,
		sleep:    sleepCtx,
		onError:  onError,
	}
}

// Do runs fn until it succeeds, fails fatally, or the schedule is exhausted
func (e *Engine) Do(ctx context.Context, fn AttemptFunc) error {
	var lastErr error
	for i, delay := range e.schedule {
		attempt := i + 1
		outcome, err := fn(ctx, attempt)
		switch outcome {
		case Success:
			return nil
		case Fatal:
			e.fireError()
			return err
		case Retryable, Reauth:
			e.fireError()
			lastErr = err
			if attempt < len(e.schedule) {
				if serr := e.sleep(ctx, delay); serr != nil {
					return serr
				}
			}
		}
	}
	return fmt.Errorf("%w: %w", ErrExhausted, lastErr)
}

func (e *Engine) fireError() {
	if e.onError != nil {
		e.onError()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ClassifyStatus maps an HTTP status code to an outcome. reauthOn401
// enables the reauthentication path used by the chat endpoint; transports
// without credential refresh treat 401 as fatal.
func ClassifyStatus(status int, reauthOn401 bool) Outcome {
	switch {
	case status >= 200 && status < 300:
		return Success
	case status == 429 || status >= 500:
		return Retryable
	case status == 401 && reauthOn401:
		return Reauth
	default:
		return Fatal
	}
}
