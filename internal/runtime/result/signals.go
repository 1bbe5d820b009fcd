package result

import (
	"errors"
	"fmt"
)

// Signals a handler returns to steer the outcome of a message.
var (
	// ErrIgnore drops the message silently.
	ErrIgnore = errors.New("mediaflow: ignore message")

	// ErrSkip matches every *SkipError.
	ErrSkip = errors.New("mediaflow: skip message")

	// ErrRetry matches every *RetryError.
	ErrRetry = errors.New("mediaflow: retry message")

	// ErrHopLimitExceeded reports that a message chain ran out of hops. The
	// message is acknowledged and logged as a warning.
	ErrHopLimitExceeded = errors.New("mediaflow: hop limit exceeded")
)

// SkipError acknowledges a message without processing it, for a business
// reason worth logging.
type SkipError struct {
	Reason string
	Extra  map[string]any
}

// Skip returns a SkipError with optional structured extras.
//
//	return false, result.Skip("order already shipped", map[string]any{"order_id": id})
func Skip(reason string, extra map[string]any) *SkipError {
	return &SkipError{Reason: reason, Extra: extra}
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("mediaflow: skip message: %s", e.Reason)
}

func (e *SkipError) Is(target error) bool {
	return target == ErrSkip
}

// RetryError returns the message to the queue after Delay seconds, bypassing
// the backoff policy. Use it for known transient races such as read-after-write
// lag.
type RetryError struct {
	Delay int
	Cause error
}

// RetryAfter returns a RetryError.
//
//	return false, result.RetryAfter(3, fmt.Errorf("order %s not visible yet", id))
func RetryAfter(delaySeconds int, cause error) *RetryError {
	return &RetryError{Delay: delaySeconds, Cause: cause}
}

func (e *RetryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("mediaflow: retry after %ds: %v", e.Delay, e.Cause)
	}
	return fmt.Sprintf("mediaflow: retry after %ds", e.Delay)
}

func (e *RetryError) Unwrap() error {
	return e.Cause
}

func (e *RetryError) Is(target error) bool {
	return target == ErrRetry
}

// PanicError wraps a value recovered from a panicking handler.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("mediaflow: handler panicked: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}
