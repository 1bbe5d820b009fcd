// Package result classifies handler outcomes into the six result kinds and
// describes the per-message MessageHandlingResult observed by sinks.
package result

import (
	"errors"
)

// Kind is the outcome of handling one message.
type Kind string

const (
	Succeeded Kind = "SUCCEEDED"
	Skipped   Kind = "SKIPPED"
	Ignored   Kind = "IGNORED"
	Retried   Kind = "RETRIED"
	Expired   Kind = "EXPIRED"
	Failed    Kind = "FAILED"
)

// Kinds lists every outcome kind.
var Kinds = []Kind{Succeeded, Skipped, Ignored, Retried, Expired, Failed}

// Reasons attached by the dispatcher and the classifier.
const (
	ReasonDeclined     = "handler declined"
	ReasonMaxAttempts  = "exceeded maximum processing attempts"
	ReasonNoSchema     = "no schema registered"
	ReasonNoHandler    = "no handler registered"
	ReasonHopLimit     = "hop limit exceeded"
	ReasonTTLExhausted = "message time to live exhausted"
)

// Outcome is the classified result of one message.
type Outcome struct {
	Kind       Kind
	Reason     string
	RetryAfter *int
	Extra      map[string]any
	Err        error
}

// Retry reports whether the message goes back to the queue (nack) rather than
// being deleted (ack).
func (o Outcome) Retry() bool {
	return o.Kind == Retried || o.Kind == Failed
}

// Classify maps a handler's return values to an Outcome.
func Classify(ok bool, err error) Outcome {
	if err == nil {
		if ok {
			return Outcome{Kind: Succeeded}
		}
		return Outcome{Kind: Skipped, Reason: ReasonDeclined}
	}

	var retry *RetryError
	if errors.As(err, &retry) {
		delay := retry.Delay
		return Outcome{Kind: Retried, Reason: err.Error(), RetryAfter: &delay, Err: err}
	}
	var skip *SkipError
	if errors.As(err, &skip) {
		return Outcome{Kind: Skipped, Reason: skip.Reason, Extra: skip.Extra}
	}
	if errors.Is(err, ErrHopLimitExceeded) {
		return Outcome{Kind: Expired, Reason: ReasonHopLimit, Err: err}
	}
	if errors.Is(err, ErrIgnore) {
		return Outcome{Kind: Ignored, Reason: err.Error()}
	}
	return Outcome{Kind: Failed, Reason: err.Error(), Err: err}
}

// Panicked classifies a recovered panic.
func Panicked(value any, stack []byte) Outcome {
	err := &PanicError{Value: value, Stack: string(stack)}
	return Outcome{Kind: Failed, Reason: err.Error(), Err: err}
}
