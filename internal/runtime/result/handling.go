package result

import (
	"errors"
	"fmt"
	"time"

	loggingpkg "github.com/drblury/mediaflow/internal/runtime/logging"
)

// ErrorInfo is the error detail of a failed message, kept for alerting.
type ErrorInfo struct {
	Type    string
	Message string
	Stack   string
}

// NewErrorInfo describes err. The stack is only known for panics.
func NewErrorInfo(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	info := &ErrorInfo{Type: fmt.Sprintf("%T", err), Message: err.Error()}
	var p *PanicError
	if errors.As(err, &p) {
		info.Stack = p.Stack
	}
	return info
}

// MessageHandlingResult describes how one message was handled. It is built
// once per message and handed to every result sink.
type MessageHandlingResult struct {
	MessageID      string
	MediaType      string
	Handler        string
	Kind           Kind
	Reason         string
	Retry          bool
	RetryTimeout   *int
	Elapsed        time.Duration
	SincePublished *time.Duration
	Error          *ErrorInfo
	Extra          map[string]any
	// Cause is the error behind a FAILED result.
	Cause error
}

// New builds the result of a message from its outcome.
func New(messageID, mediaType, handler string, outcome Outcome, elapsed time.Duration, sincePublished *time.Duration) MessageHandlingResult {
	r := MessageHandlingResult{
		MessageID:      messageID,
		MediaType:      mediaType,
		Handler:        handler,
		Kind:           outcome.Kind,
		Reason:         outcome.Reason,
		Retry:          outcome.Retry(),
		RetryTimeout:   outcome.RetryAfter,
		Elapsed:        elapsed,
		SincePublished: sincePublished,
		Extra:          outcome.Extra,
	}
	if outcome.Kind == Failed {
		r.Error = NewErrorInfo(outcome.Err)
		r.Cause = outcome.Err
	}
	return r
}

// Level is the log level the result is reported at.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Level returns the log level of the result.
func (r MessageHandlingResult) Level() Level {
	switch r.Kind {
	case Failed:
		return LevelError
	case Expired:
		return LevelWarn
	case Ignored:
		return LevelDebug
	default:
		return LevelInfo
	}
}

// LogFields renders the result as structured log fields.
func (r MessageHandlingResult) LogFields() loggingpkg.LogFields {
	fields := loggingpkg.LogFields{
		"message_id": r.MessageID,
		"media_type": r.MediaType,
		"outcome":    string(r.Kind),
		"retry":      r.Retry,
		"elapsed_ms": r.Elapsed.Milliseconds(),
	}
	if r.Handler != "" {
		fields["handler"] = r.Handler
	}
	if r.Reason != "" {
		fields["reason"] = r.Reason
	}
	if r.RetryTimeout != nil {
		fields["retry_timeout"] = *r.RetryTimeout
	}
	if r.SincePublished != nil {
		fields["since_published_ms"] = r.SincePublished.Milliseconds()
	}
	if r.Error != nil {
		fields["error_type"] = r.Error.Type
		if r.Error.Stack != "" {
			fields["stack"] = r.Error.Stack
		}
	}
	for k, v := range r.Extra {
		if _, taken := fields[k]; !taken {
			fields[k] = v
		}
	}
	return fields
}
