package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrServiceRequired     = sterrors.New("mediaflow: service is required")
	ErrConfigRequired      = sterrors.New("mediaflow: configuration is required")
	ErrLoggerRequired      = sterrors.New("mediaflow: logger is required")
	ErrHandlerRequired     = sterrors.New("mediaflow: handler is required")
	ErrHandlerNameRequired = sterrors.New("mediaflow: handler name is required")
	ErrMediaTypeRequired   = sterrors.New("mediaflow: media type is required")
	ErrCodecRequired       = sterrors.New("mediaflow: codec is required")
	ErrQueueRequired       = sterrors.New("mediaflow: queue backend is required")
	ErrTopicsRequired      = sterrors.New("mediaflow: topic backend is required")
	ErrRegistryRequired    = sterrors.New("mediaflow: schema registry is required")
	ErrParserRequired      = sterrors.New("mediaflow: envelope parser is required")

	// ErrSchemaNotFound is returned by schema lookups for media types that are
	// neither registered nor eligible for convention-based registration.
	ErrSchemaNotFound = sterrors.New("mediaflow: no schema registered for media type")

	// ErrHandlerNotFound is returned when no bound handler exists for a media type.
	ErrHandlerNotFound = sterrors.New("mediaflow: no handler registered for media type")

	// ErrMessageResolved is returned when a message is acked or nacked twice.
	ErrMessageResolved = sterrors.New("mediaflow: message already resolved")

	// ErrUnknownPolicy is returned for backoff policy names without a registered constructor.
	ErrUnknownPolicy = sterrors.New("mediaflow: unknown backoff policy")

	// ErrUnknownTransport is returned for transport names without a registered builder.
	ErrUnknownTransport = sterrors.New("mediaflow: unknown transport")

	// ErrInvalidReceiptHandle is returned by queue backends for receipt handles
	// that are unknown or belong to a superseded delivery.
	ErrInvalidReceiptHandle = sterrors.New("mediaflow: invalid receipt handle")

	ErrTransportClosed = sterrors.New("mediaflow: transport is closed")
)

// ConfigValidationError wraps the joined validation failures of a Config.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "mediaflow: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// AlreadyRegisteredError reports a media type registered twice with different codecs.
type AlreadyRegisteredError struct {
	MediaType string
}

func (e *AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("mediaflow: media type %q is already registered with a different codec", e.MediaType)
}

// TopicNotDefinedError reports a media type with no topic mapping and no default topic.
type TopicNotDefinedError struct {
	MediaType string
}

func (e *TopicNotDefinedError) Error() string {
	return fmt.Sprintf("mediaflow: no topic defined for media type %q", e.MediaType)
}

// ValidationError reports fields that do not satisfy a codec schema.
type ValidationError struct {
	MediaType string
	Field     string
	Reason    string
	Cause     error
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("mediaflow: invalid %q message", e.MediaType)
	if e.Field != "" {
		msg += fmt.Sprintf(": field %q", e.Field)
	}
	if e.Reason != "" {
		msg += " " + e.Reason
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// ChecksumMismatchError reports a raw body whose digest differs from the backend checksum.
type ChecksumMismatchError struct {
	MessageID string
	Expected  string
	Actual    string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("mediaflow: checksum mismatch for message %s: expected %s, got %s", e.MessageID, e.Expected, e.Actual)
}

// AmbiguousHandlerError reports more than one active binding for a single media type.
type AmbiguousHandlerError struct {
	MediaType string
	Bindings  []string
}

func (e *AmbiguousHandlerError) Error() string {
	return fmt.Sprintf("mediaflow: media type %q has more than one active handler: %v", e.MediaType, e.Bindings)
}
