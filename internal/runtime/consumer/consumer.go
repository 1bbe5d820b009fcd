// Package consumer pulls raw payloads from a queue backend, parses them into
// Messages and resolves each message with exactly one ack or nack.
package consumer

import (
	"context"
	"errors"
	"fmt"

	"github.com/drblury/mediaflow/internal/runtime/backoff"
	"github.com/drblury/mediaflow/internal/runtime/envelope"
	errspkg "github.com/drblury/mediaflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/mediaflow/internal/runtime/logging"
	"github.com/drblury/mediaflow/internal/runtime/msgctx"
)

// Backend limits for one receive call.
const (
	MaxLimit       = 10
	MaxWaitSeconds = 20
)

// RawMessage is one item returned by a queue backend.
type RawMessage struct {
	ID                      string
	ReceiptHandle           string
	Body                    string
	Checksum                string
	ApproximateReceiveCount int
}

// QueueBackend is the queue transport the consumer drives.
type QueueBackend interface {
	Receive(ctx context.Context, maxMessages, waitSeconds int32) ([]RawMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
	ChangeVisibility(ctx context.Context, receiptHandle string, timeoutSeconds int32) error
}

// Parser turns a raw body into media-typed content. *envelope.Parser
// implements it.
type Parser interface {
	Parse(id, body, checksum string) (envelope.Parsed, error)
}

// Config bounds a single receive call.
type Config struct {
	Limit       int32
	WaitSeconds int32
}

// DefaultConfig receives full batches with maximal long polling.
var DefaultConfig = Config{Limit: MaxLimit, WaitSeconds: MaxWaitSeconds}

func (c Config) validate() error {
	var errs []error
	if c.Limit < 1 || c.Limit > MaxLimit {
		errs = append(errs, fmt.Errorf("receive limit must be between 1 and %d, got %d", MaxLimit, c.Limit))
	}
	if c.WaitSeconds < 0 || c.WaitSeconds > MaxWaitSeconds {
		errs = append(errs, fmt.Errorf("wait seconds must be between 0 and %d, got %d", MaxWaitSeconds, c.WaitSeconds))
	}
	return errors.Join(errs...)
}

// Consumer owns one receive/ack/nack session. Concurrent workers each need
// their own Consumer.
type Consumer struct {
	backend QueueBackend
	parser  Parser
	policy  backoff.Policy
	cfg     Config
	logger  loggingpkg.ServiceLogger
}

// Option customizes a Consumer.
type Option func(*Consumer)

// WithLogger sets the logger used for parse failures.
func WithLogger(logger loggingpkg.ServiceLogger) Option {
	return func(c *Consumer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New returns a consumer. policy computes nack timeouts; a nil policy is a
// naive policy without default, which nacks with a zero timeout.
func New(backend QueueBackend, parser Parser, policy backoff.Policy, cfg Config, opts ...Option) (*Consumer, error) {
	if backend == nil {
		return nil, errspkg.ErrQueueRequired
	}
	if parser == nil {
		return nil, errspkg.ErrParserRequired
	}
	if err := cfg.validate(); err != nil {
		return nil, errspkg.ConfigValidationError{Err: err}
	}
	if policy == nil {
		policy = backoff.Naive{}
	}
	c := &Consumer{
		backend: backend,
		parser:  parser,
		policy:  policy,
		cfg:     cfg,
		logger:  loggingpkg.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Consume issues one receive call and parses every returned item. Items that
// fail to parse are left untouched so the backend redelivers them; their
// errors are joined into the returned error alongside the valid messages.
func (c *Consumer) Consume(ctx context.Context) ([]*Message, error) {
	raws, err := c.backend.Receive(ctx, c.cfg.Limit, c.cfg.WaitSeconds)
	if err != nil {
		return nil, fmt.Errorf("mediaflow: receive messages: %w", err)
	}

	messages := make([]*Message, 0, len(raws))
	var errs []error
	for _, raw := range raws {
		parsed, err := c.parser.Parse(raw.ID, raw.Body, raw.Checksum)
		if err != nil {
			c.logger.Error("Failed to parse message", err, loggingpkg.LogFields{"message_id": raw.ID})
			errs = append(errs, err)
			continue
		}
		count := raw.ApproximateReceiveCount
		if count < 1 {
			count = 1
		}
		messages = append(messages, &Message{
			ID:                      raw.ID,
			ReceiptHandle:           raw.ReceiptHandle,
			MediaType:               parsed.MediaType,
			Content:                 parsed.Content,
			OpaqueData:              parsed.OpaqueData,
			ApproximateReceiveCount: count,
			Context:                 msgctx.Received(parsed.OpaqueData),
			consumer:                c,
		})
	}
	return messages, errors.Join(errs...)
}

// Ack deletes msg from the queue.
func (c *Consumer) Ack(ctx context.Context, msg *Message) error {
	if !msg.resolve() {
		return errspkg.ErrMessageResolved
	}
	if err := c.backend.Delete(ctx, msg.ReceiptHandle); err != nil {
		return fmt.Errorf("mediaflow: ack message %s: %w", msg.ID, err)
	}
	return nil
}

// Nack returns msg to the queue. The timeout comes from the backoff policy,
// which sees explicit as an override; a policy without opinion yields 0. The
// visibility change is always issued so the backend's own default visibility
// window never applies to failed messages.
func (c *Consumer) Nack(ctx context.Context, msg *Message, explicit *int) error {
	if !msg.resolve() {
		return errspkg.ErrMessageResolved
	}
	timeout := 0
	if computed := c.policy.ComputeTimeout(msg.ApproximateReceiveCount, explicit); computed != nil {
		timeout = *computed
	}
	if err := c.backend.ChangeVisibility(ctx, msg.ReceiptHandle, int32(timeout)); err != nil {
		return fmt.Errorf("mediaflow: nack message %s: %w", msg.ID, err)
	}
	return nil
}
