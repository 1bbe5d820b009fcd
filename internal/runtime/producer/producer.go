// Package producer encodes outbound messages through the schema registry,
// resolves their topic and publishes them, immediately or at the end of a
// deferred scope.
package producer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/drblury/mediaflow/internal/runtime/codec"
	errspkg "github.com/drblury/mediaflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/mediaflow/internal/runtime/logging"
	"github.com/drblury/mediaflow/internal/runtime/metadata"
	"github.com/drblury/mediaflow/internal/runtime/msgctx"
)

// DefaultBatchSize caps the messages packed into one batch wrapper.
const DefaultBatchSize = 100

// TopicBackend publishes an encoded body to a topic and returns the
// backend-assigned message id.
type TopicBackend interface {
	Publish(ctx context.Context, topic, body string) (string, error)
}

// SchemaFinder looks up the codec of a media type. *codec.Registry
// implements it.
type SchemaFinder interface {
	Find(mediaType string) (codec.Codec, error)
}

// Publisher is what application code produces through: the Producer itself,
// or a Deferred scope.
type Publisher interface {
	Produce(ctx context.Context, mediaType string, fields codec.Fields) (string, error)
}

// Config selects destinations.
type Config struct {
	// Topics maps media types to topic identifiers.
	Topics map[string]string
	// DefaultTopic receives media types missing from Topics.
	DefaultTopic string
	// Enabled=false encodes and validates but never calls the backend.
	Enabled bool
	// BatchSize caps each batch wrapper; zero means DefaultBatchSize.
	BatchSize int
}

// PublishedMessage is an encoded message waiting in a deferred scope.
type PublishedMessage struct {
	MediaType  string
	Message    string
	Topic      string
	OpaqueData metadata.Metadata
}

// Producer publishes media-typed messages.
type Producer struct {
	backend TopicBackend
	schemas SchemaFinder
	cfg     Config
	logger  loggingpkg.ServiceLogger
	now     func() time.Time
}

// Option customizes a Producer.
type Option func(*Producer)

// WithLogger sets the producer logger.
func WithLogger(logger loggingpkg.ServiceLogger) Option {
	return func(p *Producer) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock overrides time.Now for published-at stamps.
func WithClock(now func() time.Time) Option {
	return func(p *Producer) {
		if now != nil {
			p.now = now
		}
	}
}

// New returns a Producer. The backend may be nil only when publishing is
// disabled.
func New(backend TopicBackend, schemas SchemaFinder, cfg Config, opts ...Option) (*Producer, error) {
	if schemas == nil {
		return nil, errspkg.ErrRegistryRequired
	}
	if backend == nil && cfg.Enabled {
		return nil, errspkg.ErrTopicsRequired
	}
	if cfg.BatchSize < 0 {
		return nil, errspkg.ConfigValidationError{Err: fmt.Errorf("batch size must not be negative, got %d", cfg.BatchSize)}
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	topics := make(map[string]string, len(cfg.Topics))
	for mt, topic := range cfg.Topics {
		topics[mt] = topic
	}
	cfg.Topics = topics

	p := &Producer{
		backend: backend,
		schemas: schemas,
		cfg:     cfg,
		logger:  loggingpkg.NopLogger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Enabled reports whether publish calls reach the backend.
func (p *Producer) Enabled() bool {
	return p.cfg.Enabled
}

// Topic resolves the topic of mediaType: exact match, then the default.
func (p *Producer) Topic(mediaType string) (string, error) {
	if topic, ok := p.cfg.Topics[mediaType]; ok && topic != "" {
		return topic, nil
	}
	if p.cfg.DefaultTopic != "" {
		return p.cfg.DefaultTopic, nil
	}
	return "", &errspkg.TopicNotDefinedError{MediaType: mediaType}
}

// Produce encodes fields as mediaType and publishes them. The ambient message
// context of ctx is written into the opaque data; keys already present in
// fields["opaqueData"] win. In no-op mode the message is still encoded and ""
// is returned.
func (p *Producer) Produce(ctx context.Context, mediaType string, fields codec.Fields) (string, error) {
	msg, err := p.prepare(ctx, mediaType, fields)
	if err != nil {
		return "", err
	}
	return p.publish(ctx, msg)
}

// Send publishes an already encoded body to topic, bypassing the registry.
func (p *Producer) Send(ctx context.Context, topic, body string) (string, error) {
	if !p.cfg.Enabled {
		return "", nil
	}
	id, err := p.backend.Publish(ctx, topic, body)
	if err != nil {
		return "", fmt.Errorf("mediaflow: publish to %s: %w", topic, err)
	}
	return id, nil
}

func (p *Producer) prepare(ctx context.Context, mediaType string, fields codec.Fields) (PublishedMessage, error) {
	if mediaType == "" {
		return PublishedMessage{}, errspkg.ErrMediaTypeRequired
	}
	topic, err := p.Topic(mediaType)
	if err != nil {
		return PublishedMessage{}, err
	}
	c, err := p.schemas.Find(mediaType)
	if err != nil {
		return PublishedMessage{}, err
	}

	opaque := p.opaqueData(ctx, fields)
	input := fields.Clone()
	input[codec.KeyOpaqueData] = opaque
	body, err := c.Encode(input)
	if err != nil {
		return PublishedMessage{}, err
	}
	return PublishedMessage{MediaType: mediaType, Message: body, Topic: topic, OpaqueData: opaque}, nil
}

func (p *Producer) opaqueData(ctx context.Context, fields codec.Fields) metadata.Metadata {
	ambient := msgctx.FromContextOrNew(ctx).OpaqueData(p.now())
	return ambient.WithAll(fields.OpaqueData())
}

func (p *Producer) publish(ctx context.Context, msg PublishedMessage) (string, error) {
	if !p.cfg.Enabled {
		p.logger.Debug("Publishing disabled, message dropped", loggingpkg.LogFields{
			"media_type": msg.MediaType,
			"topic":      msg.Topic,
		})
		return "", nil
	}
	id, err := p.backend.Publish(ctx, msg.Topic, msg.Message)
	if err != nil {
		return "", fmt.Errorf("mediaflow: publish %s to %s: %w", msg.MediaType, msg.Topic, err)
	}
	p.logger.Debug("Message published", loggingpkg.LogFields{
		"media_type": msg.MediaType,
		"topic":      msg.Topic,
		"message_id": id,
	})
	return id, nil
}

// Deferred runs fn with a buffering Publisher. When fn returns nil the
// buffered messages are published in submission order; when it returns an
// error or panics nothing is published.
func (p *Producer) Deferred(ctx context.Context, fn func(Publisher) error) error {
	d := &Deferred{producer: p}
	if err := fn(d); err != nil {
		return err
	}
	return d.flush(ctx)
}

// DeferredBatch is Deferred with the buffer packed into batch wrappers of at
// most BatchSize messages, one publish call per wrapper, sent to the topic of
// the batch media type.
func (p *Producer) DeferredBatch(ctx context.Context, fn func(Publisher) error) error {
	d := &Deferred{producer: p}
	if err := fn(d); err != nil {
		return err
	}
	return d.flushBatches(ctx)
}

// Deferred buffers encoded messages until its scope ends.
type Deferred struct {
	producer *Producer
	buffer   []PublishedMessage
}

// Produce encodes and buffers the message. Encoding and topic errors surface
// immediately; the message id is unknown until flush, so "" is returned.
func (d *Deferred) Produce(ctx context.Context, mediaType string, fields codec.Fields) (string, error) {
	msg, err := d.producer.prepare(ctx, mediaType, fields)
	if err != nil {
		return "", err
	}
	d.buffer = append(d.buffer, msg)
	return "", nil
}

// Messages returns the buffered messages in submission order.
func (d *Deferred) Messages() []PublishedMessage {
	return append([]PublishedMessage(nil), d.buffer...)
}

func (d *Deferred) flush(ctx context.Context) error {
	for i, msg := range d.buffer {
		if _, err := d.producer.publish(ctx, msg); err != nil {
			return fmt.Errorf("mediaflow: deferred flush stopped after %d of %d messages: %w", i, len(d.buffer), err)
		}
	}
	return nil
}

func (d *Deferred) flushBatches(ctx context.Context) error {
	size := d.producer.cfg.BatchSize
	var errs []error
	for start := 0; start < len(d.buffer); start += size {
		end := min(start+size, len(d.buffer))
		if _, err := d.producer.Produce(ctx, batchMediaType, batchFields(d.buffer[start:end])); err != nil {
			errs = append(errs, fmt.Errorf("batch %d: %w", start/size, err))
			break
		}
	}
	return errors.Join(errs...)
}
