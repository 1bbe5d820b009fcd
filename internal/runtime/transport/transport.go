// Package transport builds the queue and topic backends the consumer and
// producer run on: SQS and SNS in production, plus in-memory, SQL and
// watermill-broker backends selected by name.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/drblury/mediaflow/internal/runtime/config"
	"github.com/drblury/mediaflow/internal/runtime/consumer"
	errspkg "github.com/drblury/mediaflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/mediaflow/internal/runtime/logging"
	"github.com/drblury/mediaflow/internal/runtime/producer"
)

// Transport pairs the queue a service consumes with the topics it publishes
// to. Queue is nil when the configuration names nothing to consume.
type Transport struct {
	Queue  consumer.QueueBackend
	Topics producer.TopicBackend

	closers []func() error
}

// Close releases every resource the builder opened, in reverse order.
func (t Transport) Close() error {
	var errs []error
	for i := len(t.closers) - 1; i >= 0; i-- {
		if err := t.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *Transport) onClose(fn func() error) {
	t.closers = append(t.closers, fn)
}

// Builder creates a Transport from configuration.
type Builder func(ctx context.Context, conf *config.Config, logger loggingpkg.ServiceLogger) (Transport, error)

var (
	buildersMu sync.RWMutex
	builders   = map[string]Builder{
		"aws":      awsTransport,
		"memory":   memoryTransport,
		"channel":  channelTransport,
		"kafka":    kafkaTransport,
		"rabbitmq": rabbitTransport,
		"nats":     natsTransport,
		"http":     httpTransport,
		"sqlite":   sqliteTransport,
		"postgres": postgresTransport,
	}
)

// Register adds or replaces the builder of a transport name.
func Register(name string, builder Builder) {
	buildersMu.Lock()
	defer buildersMu.Unlock()
	builders[name] = builder
}

// Names lists the registered transport names in sorted order.
func Names() []string {
	buildersMu.RLock()
	defer buildersMu.RUnlock()
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build creates the transport selected by conf.PubSubSystem.
func Build(ctx context.Context, conf *config.Config, logger loggingpkg.ServiceLogger) (Transport, error) {
	if conf == nil {
		return Transport{}, errspkg.ErrConfigRequired
	}
	if logger == nil {
		logger = loggingpkg.NopLogger()
	}
	name := conf.Transport()

	buildersMu.RLock()
	builder, ok := builders[name]
	buildersMu.RUnlock()
	if !ok {
		return Transport{}, fmt.Errorf("%w: %q", errspkg.ErrUnknownTransport, name)
	}

	t, err := builder(ctx, conf, logger.With(loggingpkg.LogFields{"transport": name}))
	if err != nil {
		return Transport{}, fmt.Errorf("mediaflow: build %s transport: %w", name, err)
	}
	return t, nil
}
