// Package dispatch runs the per-message state machine: validate, route,
// invoke, classify, resolve. Every message it receives gets exactly one
// terminal action, even when its handler panics.
package dispatch

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/mediaflow/internal/runtime/consumer"
	errspkg "github.com/drblury/mediaflow/internal/runtime/errors"
	"github.com/drblury/mediaflow/internal/runtime/handlers"
	loggingpkg "github.com/drblury/mediaflow/internal/runtime/logging"
	"github.com/drblury/mediaflow/internal/runtime/msgctx"
	"github.com/drblury/mediaflow/internal/runtime/result"
)

const tracerName = "github.com/drblury/mediaflow/dispatch"

// Source yields batches of messages. *consumer.Consumer implements it.
type Source interface {
	Consume(ctx context.Context) ([]*consumer.Message, error)
}

// HandlerFinder finds the bound handler of a media type. handlers.Bound
// implements it.
type HandlerFinder interface {
	Find(mediaType string) (handlers.Handler, string, error)
}

// HandlerResolver computes the handler set used for one batch.
type HandlerResolver func() (HandlerFinder, error)

// Static always resolves to finder.
func Static(finder HandlerFinder) HandlerResolver {
	if finder == nil {
		return nil
	}
	return func() (HandlerFinder, error) { return finder, nil }
}

// Active resolves the active subset of registry at the start of every batch,
// so bindings registered while the dispatcher runs are picked up by the next
// poll.
func Active(registry *handlers.Registry, active []string) HandlerResolver {
	if registry == nil {
		return nil
	}
	return func() (HandlerFinder, error) {
		bound, err := registry.Bound(active)
		if err != nil {
			return nil, err
		}
		return bound, nil
	}
}

// Dispatcher drives one Source through the handler set.
type Dispatcher struct {
	source      Source
	handlers    HandlerResolver
	maxAttempts int
	errBackoff  time.Duration
	idlePause   time.Duration
	sinks       []ResultSink
	logger      loggingpkg.ServiceLogger
	tracer      trace.Tracer
	now         func() time.Time
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithMaxProcessingAttempts skips messages received more than n times
// without invoking their handler. Zero disables the ceiling.
func WithMaxProcessingAttempts(n int) Option {
	return func(d *Dispatcher) {
		d.maxAttempts = n
	}
}

// WithSinks adds result sinks. Sinks run in order after each message is
// resolved.
func WithSinks(sinks ...ResultSink) Option {
	return func(d *Dispatcher) {
		d.sinks = append(d.sinks, sinks...)
	}
}

// WithLogger sets the logger used for loop and resolution errors.
func WithLogger(logger loggingpkg.ServiceLogger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithTracer replaces the tracer obtained from the global provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(d *Dispatcher) {
		if tracer != nil {
			d.tracer = tracer
		}
	}
}

// WithErrorBackoff sets the pause after a receive call fails.
func WithErrorBackoff(pause time.Duration) Option {
	return func(d *Dispatcher) {
		d.errBackoff = pause
	}
}

// WithIdlePause sets the pause after a poll that returned no messages.
func WithIdlePause(pause time.Duration) Option {
	return func(d *Dispatcher) {
		d.idlePause = pause
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// DefaultIdlePause keeps a loop over a non-blocking receive from spinning.
const DefaultIdlePause = 200 * time.Millisecond

// New returns a Dispatcher.
func New(source Source, resolve HandlerResolver, opts ...Option) (*Dispatcher, error) {
	if source == nil {
		return nil, errspkg.ErrQueueRequired
	}
	if resolve == nil {
		return nil, errspkg.ErrHandlerRequired
	}
	d := &Dispatcher{
		source:     source,
		handlers:   resolve,
		errBackoff: time.Second,
		idlePause:  DefaultIdlePause,
		logger:     loggingpkg.NopLogger(),
		tracer:     otel.Tracer(tracerName),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Run polls, dispatches and resolves until ctx is cancelled. Cancellation is
// only observed between batches; a batch in flight runs to completion.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("Dispatcher started", nil)
	defer d.logger.Info("Dispatcher stopped", nil)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		processed, err := d.ProcessBatch(ctx)
		if processed > 0 {
			continue
		}
		pause := d.idlePause
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			pause = d.errBackoff
		}
		if pause <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(pause):
		}
	}
}

// ProcessBatch resolves the handler set, runs one poll and dispatches every
// parsed message. It returns the number of dispatched messages and the
// resolution, receive or parse error, if any. When the handler set cannot be
// resolved nothing is consumed.
func (d *Dispatcher) ProcessBatch(ctx context.Context) (int, error) {
	finder, err := d.handlers()
	if err != nil {
		d.logger.Error("Failed to resolve handlers", err, nil)
		return 0, err
	}
	msgs, err := d.source.Consume(ctx)
	if err != nil {
		d.logger.Error("Failed to consume messages", err, loggingpkg.LogFields{"parsed": len(msgs)})
	}
	for _, msg := range msgs {
		d.dispatch(ctx, finder, msg)
	}
	return len(msgs), err
}

// dispatch handles and resolves one message and returns its result.
func (d *Dispatcher) dispatch(ctx context.Context, finder HandlerFinder, msg *consumer.Message) result.MessageHandlingResult {
	start := d.now()
	ctx = msgctx.With(ctx, msg.Context)
	ctx, span := d.tracer.Start(ctx, "mediaflow.dispatch",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.message.id", msg.ID),
			attribute.String("mediaflow.media_type", msg.MediaType),
			attribute.Int("mediaflow.receive_count", msg.ApproximateReceiveCount),
			attribute.Int("mediaflow.ttl", msg.Context.TTL),
		),
	)
	defer span.End()

	outcome, handlerName := d.handle(ctx, finder, msg)

	now := d.now()
	var sincePublished *time.Duration
	if since, ok := msg.Context.SincePublished(now); ok {
		sincePublished = &since
	}
	res := result.New(msg.ID, msg.MediaType, handlerName, outcome, now.Sub(start), sincePublished)

	span.SetAttributes(attribute.String("mediaflow.outcome", string(res.Kind)))
	if res.Kind == result.Failed {
		span.RecordError(outcome.Err)
		span.SetStatus(codes.Error, res.Reason)
	}

	d.resolve(ctx, msg, outcome)

	for _, sink := range d.sinks {
		sink.Observe(ctx, res)
	}
	return res
}

// handle runs validation, routing and invocation. Any panic, including one
// raised before the handler runs, becomes a FAILED outcome.
func (d *Dispatcher) handle(ctx context.Context, finder HandlerFinder, msg *consumer.Message) (outcome result.Outcome, handlerName string) {
	defer func() {
		if r := recover(); r != nil {
			outcome = result.Panicked(r, debug.Stack())
		}
	}()

	if msg.Context.Expired() {
		return result.Outcome{Kind: result.Expired, Reason: result.ReasonTTLExhausted}, ""
	}
	if d.maxAttempts > 0 && msg.ApproximateReceiveCount > d.maxAttempts {
		return result.Outcome{Kind: result.Skipped, Reason: result.ReasonMaxAttempts}, ""
	}
	if msg.Content == nil {
		return result.Outcome{Kind: result.Ignored, Reason: result.ReasonNoSchema}, ""
	}

	handler, name, err := finder.Find(msg.MediaType)
	if err != nil {
		return result.Outcome{Kind: result.Ignored, Reason: result.ReasonNoHandler}, ""
	}
	handlerName = name
	ok, err := handler.Handle(ctx, msg.Content)
	return result.Classify(ok, err), handlerName
}

func (d *Dispatcher) resolve(ctx context.Context, msg *consumer.Message, outcome result.Outcome) {
	var err error
	if outcome.Retry() {
		err = msg.Nack(ctx, outcome.RetryAfter)
	} else {
		err = msg.Ack(ctx)
	}
	if err != nil {
		d.logger.Error("Failed to resolve message", err, loggingpkg.LogFields{
			"message_id": msg.ID,
			"media_type": msg.MediaType,
			"retry":      outcome.Retry(),
		})
	}
}
