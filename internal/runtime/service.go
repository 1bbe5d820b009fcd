package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/mediaflow/internal/runtime/backoff"
	"github.com/drblury/mediaflow/internal/runtime/codec"
	configpkg "github.com/drblury/mediaflow/internal/runtime/config"
	"github.com/drblury/mediaflow/internal/runtime/consumer"
	"github.com/drblury/mediaflow/internal/runtime/dispatch"
	"github.com/drblury/mediaflow/internal/runtime/envelope"
	errspkg "github.com/drblury/mediaflow/internal/runtime/errors"
	"github.com/drblury/mediaflow/internal/runtime/handlers"
	loggingpkg "github.com/drblury/mediaflow/internal/runtime/logging"
	"github.com/drblury/mediaflow/internal/runtime/mediatype"
	"github.com/drblury/mediaflow/internal/runtime/producer"
	transportpkg "github.com/drblury/mediaflow/internal/runtime/transport"
)

// BatchHandlerName is the binding of the batch companion handler. It stays
// active whatever ActiveHandlers lists.
const BatchHandlerName = "mediaflow-batch"

var dispatcherRun = func(d *dispatch.Dispatcher, ctx context.Context) error {
	return d.Run(ctx)
}

// ServiceDependencies holds the optional collaborators of a Service. Leave
// fields nil for the defaults.
type ServiceDependencies struct {
	// Schemas defaults to a registry with convention resolution.
	Schemas *codec.Registry
	// Handlers defaults to an empty registry.
	Handlers *handlers.Registry
	// Transport replaces the builder selected by Config.PubSubSystem.
	Transport transportpkg.Builder
	// Sinks observe every message result after the built-in sinks.
	Sinks []dispatch.ResultSink
	// Tracer defaults to the global otel tracer provider.
	Tracer trace.Tracer
	// Registerer receives the dispatch metrics. Defaults to the global registry.
	Registerer prometheus.Registerer
}

// Service wires a transport, the schema and handler registries, the producer
// and, on Start, a consumer and dispatcher loop.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	schemas   *codec.Registry
	handlers  *handlers.Registry
	transport transportpkg.Transport
	producer  *producer.Producer

	stats      *StatsCollector
	metrics    *dispatch.PrometheusSink
	registerer prometheus.Registerer
	sinks      []dispatch.ResultSink
	tracer     trace.Tracer

	httpServers   map[int]*http.ServeMux
	httpServersMu sync.Mutex
}

// NewService constructs a Service and panics on failure. Register schemas and
// handlers on the returned Service before calling Start.
func NewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) *Service {
	s, err := TryNewService(conf, log, ctx, deps)
	if err != nil {
		panic(err)
	}
	return s
}

// TryNewService is NewService returning the error instead of panicking.
func TryNewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) (*Service, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if err := conf.Validate(); err != nil {
		return nil, errspkg.ConfigValidationError{Err: err}
	}
	log.Info("Creating mediaflow service", loggingpkg.LogFields{
		"pubsub_system": conf.Transport(),
		"config":        conf.String(),
	})

	s := &Service{
		Conf:       conf,
		Logger:     log,
		schemas:    deps.Schemas,
		handlers:   deps.Handlers,
		stats:      NewStatsCollector(),
		registerer: deps.Registerer,
		sinks:      deps.Sinks,
		tracer:     deps.Tracer,
	}
	if s.schemas == nil {
		s.schemas = codec.NewRegistry()
	}
	if s.handlers == nil {
		s.handlers = handlers.NewRegistry()
	}
	s.metrics = dispatch.NewPrometheusSink(s.registerer)

	var err error
	if deps.Transport != nil {
		s.transport, err = deps.Transport(ctx, conf, log.With(loggingpkg.LogFields{"transport": conf.Transport()}))
	} else {
		s.transport, err = transportpkg.Build(ctx, conf, log)
	}
	if err != nil {
		return nil, err
	}

	s.producer, err = producer.New(s.transport.Topics, s.schemas, producer.Config{
		Topics:       conf.Topics,
		DefaultTopic: conf.DefaultTopic,
		Enabled:      conf.ProducerEnabled,
		BatchSize:    conf.BatchSize,
	}, producer.WithLogger(log))
	if err != nil {
		_ = s.transport.Close()
		return nil, err
	}

	if err := s.handlers.Register(mediatype.Batch, handlers.Bind(BatchHandlerName, producer.BatchMessageHandler(s.producer))); err != nil {
		_ = s.transport.Close()
		return nil, err
	}
	return s, nil
}

// Schemas returns the schema registry shared by the consumer and producer.
func (s *Service) Schemas() *codec.Registry { return s.schemas }

// Handlers returns the handler registry.
func (s *Service) Handlers() *handlers.Registry { return s.handlers }

// Producer returns the producer publishing through the service transport.
func (s *Service) Producer() *producer.Producer { return s.producer }

// Stats returns the per-media-type result counters.
func (s *Service) Stats() *StatsCollector { return s.stats }

// Start runs the dispatcher loop until ctx is cancelled. With metrics enabled
// it also serves /metrics and /api/handlers on MetricsPort.
func (s *Service) Start(ctx context.Context) error {
	d, err := s.Dispatcher()
	if err != nil {
		return err
	}
	if s.Conf.MetricsEnabled {
		if err := s.metrics.Register(); err != nil {
			return fmt.Errorf("register dispatch metrics: %w", err)
		}
		s.RegisterHTTPHandler(s.Conf.MetricsPort, "/metrics", s.metricsHandler())
		s.RegisterHTTPHandler(s.Conf.MetricsPort, "/api/handlers", http.HandlerFunc(s.handleGetHandlers))
	}
	stop := s.startHTTPServers()
	defer stop()

	return dispatcherRun(d, ctx)
}

// Dispatcher builds a consumer and dispatcher over the service queue. Each
// call returns an independent pair, so several may run concurrently.
func (s *Service) Dispatcher() (*dispatch.Dispatcher, error) {
	if s.transport.Queue == nil {
		return nil, fmt.Errorf("%w: %s transport has nothing to consume", errspkg.ErrQueueRequired, s.Conf.Transport())
	}
	active := s.activeHandlers()
	if _, err := s.handlers.Bound(active); err != nil {
		return nil, err
	}
	policy, err := backoff.New(s.Conf.Policy(), backoff.Options{DefaultTimeout: s.defaultDelay()})
	if err != nil {
		return nil, err
	}
	cons, err := consumer.New(s.transport.Queue, s.parser(), policy, consumer.Config{
		Limit:       s.Conf.Limit(),
		WaitSeconds: s.Conf.WaitSeconds,
	}, consumer.WithLogger(s.Logger))
	if err != nil {
		return nil, err
	}

	sinks := []dispatch.ResultSink{dispatch.LoggingSink{Logger: s.Logger}, s.stats}
	if s.Conf.MetricsEnabled {
		sinks = append(sinks, s.metrics)
	}
	opts := []dispatch.Option{
		dispatch.WithMaxProcessingAttempts(s.Conf.MaxProcessingAttempts),
		dispatch.WithSinks(append(sinks, s.sinks...)...),
		dispatch.WithLogger(s.Logger),
	}
	if s.tracer != nil {
		opts = append(opts, dispatch.WithTracer(s.tracer))
	}
	return dispatch.New(cons, dispatch.Active(s.handlers, active), opts...)
}

// Close releases the transport.
func (s *Service) Close() error {
	return s.transport.Close()
}

func (s *Service) activeHandlers() []string {
	if len(s.Conf.ActiveHandlers) == 0 {
		return nil
	}
	active := slices.Clone(s.Conf.ActiveHandlers)
	if !slices.Contains(active, BatchHandlerName) {
		active = append(active, BatchHandlerName)
	}
	return active
}

func (s *Service) defaultDelay() *int {
	if s.Conf.DefaultReprocessingDelay <= 0 {
		return nil
	}
	delay := s.Conf.DefaultReprocessingDelay
	return &delay
}

func (s *Service) parser() *envelope.Parser {
	var opts []envelope.Option
	if s.Conf.VerifyChecksum {
		opts = append(opts, envelope.WithChecksum())
	}
	switch s.Conf.Envelope() {
	case configpkg.EnvelopeBroker:
		return envelope.BrokerSchemaDriven(s.schemas, opts...)
	case configpkg.EnvelopeRaw:
		return envelope.PassThrough(opts...)
	default:
		return envelope.LocalSchemaDriven(s.schemas, opts...)
	}
}

func (s *Service) metricsHandler() http.Handler {
	if gatherer, ok := s.registerer.(prometheus.Gatherer); ok {
		return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

// RegisterHTTPHandler mounts handler on the server of port, started by Start.
func (s *Service) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	if s.httpServers == nil {
		s.httpServers = make(map[int]*http.ServeMux)
	}
	mux, ok := s.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		s.httpServers[port] = mux
	}
	mux.Handle(pattern, handler)
}

// startHTTPServers serves every registered port and returns a function that
// shuts them down.
func (s *Service) startHTTPServers() func() {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	servers := make([]*http.Server, 0, len(s.httpServers))
	for port, mux := range s.httpServers {
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		servers = append(servers, srv)
		s.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": srv.Addr})
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.Logger.Error("HTTP server stopped", err, loggingpkg.LogFields{"address": srv.Addr})
			}
		}()
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, srv := range servers {
			_ = srv.Shutdown(ctx)
		}
	}
}
