package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/drblury/mediaflow/internal/runtime/result"
)

// PrometheusSink exports dispatch results as Prometheus metrics.
type PrometheusSink struct {
	mu sync.Mutex

	messagesTotal       *prometheus.CounterVec
	handlingSeconds     *prometheus.HistogramVec
	sincePublished      *prometheus.HistogramVec
	retryTimeoutSeconds *prometheus.HistogramVec

	registerer prometheus.Registerer
	registered bool
}

func newCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mediaflow",
			Subsystem: "dispatch",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newHistogramVec(name, help string, buckets []float64, labels []string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mediaflow",
			Subsystem: "dispatch",
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		},
		labels,
	)
}

// NewPrometheusSink creates the collectors. Call Register before use.
func NewPrometheusSink(registerer prometheus.Registerer) *PrometheusSink {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &PrometheusSink{
		registerer:          registerer,
		messagesTotal:       newCounterVec("messages_total", "Messages dispatched, by media type and outcome", []string{"media_type", "outcome"}),
		handlingSeconds:     newHistogramVec("handling_seconds", "Time spent handling a message", prometheus.DefBuckets, []string{"media_type", "outcome"}),
		sincePublished:      newHistogramVec("since_published_seconds", "Time between publication and the end of handling", []float64{0.1, 0.5, 1, 5, 30, 60, 300, 1800, 3600, 43200}, []string{"media_type"}),
		retryTimeoutSeconds: newHistogramVec("retry_timeout_seconds", "Explicit retry delays requested by handlers", []float64{1, 2, 5, 10, 30, 60, 300, 900, 3600}, []string{"media_type"}),
	}
}

// Register registers the collectors. Safe to call multiple times.
func (m *PrometheusSink) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}
	if err := registerCounterVec(m.registerer, &m.messagesTotal); err != nil {
		return err
	}
	for _, h := range []**prometheus.HistogramVec{&m.handlingSeconds, &m.sincePublished, &m.retryTimeoutSeconds} {
		if err := registerHistogramVec(m.registerer, h); err != nil {
			return err
		}
	}
	m.registered = true
	return nil
}

// registerCounterVec registers *c, adopting the collector already registered
// under the same descriptor so every sink sharing a registerer records into
// the exported series.
func registerCounterVec(registerer prometheus.Registerer, c **prometheus.CounterVec) error {
	err := registerer.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return err
	}
	existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
	if !ok {
		return fmt.Errorf("mediaflow: collector %T already registered under the same name", are.ExistingCollector)
	}
	*c = existing
	return nil
}

func registerHistogramVec(registerer prometheus.Registerer, h **prometheus.HistogramVec) error {
	err := registerer.Register(*h)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return err
	}
	existing, ok := are.ExistingCollector.(*prometheus.HistogramVec)
	if !ok {
		return fmt.Errorf("mediaflow: collector %T already registered under the same name", are.ExistingCollector)
	}
	*h = existing
	return nil
}

func (m *PrometheusSink) Observe(_ context.Context, r result.MessageHandlingResult) {
	outcome := string(r.Kind)
	m.messagesTotal.WithLabelValues(r.MediaType, outcome).Inc()
	m.handlingSeconds.WithLabelValues(r.MediaType, outcome).Observe(r.Elapsed.Seconds())
	if r.SincePublished != nil {
		m.sincePublished.WithLabelValues(r.MediaType).Observe(r.SincePublished.Seconds())
	}
	if r.RetryTimeout != nil {
		m.retryTimeoutSeconds.WithLabelValues(r.MediaType).Observe(float64(*r.RetryTimeout))
	}
}
