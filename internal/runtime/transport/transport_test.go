package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/mediaflow/internal/runtime/config"
	errspkg "github.com/drblury/mediaflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/mediaflow/internal/runtime/logging"
)

func TestBuildRequiresConfig(t *testing.T) {
	_, err := Build(context.Background(), nil, nil)
	assert.ErrorIs(t, err, errspkg.ErrConfigRequired)
}

func TestBuildUnknownTransport(t *testing.T) {
	_, err := Build(context.Background(), &config.Config{PubSubSystem: "carrier-pigeon"}, nil)
	assert.ErrorIs(t, err, errspkg.ErrUnknownTransport)
	assert.Contains(t, err.Error(), "carrier-pigeon")
}

func TestBuildDefaultsToMemory(t *testing.T) {
	tr, err := Build(context.Background(), &config.Config{}, nil)
	require.NoError(t, err)
	_, ok := tr.Queue.(*Memory)
	assert.True(t, ok, "expected memory queue, got %T", tr.Queue)
	assert.Same(t, tr.Queue, tr.Topics)
	require.NoError(t, tr.Close())
}

func TestRegisterCustomBuilder(t *testing.T) {
	mem := NewMemory()
	Register("custom-test", func(context.Context, *config.Config, loggingpkg.ServiceLogger) (Transport, error) {
		return Transport{Queue: mem, Topics: mem}, nil
	})
	t.Cleanup(func() {
		buildersMu.Lock()
		delete(builders, "custom-test")
		buildersMu.Unlock()
	})

	assert.Contains(t, Names(), "custom-test")
	tr, err := Build(context.Background(), &config.Config{PubSubSystem: "Custom-Test"}, loggingpkg.NopLogger())
	require.NoError(t, err)
	assert.Same(t, mem, tr.Queue)
}

func TestBuildWrapsBuilderErrors(t *testing.T) {
	boom := errors.New("boom")
	Register("failing-test", func(context.Context, *config.Config, loggingpkg.ServiceLogger) (Transport, error) {
		return Transport{}, boom
	})
	t.Cleanup(func() {
		buildersMu.Lock()
		delete(builders, "failing-test")
		buildersMu.Unlock()
	})

	_, err := Build(context.Background(), &config.Config{PubSubSystem: "failing-test"}, nil)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failing-test")
}

func TestNamesIncludesBuiltins(t *testing.T) {
	names := Names()
	for _, want := range []string{"aws", "channel", "http", "kafka", "memory", "nats", "postgres", "rabbitmq", "sqlite"} {
		assert.Contains(t, names, want)
	}
}

func TestTransportCloseRunsInReverse(t *testing.T) {
	var order []string
	var tr Transport
	tr.onClose(func() error { order = append(order, "first"); return nil })
	tr.onClose(func() error { order = append(order, "second"); return errors.New("second failed") })

	err := tr.Close()
	require.Error(t, err)
	assert.Equal(t, []string{"second", "first"}, order)
}
