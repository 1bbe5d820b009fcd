package transport

import (
	"context"
	"sync"
	"time"

	"github.com/drblury/mediaflow/internal/runtime/config"
	"github.com/drblury/mediaflow/internal/runtime/consumer"
	"github.com/drblury/mediaflow/internal/runtime/envelope"
	errspkg "github.com/drblury/mediaflow/internal/runtime/errors"
	"github.com/drblury/mediaflow/internal/runtime/ids"
	loggingpkg "github.com/drblury/mediaflow/internal/runtime/logging"
)

// DefaultVisibilityTimeout hides a received message until it is deleted or
// its visibility is changed.
const DefaultVisibilityTimeout = 30 * time.Second

const memoryPollInterval = 20 * time.Millisecond

// Memory is an in-process loopback: every published body lands in one queue
// with SQS-like visibility timeouts and receive counts.
type Memory struct {
	mu         sync.Mutex
	items      []*memoryItem
	byHandle   map[string]*memoryItem
	notify     chan struct{}
	visibility time.Duration
	now        func() time.Time
	closed     bool
}

type memoryItem struct {
	id        string
	topic     string
	body      string
	handle    string
	visibleAt time.Time
	receives  int
}

// MemoryOption customizes a Memory queue.
type MemoryOption func(*Memory)

// WithVisibilityTimeout sets how long received messages stay hidden.
func WithVisibilityTimeout(d time.Duration) MemoryOption {
	return func(m *Memory) {
		m.visibility = d
	}
}

// WithMemoryClock overrides time.Now, for tests.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// NewMemory returns an empty loopback queue.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		byHandle:   make(map[string]*memoryItem),
		notify:     make(chan struct{}),
		visibility: DefaultVisibilityTimeout,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func memoryTransport(_ context.Context, _ *config.Config, logger loggingpkg.ServiceLogger) (Transport, error) {
	m := NewMemory()
	logger.Info("Using in-memory loopback transport", nil)
	t := Transport{Queue: m, Topics: m}
	t.onClose(m.Close)
	return t, nil
}

// Publish enqueues body. The topic is recorded but does not partition the
// queue.
func (m *Memory) Publish(_ context.Context, topic, body string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", errspkg.ErrTransportClosed
	}
	item := &memoryItem{id: ids.CreateULID(), topic: topic, body: body, visibleAt: m.now()}
	m.items = append(m.items, item)
	m.signalLocked()
	return item.id, nil
}

func (m *Memory) Receive(ctx context.Context, maxMessages, waitSeconds int32) ([]consumer.RawMessage, error) {
	deadline := m.now().Add(time.Duration(waitSeconds) * time.Second)
	for {
		raws, notify, err := m.take(int(maxMessages))
		if err != nil || len(raws) > 0 || !m.now().Before(deadline) {
			return raws, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-notify:
		case <-time.After(memoryPollInterval):
		}
	}
}

func (m *Memory) take(limit int) ([]consumer.RawMessage, <-chan struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, nil, errspkg.ErrTransportClosed
	}

	now := m.now()
	var raws []consumer.RawMessage
	for _, item := range m.items {
		if len(raws) == limit {
			break
		}
		if item.visibleAt.After(now) {
			continue
		}
		if item.handle != "" {
			delete(m.byHandle, item.handle)
		}
		item.receives++
		item.handle = ids.CreateULID()
		item.visibleAt = now.Add(m.visibility)
		m.byHandle[item.handle] = item
		raws = append(raws, consumer.RawMessage{
			ID:                      item.id,
			ReceiptHandle:           item.handle,
			Body:                    item.body,
			Checksum:                envelope.Checksum(item.body),
			ApproximateReceiveCount: item.receives,
		})
	}
	return raws, m.notify, nil
}

func (m *Memory) Delete(_ context.Context, receiptHandle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.byHandle[receiptHandle]
	if !ok {
		return errspkg.ErrInvalidReceiptHandle
	}
	delete(m.byHandle, receiptHandle)
	for i, candidate := range m.items {
		if candidate == item {
			m.items = append(m.items[:i], m.items[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) ChangeVisibility(_ context.Context, receiptHandle string, timeoutSeconds int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errspkg.ErrTransportClosed
	}
	item, ok := m.byHandle[receiptHandle]
	if !ok {
		return errspkg.ErrInvalidReceiptHandle
	}
	item.visibleAt = m.now().Add(time.Duration(timeoutSeconds) * time.Second)
	m.signalLocked()
	return nil
}

// Len returns the number of messages not yet deleted, visible or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Topics returns the topic of every queued message in publication order.
func (m *Memory) Topics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.items))
	for _, item := range m.items {
		out = append(out, item.topic)
	}
	return out
}

// Close makes further calls fail.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.notify)
	}
	return nil
}

func (m *Memory) signalLocked() {
	close(m.notify)
	m.notify = make(chan struct{})
}
