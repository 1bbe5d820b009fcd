package consumer

import (
	"context"
	"sync/atomic"

	"github.com/drblury/mediaflow/internal/runtime/codec"
	"github.com/drblury/mediaflow/internal/runtime/metadata"
	"github.com/drblury/mediaflow/internal/runtime/msgctx"
)

// Message is one parsed queue item. Content is nil when no schema exists for
// MediaType. A Message must be resolved exactly once, by Ack or Nack.
type Message struct {
	ID                      string
	ReceiptHandle           string
	MediaType               string
	Content                 codec.Fields
	OpaqueData              metadata.Metadata
	ApproximateReceiveCount int
	// Context is derived from OpaqueData on receipt, hop count already
	// decremented.
	Context msgctx.MessageContext

	consumer *Consumer
	resolved atomic.Bool
}

// Ack deletes the message from the queue.
func (m *Message) Ack(ctx context.Context) error {
	return m.consumer.Ack(ctx, m)
}

// Nack returns the message to the queue; explicit overrides the backoff
// policy when non-nil.
func (m *Message) Nack(ctx context.Context, explicit *int) error {
	return m.consumer.Nack(ctx, m, explicit)
}

// Resolved reports whether Ack or Nack was already called.
func (m *Message) Resolved() bool {
	return m.resolved.Load()
}

func (m *Message) resolve() bool {
	return m.resolved.CompareAndSwap(false, true)
}
