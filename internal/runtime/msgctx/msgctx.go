// Package msgctx carries the per-message ambient context (hop count, correlation
// id, published-at stamp) through context.Context. The consumer derives it from
// a message's opaque data on receipt; the producer writes it back into the
// opaque data of every message it emits.
package msgctx

import (
	"context"
	"strconv"
	"time"

	"github.com/drblury/mediaflow/internal/runtime/ids"
	"github.com/drblury/mediaflow/internal/runtime/metadata"
)

const (
	TTLKey           = "X-Request-Ttl"
	PublishedAtKey   = "X-Request-Published"
	CorrelationIDKey = "X-Correlation-Id"

	// DefaultTTL is the hop budget of a message that does not carry one.
	DefaultTTL = 32
)

// MessageContext is the ambient state of the message currently being handled.
type MessageContext struct {
	TTL           int
	CorrelationID string
	PublishedAt   time.Time
}

type contextKey struct{}

// New returns a root context for work that did not originate from a message.
func New() MessageContext {
	return MessageContext{TTL: DefaultTTL}
}

// Received builds the context of an inbound message from its opaque data.
// The hop count is decremented once; a missing or malformed count starts
// from DefaultTTL.
func Received(md metadata.Metadata) MessageContext {
	mc := MessageContext{TTL: DefaultTTL, CorrelationID: md[CorrelationIDKey]}
	if raw, ok := md[TTLKey]; ok {
		if ttl, err := strconv.Atoi(raw); err == nil {
			mc.TTL = ttl
		}
	}
	mc.TTL--
	if raw := md[PublishedAtKey]; raw != "" {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			mc.PublishedAt = ts
		}
	}
	return mc
}

// Expired reports whether the hop budget is spent.
func (mc MessageContext) Expired() bool {
	return mc.TTL <= 0
}

// SincePublished returns the time elapsed since the message was first
// published, or false when no published-at stamp was carried.
func (mc MessageContext) SincePublished(now time.Time) (time.Duration, bool) {
	if mc.PublishedAt.IsZero() {
		return 0, false
	}
	return now.Sub(mc.PublishedAt), true
}

// OpaqueData renders the context for an outbound message: the current hop
// count, the correlation id (generated when absent) and a fresh published-at
// stamp.
func (mc MessageContext) OpaqueData(now time.Time) metadata.Metadata {
	correlationID := mc.CorrelationID
	if correlationID == "" {
		correlationID = ids.CreateULIDAt(now)
	}
	return metadata.Metadata{
		TTLKey:           strconv.Itoa(mc.TTL),
		CorrelationIDKey: correlationID,
		PublishedAtKey:   now.UTC().Format(time.RFC3339Nano),
	}
}

// With stores mc in ctx.
func With(ctx context.Context, mc MessageContext) context.Context {
	return context.WithValue(ctx, contextKey{}, mc)
}

// FromContext returns the message context stored in ctx.
func FromContext(ctx context.Context) (MessageContext, bool) {
	mc, ok := ctx.Value(contextKey{}).(MessageContext)
	return mc, ok
}

// FromContextOrNew returns the stored message context or a fresh root one.
func FromContextOrNew(ctx context.Context) MessageContext {
	if mc, ok := FromContext(ctx); ok {
		return mc
	}
	return New()
}
