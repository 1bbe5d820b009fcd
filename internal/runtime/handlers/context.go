package handlers

import (
	loggingpkg "github.com/drblury/mediaflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/mediaflow/internal/runtime/metadata"
	"github.com/drblury/mediaflow/internal/runtime/msgctx"
)

// MessageContextBase carries what typed handlers see besides their payload.
type MessageContextBase struct {
	MediaType  string
	OpaqueData metadatapkg.Metadata
	Logger     loggingpkg.ServiceLogger
}

// CloneOpaqueData returns a copy of the inbound opaque data so handlers can
// derive outbound opaque data without touching the original map.
func (b MessageContextBase) CloneOpaqueData() metadatapkg.Metadata {
	return b.OpaqueData.Clone()
}

// Get retrieves an opaque data value by key.
func (b MessageContextBase) Get(key string) string {
	return b.OpaqueData[key]
}

// CorrelationID returns the correlation id carried by the message, if any.
func (b MessageContextBase) CorrelationID() string {
	return b.OpaqueData[msgctx.CorrelationIDKey]
}
