package codec

import (
	"github.com/drblury/mediaflow/internal/runtime/mediatype"
)

// Resolver synthesizes a codec for a media type that was never registered,
// or returns nil when no convention applies.
type Resolver func(mediaType string) Codec

// URIField and IDField are the key fields of convention codecs.
const (
	URIField = "uri"
	IDField  = "id"
)

// ConventionResolver derives codecs from the lifecycle part of a media type:
// created and changed messages are keyed by a required uri, deleted messages
// by a required id (with an optional uri). Anything else yields nil.
func ConventionResolver(mediaType string) Codec {
	lifecycle, ok := mediatype.LifecycleOf(mediaType)
	if !ok {
		return nil
	}
	switch lifecycle {
	case mediatype.Created, mediatype.Changed:
		return NewJSONCodec(mediaType, Required(URIField, String))
	case mediatype.Deleted:
		return NewJSONCodec(mediaType, Required(IDField, String), Optional(URIField, String))
	}
	return nil
}

// Batch field names.
const (
	BatchMessagesField = "messages"
	BatchMessageField  = "message"
	BatchTopicField    = "topic"
)

// BatchMessageCodec returns the codec of batch wrapper messages:
// {mediaType, messages: [{mediaType, message, topic, opaqueData}]}.
func BatchMessageCodec() Codec {
	return NewJSONCodec(mediatype.Batch, Required(BatchMessagesField, Array))
}
