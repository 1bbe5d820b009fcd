// Package codec holds the per-media-type encoders and the schema registry
// that maps media types to them.
package codec

import (
	"github.com/drblury/mediaflow/internal/runtime/metadata"
)

// Wire keys shared by every message body.
const (
	KeyMediaType  = "mediaType"
	KeyOpaqueData = "opaqueData"
)

// Fields is the decoded content of a message, or the input of an encode.
type Fields map[string]any

// MediaType returns the mediaType entry, if any.
func (f Fields) MediaType() string {
	s, _ := f[KeyMediaType].(string)
	return s
}

// OpaqueData returns the opaque data carried in the fields. Decoded content
// always stores it as metadata.Metadata; encode input may use any string-keyed
// map.
func (f Fields) OpaqueData() metadata.Metadata {
	md, ok := metadata.FromAny(f[KeyOpaqueData])
	if !ok {
		return metadata.Metadata{}
	}
	return md
}

// String returns the named string field.
func (f Fields) String(name string) string {
	s, _ := f[name].(string)
	return s
}

// Clone returns a shallow copy.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Codec encodes and decodes the messages of exactly one media type.
// Encode validates its input and emits a JSON body carrying mediaType.
// Decode ignores unknown fields and fails on missing required ones.
type Codec interface {
	MediaType() string
	Encode(fields Fields) (string, error)
	Decode(body string) (Fields, error)
}

// Equaler lets codecs define what an identical re-registration is.
type Equaler interface {
	Equal(other Codec) bool
}
