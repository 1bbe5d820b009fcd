package codec

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	errspkg "github.com/drblury/mediaflow/internal/runtime/errors"
	"github.com/drblury/mediaflow/internal/runtime/jsoncodec"
	"github.com/drblury/mediaflow/internal/runtime/metadata"
)

var (
	protoStrict = protojson.UnmarshalOptions{}
	protoLoose  = protojson.UnmarshalOptions{DiscardUnknown: true}
	protoOut    = protojson.MarshalOptions{}
)

// ProtoCodec validates message fields against a protobuf message using the
// protojson mapping. Encode rejects unknown fields; Decode ignores them.
type ProtoCodec struct {
	mediaType string
	prototype proto.Message
}

// NewProtoCodec returns a codec for mediaType whose schema is the message type
// of prototype.
func NewProtoCodec(mediaType string, prototype proto.Message) *ProtoCodec {
	return &ProtoCodec{mediaType: mediaType, prototype: prototype}
}

func (c *ProtoCodec) MediaType() string {
	return c.mediaType
}

func (c *ProtoCodec) newMessage() proto.Message {
	return c.prototype.ProtoReflect().New().Interface()
}

// Equal treats codecs of the same media type and message type as identical.
func (c *ProtoCodec) Equal(other Codec) bool {
	o, ok := other.(*ProtoCodec)
	if !ok {
		return false
	}
	return c.mediaType == o.mediaType &&
		c.prototype.ProtoReflect().Descriptor().FullName() == o.prototype.ProtoReflect().Descriptor().FullName()
}

func (c *ProtoCodec) Encode(fields Fields) (string, error) {
	msg, err := c.parse(fields, protoStrict)
	if err != nil {
		return "", err
	}
	out, err := c.render(msg)
	if err != nil {
		return "", err
	}
	out[KeyMediaType] = c.mediaType
	if md := fields.OpaqueData(); len(md) > 0 {
		out[KeyOpaqueData] = md.ToAny()
	}
	return jsoncodec.MarshalToString(out)
}

func (c *ProtoCodec) Decode(body string) (Fields, error) {
	raw, err := jsoncodec.DecodeObject(body)
	if err != nil {
		return nil, &errspkg.ValidationError{MediaType: c.mediaType, Reason: "is not a JSON object", Cause: err}
	}
	msg, err := c.parse(Fields(raw), protoLoose)
	if err != nil {
		return nil, err
	}
	out, err := c.render(msg)
	if err != nil {
		return nil, err
	}
	out[KeyMediaType] = c.mediaType
	md, ok := metadata.FromAny(raw[KeyOpaqueData])
	if !ok {
		return nil, &errspkg.ValidationError{MediaType: c.mediaType, Field: KeyOpaqueData, Reason: "must be an object"}
	}
	out[KeyOpaqueData] = md
	return out, nil
}

// Message converts decoded fields back into a typed protobuf message.
func (c *ProtoCodec) Message(fields Fields) (proto.Message, error) {
	return c.parse(fields, protoLoose)
}

func (c *ProtoCodec) parse(fields Fields, opts protojson.UnmarshalOptions) (proto.Message, error) {
	payload := fields.Clone()
	delete(payload, KeyMediaType)
	delete(payload, KeyOpaqueData)

	data, err := jsoncodec.Marshal(payload)
	if err != nil {
		return nil, &errspkg.ValidationError{MediaType: c.mediaType, Reason: "cannot be serialized", Cause: err}
	}
	msg := c.newMessage()
	if err := opts.Unmarshal(data, msg); err != nil {
		return nil, &errspkg.ValidationError{MediaType: c.mediaType, Reason: "does not match " + string(msg.ProtoReflect().Descriptor().FullName()), Cause: err}
	}
	return msg, nil
}

func (c *ProtoCodec) render(msg proto.Message) (Fields, error) {
	data, err := protoOut.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("mediaflow: marshal %s: %w", msg.ProtoReflect().Descriptor().FullName(), err)
	}
	var out map[string]any
	if err := jsoncodec.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return Fields(out), nil
}
