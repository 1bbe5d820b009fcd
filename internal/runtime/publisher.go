package runtime

import (
	"context"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/drblury/mediaflow/internal/runtime/codec"
	errspkg "github.com/drblury/mediaflow/internal/runtime/errors"
	"github.com/drblury/mediaflow/internal/runtime/jsoncodec"
	"github.com/drblury/mediaflow/internal/runtime/producer"
)

var protoJSONMarshalOptions = protojson.MarshalOptions{
	EmitUnpopulated: true,
}

// FieldsFromProto renders event in its protojson mapping as message fields.
func FieldsFromProto(event proto.Message) (codec.Fields, error) {
	if event == nil {
		return nil, fmt.Errorf("mediaflow: proto event is required")
	}
	payload, err := protoJSONMarshalOptions.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	obj, err := jsoncodec.DecodeObject(string(payload))
	if err != nil {
		return nil, err
	}
	return codec.Fields(obj), nil
}

// ProduceProto publishes event as mediaType through publisher, which may be
// the service producer or a deferred scope.
func ProduceProto(ctx context.Context, publisher producer.Publisher, mediaType string, event proto.Message) (string, error) {
	if publisher == nil {
		return "", errspkg.ErrTopicsRequired
	}
	fields, err := FieldsFromProto(event)
	if err != nil {
		return "", err
	}
	return publisher.Produce(ctx, mediaType, fields)
}

// ProduceProto publishes event through the service producer.
func (s *Service) ProduceProto(ctx context.Context, mediaType string, event proto.Message) (string, error) {
	if s == nil {
		return "", errspkg.ErrServiceRequired
	}
	return ProduceProto(ctx, s.producer, mediaType, event)
}
