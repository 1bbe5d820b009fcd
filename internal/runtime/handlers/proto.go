package handlers

import (
	"context"
	"fmt"
	"reflect"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/drblury/mediaflow/internal/runtime/codec"
	errspkg "github.com/drblury/mediaflow/internal/runtime/errors"
	jsoncodec "github.com/drblury/mediaflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/mediaflow/internal/runtime/logging"
)

var protoUnmarshal = protojson.UnmarshalOptions{DiscardUnknown: true}

// ProtoMessageContext provides strongly typed access to the decoded content.
type ProtoMessageContext[T proto.Message] struct {
	MessageContextBase
	Payload T
}

// ProtoMessageHandler processes a typed protobuf payload.
type ProtoMessageHandler[T proto.Message] func(ctx context.Context, msg ProtoMessageContext[T]) (bool, error)

// Proto adapts a typed protobuf handler to Handler. prototype only supplies
// the message type; every call gets a fresh message.
func Proto[T proto.Message](prototype T, handler ProtoMessageHandler[T], logger loggingpkg.ServiceLogger) (Handler, error) {
	if handler == nil {
		return nil, errspkg.ErrHandlerRequired
	}
	prototype, err := EnsureProtoPrototype(prototype)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = loggingpkg.NopLogger()
	}

	return HandlerFunc(func(ctx context.Context, content codec.Fields) (bool, error) {
		data, err := jsoncodec.Marshal(payloadOf(content))
		if err != nil {
			return false, fmt.Errorf("failed to marshal %s content: %w", content.MediaType(), err)
		}
		typed, ok := prototype.ProtoReflect().New().Interface().(T)
		if !ok {
			return false, fmt.Errorf("mediaflow: cannot instantiate %T", prototype)
		}
		if err := protoUnmarshal.Unmarshal(data, typed); err != nil {
			return false, fmt.Errorf("failed to unmarshal %s content into %T: %w", content.MediaType(), prototype, err)
		}
		return handler(ctx, ProtoMessageContext[T]{
			MessageContextBase: baseOf(content, logger),
			Payload:            typed,
		})
	}), nil
}

// EnsureProtoPrototype instantiates typed nil prototypes so callers can pass
// (*pb.Order)(nil).
func EnsureProtoPrototype[T proto.Message](candidate T) (T, error) {
	var zero T
	typ := reflect.TypeOf(candidate)
	if typ == nil {
		return zero, fmt.Errorf("mediaflow: proto prototype is required")
	}
	if typ.Kind() != reflect.Ptr || !reflect.ValueOf(candidate).IsNil() {
		return candidate, nil
	}
	typed, ok := reflect.New(typ.Elem()).Interface().(T)
	if !ok {
		return zero, fmt.Errorf("mediaflow: unexpected prototype type %s", typ)
	}
	return typed, nil
}
