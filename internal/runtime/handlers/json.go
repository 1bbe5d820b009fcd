package handlers

import (
	"context"
	"fmt"

	"github.com/drblury/mediaflow/internal/runtime/codec"
	errspkg "github.com/drblury/mediaflow/internal/runtime/errors"
	jsoncodec "github.com/drblury/mediaflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/mediaflow/internal/runtime/logging"
)

// JSONMessageContext exposes the decoded content of a message as T.
type JSONMessageContext[T any] struct {
	MessageContextBase
	Payload T
}

// JSONMessageHandler processes a typed payload.
type JSONMessageHandler[T any] func(ctx context.Context, msg JSONMessageContext[T]) (bool, error)

// JSON adapts a typed handler to Handler. The decoded content is re-encoded
// and unmarshalled into T, so T uses ordinary json struct tags.
func JSON[T any](handler JSONMessageHandler[T], logger loggingpkg.ServiceLogger) (Handler, error) {
	if handler == nil {
		return nil, errspkg.ErrHandlerRequired
	}
	if logger == nil {
		logger = loggingpkg.NopLogger()
	}

	return HandlerFunc(func(ctx context.Context, content codec.Fields) (bool, error) {
		data, err := jsoncodec.Marshal(payloadOf(content))
		if err != nil {
			return false, fmt.Errorf("failed to marshal %s content: %w", content.MediaType(), err)
		}
		var payload T
		if err := jsoncodec.Unmarshal(data, &payload); err != nil {
			return false, fmt.Errorf("failed to unmarshal %s content into %T: %w", content.MediaType(), payload, err)
		}
		return handler(ctx, JSONMessageContext[T]{
			MessageContextBase: baseOf(content, logger),
			Payload:            payload,
		})
	}), nil
}

func payloadOf(content codec.Fields) codec.Fields {
	payload := content.Clone()
	delete(payload, codec.KeyMediaType)
	delete(payload, codec.KeyOpaqueData)
	return payload
}

func baseOf(content codec.Fields, logger loggingpkg.ServiceLogger) MessageContextBase {
	mediaType := content.MediaType()
	return MessageContextBase{
		MediaType:  mediaType,
		OpaqueData: content.OpaqueData(),
		Logger:     logger.With(loggingpkg.LogFields{"media_type": mediaType}),
	}
}
