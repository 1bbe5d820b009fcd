package runtime

import (
	"google.golang.org/protobuf/proto"

	"github.com/drblury/mediaflow/internal/runtime/codec"
	errspkg "github.com/drblury/mediaflow/internal/runtime/errors"
	"github.com/drblury/mediaflow/internal/runtime/handlers"
)

// RegisterSchema adds c to the service schema registry under its media type.
func RegisterSchema(svc *Service, c codec.Codec) error {
	if svc == nil {
		return errspkg.ErrServiceRequired
	}
	if c == nil {
		return errspkg.ErrCodecRequired
	}
	return svc.schemas.Register(c.MediaType(), c)
}

// RegisterHandler binds b to mediaType. The media type still needs a schema,
// registered explicitly or resolved by naming convention.
func RegisterHandler(svc *Service, mediaType string, b handlers.Binding) error {
	if svc == nil {
		return errspkg.ErrServiceRequired
	}
	return svc.handlers.Register(mediaType, b)
}

// JSONHandlerRegistration binds a typed JSON handler. With Fields set, a JSON
// codec of those fields is registered for MediaType as well.
type JSONHandlerRegistration[T any] struct {
	Name      string
	MediaType string
	Fields    []codec.Field
	Handler   handlers.JSONMessageHandler[T]
}

// RegisterJSONHandler adapts the typed handler and binds it.
func RegisterJSONHandler[T any](svc *Service, cfg JSONHandlerRegistration[T]) error {
	if svc == nil {
		return errspkg.ErrServiceRequired
	}
	h, err := handlers.JSON(cfg.Handler, svc.Logger)
	if err != nil {
		return err
	}
	if len(cfg.Fields) > 0 {
		if err := RegisterSchema(svc, codec.NewJSONCodec(cfg.MediaType, cfg.Fields...)); err != nil {
			return err
		}
	}
	return RegisterHandler(svc, cfg.MediaType, handlers.Bind(cfg.Name, h))
}

// ProtoHandlerRegistration binds a typed protobuf handler. The message type
// of T becomes the schema of MediaType.
type ProtoHandlerRegistration[T proto.Message] struct {
	Name      string
	MediaType string
	Handler   handlers.ProtoMessageHandler[T]
}

// RegisterProtoHandler registers a ProtoCodec for MediaType and binds the
// adapted handler.
func RegisterProtoHandler[T proto.Message](svc *Service, cfg ProtoHandlerRegistration[T]) error {
	if svc == nil {
		return errspkg.ErrServiceRequired
	}
	prototype, err := NewProtoMessage[T]()
	if err != nil {
		return err
	}
	h, err := handlers.Proto(prototype, cfg.Handler, svc.Logger)
	if err != nil {
		return err
	}
	if err := RegisterSchema(svc, codec.NewProtoCodec(cfg.MediaType, prototype)); err != nil {
		return err
	}
	return RegisterHandler(svc, cfg.MediaType, handlers.Bind(cfg.Name, h))
}
