package mediaflow

import (
	"context"

	"google.golang.org/protobuf/proto"

	runtimepkg "github.com/drblury/mediaflow/internal/runtime"
	backoffpkg "github.com/drblury/mediaflow/internal/runtime/backoff"
	codecpkg "github.com/drblury/mediaflow/internal/runtime/codec"
	configpkg "github.com/drblury/mediaflow/internal/runtime/config"
	dispatchpkg "github.com/drblury/mediaflow/internal/runtime/dispatch"
	errspkg "github.com/drblury/mediaflow/internal/runtime/errors"
	handlerpkg "github.com/drblury/mediaflow/internal/runtime/handlers"
	idspkg "github.com/drblury/mediaflow/internal/runtime/ids"
	jsoncodec "github.com/drblury/mediaflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/mediaflow/internal/runtime/logging"
	mediatypepkg "github.com/drblury/mediaflow/internal/runtime/mediatype"
	metadatapkg "github.com/drblury/mediaflow/internal/runtime/metadata"
	msgctxpkg "github.com/drblury/mediaflow/internal/runtime/msgctx"
	producerpkg "github.com/drblury/mediaflow/internal/runtime/producer"
	resultpkg "github.com/drblury/mediaflow/internal/runtime/result"
	transportpkg "github.com/drblury/mediaflow/internal/runtime/transport"
)

type (
	Config              = configpkg.Config
	Service             = runtimepkg.Service
	ServiceDependencies = runtimepkg.ServiceDependencies
	Transport           = transportpkg.Transport
	TransportBuilder    = transportpkg.Builder

	Fields         = codecpkg.Fields
	Codec          = codecpkg.Codec
	Field          = codecpkg.Field
	FieldType      = codecpkg.FieldType
	JSONCodec      = codecpkg.JSONCodec
	ProtoCodec     = codecpkg.ProtoCodec
	SchemaRegistry = codecpkg.Registry

	Handler                                   = handlerpkg.Handler
	HandlerFunc                               = handlerpkg.HandlerFunc
	HandlerFactory                            = handlerpkg.Factory
	Binding                                   = handlerpkg.Binding
	HandlerRegistry                           = handlerpkg.Registry
	MessageContextBase                        = handlerpkg.MessageContextBase
	JSONHandlerRegistration[T any]            = runtimepkg.JSONHandlerRegistration[T]
	JSONMessageContext[T any]                 = handlerpkg.JSONMessageContext[T]
	JSONMessageHandler[T any]                 = handlerpkg.JSONMessageHandler[T]
	ProtoHandlerRegistration[T proto.Message] = runtimepkg.ProtoHandlerRegistration[T]
	ProtoMessageContext[T proto.Message]      = handlerpkg.ProtoMessageContext[T]
	ProtoMessageHandler[T proto.Message]      = handlerpkg.ProtoMessageHandler[T]

	Producer  = producerpkg.Producer
	Publisher = producerpkg.Publisher
	Deferred  = producerpkg.Deferred

	Dispatcher            = dispatchpkg.Dispatcher
	ResultSink            = dispatchpkg.ResultSink
	ResultSinkFunc        = dispatchpkg.ResultSinkFunc
	MessageHandlingResult = resultpkg.MessageHandlingResult
	OutcomeKind           = resultpkg.Kind

	BackoffPolicy  = backoffpkg.Policy
	BackoffOptions = backoffpkg.Options

	MessageContext = msgctxpkg.MessageContext
	MediaType      = mediatypepkg.MediaType
	Metadata       = metadatapkg.Metadata

	MediaTypeStats = runtimepkg.MediaTypeStats
	HandlersReport = runtimepkg.HandlersReport

	LogFields                 = loggingpkg.LogFields
	ServiceLogger             = loggingpkg.ServiceLogger
	EntryLoggerAdapter[T any] = loggingpkg.EntryLoggerAdapter[T]

	ConfigValidationError = errspkg.ConfigValidationError
	ValidationError       = errspkg.ValidationError
	TopicNotDefinedError  = errspkg.TopicNotDefinedError
	AmbiguousHandlerError = errspkg.AmbiguousHandlerError
	SkipError             = resultpkg.SkipError
	RetryError            = resultpkg.RetryError
)

// Outcome kinds.
const (
	Succeeded = resultpkg.Succeeded
	Skipped   = resultpkg.Skipped
	Ignored   = resultpkg.Ignored
	Retried   = resultpkg.Retried
	Expired   = resultpkg.Expired
	Failed    = resultpkg.Failed
)

// Field types of JSON codecs.
const (
	AnyField    = codecpkg.Any
	StringField = codecpkg.String
	IntField    = codecpkg.Int
	FloatField  = codecpkg.Float
	BoolField   = codecpkg.Bool
	ObjectField = codecpkg.Object
	ArrayField  = codecpkg.Array
)

const (
	BatchMediaType   = mediatypepkg.Batch
	BatchHandlerName = runtimepkg.BatchHandlerName
	DefaultTTL       = msgctxpkg.DefaultTTL
)

var (
	NewService     = runtimepkg.NewService
	TryNewService  = runtimepkg.TryNewService
	LoadConfig     = configpkg.Load
	ValidateConfig = configpkg.ValidateConfig

	RegisterSchema     = runtimepkg.RegisterSchema
	RegisterHandler    = runtimepkg.RegisterHandler
	Bind               = handlerpkg.Bind
	BindFunc           = handlerpkg.BindFunc
	BindFactory        = handlerpkg.BindFactory
	NewSchemaRegistry  = codecpkg.NewRegistry
	NewHandlerRegistry = handlerpkg.NewRegistry

	NewJSONCodec  = codecpkg.NewJSONCodec
	NewProtoCodec = codecpkg.NewProtoCodec
	Required      = codecpkg.Required
	Optional      = codecpkg.Optional

	FieldsFromProto = runtimepkg.FieldsFromProto
	ProduceProto    = runtimepkg.ProduceProto

	ParseMediaType = mediatypepkg.Parse
	MediaTypeFor   = mediatypepkg.For

	NewMessageContext  = msgctxpkg.New
	WithMessageContext = msgctxpkg.With
	MessageContextFrom = msgctxpkg.FromContextOrNew

	RegisterBackoffPolicy = backoffpkg.Register
	NewBackoffPolicy      = backoffpkg.New
	RegisterTransport     = transportpkg.Register
	TransportNames        = transportpkg.Names

	Skip       = resultpkg.Skip
	RetryAfter = resultpkg.RetryAfter

	ErrIgnore           = resultpkg.ErrIgnore
	ErrSkip             = resultpkg.ErrSkip
	ErrRetry            = resultpkg.ErrRetry
	ErrHopLimitExceeded = resultpkg.ErrHopLimitExceeded

	ErrServiceRequired     = errspkg.ErrServiceRequired
	ErrConfigRequired      = errspkg.ErrConfigRequired
	ErrLoggerRequired      = errspkg.ErrLoggerRequired
	ErrHandlerRequired     = errspkg.ErrHandlerRequired
	ErrHandlerNameRequired = errspkg.ErrHandlerNameRequired
	ErrMediaTypeRequired   = errspkg.ErrMediaTypeRequired
	ErrSchemaNotFound      = errspkg.ErrSchemaNotFound
	ErrHandlerNotFound     = errspkg.ErrHandlerNotFound
	ErrMessageResolved     = errspkg.ErrMessageResolved
	ErrUnknownTransport    = errspkg.ErrUnknownTransport
	ErrUnknownPolicy       = errspkg.ErrUnknownPolicy

	Marshal   = jsoncodec.Marshal
	Unmarshal = jsoncodec.Unmarshal

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	NopLogger                 = loggingpkg.NopLogger

	NewMetadata = metadatapkg.New
	CreateULID  = idspkg.CreateULID
)

func RegisterJSONHandler[T any](svc *Service, cfg JSONHandlerRegistration[T]) error {
	return runtimepkg.RegisterJSONHandler(svc, cfg)
}

func RegisterProtoHandler[T proto.Message](svc *Service, cfg ProtoHandlerRegistration[T]) error {
	return runtimepkg.RegisterProtoHandler(svc, cfg)
}

func NewProtoMessage[T proto.Message]() (T, error) {
	return runtimepkg.NewProtoMessage[T]()
}

func MustProtoMessage[T proto.Message]() T {
	return runtimepkg.MustProtoMessage[T]()
}

func NewEntryServiceLogger[T EntryLoggerAdapter[T]](entry T) ServiceLogger {
	return loggingpkg.NewEntryServiceLogger(entry)
}

// WithCorrelationID returns ctx carrying a message context with the given
// correlation id, so messages produced under ctx share it.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	mc := msgctxpkg.FromContextOrNew(ctx)
	mc.CorrelationID = correlationID
	return msgctxpkg.With(ctx, mc)
}
