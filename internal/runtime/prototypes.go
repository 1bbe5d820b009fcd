package runtime

import (
	"google.golang.org/protobuf/proto"

	"github.com/drblury/mediaflow/internal/runtime/handlers"
)

// NewProtoMessage instantiates an empty protobuf message of type T.
func NewProtoMessage[T proto.Message]() (T, error) {
	var zero T
	return handlers.EnsureProtoPrototype(zero)
}

// MustProtoMessage is NewProtoMessage panicking on failure.
func MustProtoMessage[T proto.Message]() T {
	msg, err := NewProtoMessage[T]()
	if err != nil {
		panic(err)
	}
	return msg
}
