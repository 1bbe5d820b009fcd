// Package handlers maps media types to the application handlers that process
// them, and narrows that map to the handlers active in the current process.
package handlers

import (
	"context"

	"github.com/drblury/mediaflow/internal/runtime/codec"
)

// Handler processes the decoded content of one message. Returning true means
// the message was handled; false means the handler declined it. Errors are
// classified by the dispatcher (see the result package for the signals).
type Handler interface {
	Handle(ctx context.Context, content codec.Fields) (bool, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, content codec.Fields) (bool, error)

func (f HandlerFunc) Handle(ctx context.Context, content codec.Fields) (bool, error) {
	return f(ctx, content)
}

// Factory builds a fresh Handler for every lookup.
type Factory func() Handler

// Binding attaches a handler to a media type under a name. The name is what
// the active-binding configuration refers to. Exactly one of Handler and
// Factory is set.
type Binding struct {
	Name    string
	Handler Handler
	Factory Factory
}

// Bind returns an instance binding.
func Bind(name string, h Handler) Binding {
	return Binding{Name: name, Handler: h}
}

// BindFunc returns an instance binding for a plain function.
func BindFunc(name string, fn func(ctx context.Context, content codec.Fields) (bool, error)) Binding {
	return Binding{Name: name, Handler: HandlerFunc(fn)}
}

// BindFactory returns a binding that instantiates its handler per lookup.
func BindFactory(name string, f Factory) Binding {
	return Binding{Name: name, Factory: f}
}

func (b Binding) instance() Handler {
	if b.Factory != nil {
		return b.Factory()
	}
	return b.Handler
}
