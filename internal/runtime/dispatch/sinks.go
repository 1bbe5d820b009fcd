package dispatch

import (
	"context"

	loggingpkg "github.com/drblury/mediaflow/internal/runtime/logging"
	"github.com/drblury/mediaflow/internal/runtime/result"
)

// ResultSink observes the result of every dispatched message.
type ResultSink interface {
	Observe(ctx context.Context, r result.MessageHandlingResult)
}

// ResultSinkFunc adapts a function to ResultSink.
type ResultSinkFunc func(ctx context.Context, r result.MessageHandlingResult)

func (f ResultSinkFunc) Observe(ctx context.Context, r result.MessageHandlingResult) {
	f(ctx, r)
}

// LoggingSink logs every result at the level its outcome calls for.
type LoggingSink struct {
	Logger loggingpkg.ServiceLogger
}

func (s LoggingSink) Observe(_ context.Context, r result.MessageHandlingResult) {
	if s.Logger == nil {
		return
	}
	fields := r.LogFields()
	switch r.Level() {
	case result.LevelError:
		s.Logger.Error("Message handling failed", r.Cause, fields)
	case result.LevelWarn:
		s.Logger.Warn("Message expired", fields)
	case result.LevelDebug:
		s.Logger.Debug("Message ignored", fields)
	default:
		s.Logger.Info("Message handled", fields)
	}
}
