package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/drblury/mediaflow/internal/runtime/config"
	loggingpkg "github.com/drblury/mediaflow/internal/runtime/logging"
)

var (
	GoChannelFactory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
		pubSub := gochannel.NewGoChannel(cfg, logger)
		return pubSub, pubSub
	}
)

// channelTransport is an in-process watermill pub/sub. Messages published
// before the subscription exists are kept, so producers may run first.
func channelTransport(ctx context.Context, conf *config.Config, logger loggingpkg.ServiceLogger) (Transport, error) {
	pub, sub := GoChannelFactory(gochannel.Config{Persistent: true}, loggingpkg.NewWatermillAdapter(logger))
	return watermillTransport(ctx, conf, pub, sub, logger)
}
