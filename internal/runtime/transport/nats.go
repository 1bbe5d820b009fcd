package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/drblury/mediaflow/internal/runtime/config"
	loggingpkg "github.com/drblury/mediaflow/internal/runtime/logging"
)

var (
	NATSPublisherFactory = func(cfg nats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		return nats.NewPublisher(cfg, logger)
	}
	NATSSubscriberFactory = func(cfg nats.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
		return nats.NewSubscriber(cfg, logger)
	}
)

func natsOptions() []natsgo.Option {
	return []natsgo.Option{
		natsgo.Name("mediaflow"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
	}
}

func natsTransport(ctx context.Context, conf *config.Config, logger loggingpkg.ServiceLogger) (Transport, error) {
	wmLogger := loggingpkg.NewWatermillAdapter(logger)
	marshaler := &nats.NATSMarshaler{}

	publisher, err := NATSPublisherFactory(
		nats.PublisherConfig{
			URL:         conf.NATSURL,
			NatsOptions: natsOptions(),
			Marshaler:   marshaler,
		},
		wmLogger,
	)
	if err != nil {
		return Transport{}, err
	}

	var subscriber message.Subscriber
	if conf.SubscribeTopic != "" {
		subscriber, err = NATSSubscriberFactory(
			nats.SubscriberConfig{
				URL:         conf.NATSURL,
				NatsOptions: natsOptions(),
				Unmarshaler: marshaler,
			},
			wmLogger,
		)
		if err != nil {
			_ = publisher.Close()
			return Transport{}, err
		}
	}
	return watermillTransport(ctx, conf, publisher, subscriber, logger)
}
