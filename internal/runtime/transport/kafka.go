package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/mediaflow/internal/runtime/config"
	loggingpkg "github.com/drblury/mediaflow/internal/runtime/logging"
)

var (
	KafkaPublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		return kafka.NewPublisher(cfg, logger)
	}
	KafkaSubscriberFactory = func(cfg kafka.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
		return kafka.NewSubscriber(cfg, logger)
	}
)

func kafkaTransport(ctx context.Context, conf *config.Config, logger loggingpkg.ServiceLogger) (Transport, error) {
	wmLogger := loggingpkg.NewWatermillAdapter(logger)
	publisher, err := newKafkaPublisher(conf.KafkaBrokers, wmLogger)
	if err != nil {
		return Transport{}, err
	}
	var subscriber message.Subscriber
	if conf.SubscribeTopic != "" {
		subscriber, err = newKafkaSubscriber(conf.KafkaConsumerGroup, conf.KafkaBrokers, wmLogger)
		if err != nil {
			_ = publisher.Close()
			return Transport{}, err
		}
	}
	return watermillTransport(ctx, conf, publisher, subscriber, logger)
}

func newKafkaPublisher(brokers []string, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return KafkaPublisherFactory(
		kafka.PublisherConfig{
			Brokers:   brokers,
			Marshaler: kafka.DefaultMarshaler{},
		},
		logger,
	)
}

func newKafkaSubscriber(consumerGroup string, brokers []string, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return KafkaSubscriberFactory(
		kafka.SubscriberConfig{
			Brokers:       brokers,
			Unmarshaler:   kafka.DefaultMarshaler{},
			ConsumerGroup: consumerGroup,
		},
		logger,
	)
}
