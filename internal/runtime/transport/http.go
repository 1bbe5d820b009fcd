package transport

import (
	"context"
	net_http "net/http"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/mediaflow/internal/runtime/config"
	loggingpkg "github.com/drblury/mediaflow/internal/runtime/logging"
)

var (
	HTTPPublisherFactory = func(config http.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		return http.NewPublisher(config, logger)
	}
	HTTPSubscriberFactory = func(addr string, config http.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
		return http.NewSubscriber(addr, config, logger)
	}
)

// httpTransport posts each message to HTTPPublisherURL+topic. With a
// subscribe topic it also serves POST /<topic> on HTTPServerAddress.
func httpTransport(ctx context.Context, conf *config.Config, logger loggingpkg.ServiceLogger) (Transport, error) {
	wmLogger := loggingpkg.NewWatermillAdapter(logger)
	publisher, err := HTTPPublisherFactory(
		http.PublisherConfig{
			MarshalMessageFunc: func(topic string, msg *message.Message) (*net_http.Request, error) {
				return http.DefaultMarshalMessageFunc(conf.HTTPPublisherURL+topic, msg)
			},
		},
		wmLogger,
	)
	if err != nil {
		return Transport{}, err
	}

	if conf.SubscribeTopic == "" {
		return watermillTransport(ctx, conf, publisher, nil, logger)
	}

	subscriber, err := HTTPSubscriberFactory(
		conf.HTTPServerAddress,
		http.SubscriberConfig{
			UnmarshalMessageFunc: http.DefaultUnmarshalMessageFunc,
		},
		wmLogger,
	)
	if err != nil {
		_ = publisher.Close()
		return Transport{}, err
	}

	t, err := watermillTransport(ctx, conf, publisher, subscriber, logger)
	if err != nil {
		return Transport{}, err
	}
	// The server only routes topics subscribed before it starts.
	if s, ok := subscriber.(*http.Subscriber); ok {
		go func() {
			if err := s.StartHTTPServer(); err != nil && err != net_http.ErrServerClosed {
				logger.Error("HTTP subscriber server stopped", err, nil)
			}
		}()
	}
	return t, nil
}
