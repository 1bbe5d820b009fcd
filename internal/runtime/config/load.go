package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Environment keys read by Load, without prefix.
const (
	KeyPubSubSystem             = "PUBSUB_SYSTEM"
	KeyAWSRegion                = "AWS_REGION"
	KeyAWSAccountID             = "AWS_ACCOUNT_ID"
	KeyAWSAccessKeyID           = "AWS_ACCESS_KEY_ID"
	KeyAWSSecretAccessKey       = "AWS_SECRET_ACCESS_KEY"
	KeyAWSEndpoint              = "AWS_ENDPOINT"
	KeyQueueURL                 = "QUEUE_URL"
	KeySubscribeTopic           = "SUBSCRIBE_TOPIC"
	KeyKafkaBrokers             = "KAFKA_BROKERS"
	KeyKafkaConsumerGroup       = "KAFKA_CONSUMER_GROUP"
	KeyRabbitMQURL              = "RABBITMQ_URL"
	KeyNATSURL                  = "NATS_URL"
	KeyHTTPServerAddress        = "HTTP_SERVER_ADDRESS"
	KeyHTTPPublisherURL         = "HTTP_PUBLISHER_URL"
	KeySQLiteFile               = "SQLITE_FILE"
	KeyPostgresURL              = "POSTGRES_URL"
	KeyTopics                   = "TOPICS"
	KeyDefaultTopic             = "DEFAULT_TOPIC"
	KeyProducerEnabled          = "PRODUCER_ENABLED"
	KeyBatchSize                = "BATCH_SIZE"
	KeyReceiveLimit             = "RECEIVE_LIMIT"
	KeyWaitSeconds              = "WAIT_SECONDS"
	KeyEnvelopeMode             = "ENVELOPE_MODE"
	KeyVerifyChecksum           = "VERIFY_CHECKSUM"
	KeyMaxProcessingAttempts    = "MAX_PROCESSING_ATTEMPTS"
	KeyActiveHandlers           = "ACTIVE_HANDLERS"
	KeyBackoffPolicy            = "BACKOFF_POLICY"
	KeyDefaultReprocessingDelay = "DEFAULT_REPROCESSING_DELAY"
	KeyMetricsEnabled           = "METRICS_ENABLED"
	KeyMetricsPort              = "METRICS_PORT"
)

// Load reads the configuration from environment variables named
// <prefix>_<KEY>, for example MEDIAFLOW_QUEUE_URL. It does not validate.
func Load(prefix string) (Config, error) {
	v := viper.New()
	if prefix != "" {
		v.SetEnvPrefix(prefix)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return FromViper(v)
}

// FromViper builds a Config from an existing viper instance, so a config
// file or flags can be layered over the environment.
func FromViper(v *viper.Viper) (Config, error) {
	setDefaults(v)

	topics, err := parseTopics(v.GetString(KeyTopics))
	if err != nil {
		return Config{}, err
	}

	return Config{
		PubSubSystem:             v.GetString(KeyPubSubSystem),
		AWSRegion:                v.GetString(KeyAWSRegion),
		AWSAccountID:             v.GetString(KeyAWSAccountID),
		AWSAccessKeyID:           v.GetString(KeyAWSAccessKeyID),
		AWSSecretAccessKey:       v.GetString(KeyAWSSecretAccessKey),
		AWSEndpoint:              v.GetString(KeyAWSEndpoint),
		QueueURL:                 v.GetString(KeyQueueURL),
		SubscribeTopic:           v.GetString(KeySubscribeTopic),
		KafkaBrokers:             splitList(v.GetString(KeyKafkaBrokers)),
		KafkaConsumerGroup:       v.GetString(KeyKafkaConsumerGroup),
		RabbitMQURL:              v.GetString(KeyRabbitMQURL),
		NATSURL:                  v.GetString(KeyNATSURL),
		HTTPServerAddress:        v.GetString(KeyHTTPServerAddress),
		HTTPPublisherURL:         v.GetString(KeyHTTPPublisherURL),
		SQLiteFile:               v.GetString(KeySQLiteFile),
		PostgresURL:              v.GetString(KeyPostgresURL),
		Topics:                   topics,
		DefaultTopic:             v.GetString(KeyDefaultTopic),
		ProducerEnabled:          v.GetBool(KeyProducerEnabled),
		BatchSize:                v.GetInt(KeyBatchSize),
		ReceiveLimit:             v.GetInt32(KeyReceiveLimit),
		WaitSeconds:              v.GetInt32(KeyWaitSeconds),
		EnvelopeMode:             v.GetString(KeyEnvelopeMode),
		VerifyChecksum:           v.GetBool(KeyVerifyChecksum),
		MaxProcessingAttempts:    v.GetInt(KeyMaxProcessingAttempts),
		ActiveHandlers:           splitList(v.GetString(KeyActiveHandlers)),
		BackoffPolicy:            v.GetString(KeyBackoffPolicy),
		DefaultReprocessingDelay: v.GetInt(KeyDefaultReprocessingDelay),
		MetricsEnabled:           v.GetBool(KeyMetricsEnabled),
		MetricsPort:              v.GetInt(KeyMetricsPort),
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyPubSubSystem, "memory")
	v.SetDefault(KeyProducerEnabled, true)
	v.SetDefault(KeyBatchSize, 100)
	v.SetDefault(KeyReceiveLimit, 10)
	v.SetDefault(KeyWaitSeconds, 20)
	v.SetDefault(KeyBackoffPolicy, "exponential")
	v.SetDefault(KeyDefaultReprocessingDelay, 5)
	v.SetDefault(KeyMetricsPort, 9090)
	v.SetDefault(KeyKafkaConsumerGroup, "mediaflow")
	v.SetDefault(KeySQLiteFile, "mediaflow_queue.db")
}

// parseTopics reads "mediaType=topic" pairs separated by commas.
func parseTopics(raw string) (map[string]string, error) {
	topics := map[string]string{}
	for _, pair := range splitList(raw) {
		mediaType, topic, ok := strings.Cut(pair, "=")
		mediaType, topic = strings.TrimSpace(mediaType), strings.TrimSpace(topic)
		if !ok || mediaType == "" || topic == "" {
			return nil, fmt.Errorf("config: malformed topic mapping %q, want mediaType=topic", pair)
		}
		topics[mediaType] = topic
	}
	return topics, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
