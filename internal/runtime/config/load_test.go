package config

import (
	"reflect"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadReadsPrefixedEnvironment(t *testing.T) {
	t.Setenv("MEDIAFLOW_PUBSUB_SYSTEM", "aws")
	t.Setenv("MEDIAFLOW_AWS_REGION", "eu-central-1")
	t.Setenv("MEDIAFLOW_QUEUE_URL", "https://sqs.eu-central-1.amazonaws.com/123456789012/orders")
	t.Setenv("MEDIAFLOW_TOPICS", "acme.public.created.order=orders, acme.public.deleted.order=orders-deleted")
	t.Setenv("MEDIAFLOW_ACTIVE_HANDLERS", "orders,audit")
	t.Setenv("MEDIAFLOW_MAX_PROCESSING_ATTEMPTS", "7")
	t.Setenv("MEDIAFLOW_VERIFY_CHECKSUM", "true")
	t.Setenv("MEDIAFLOW_WAIT_SECONDS", "3")

	cfg, err := Load("MEDIAFLOW")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Transport() != "aws" || cfg.AWSRegion != "eu-central-1" {
		t.Fatalf("unexpected transport settings: %s", cfg)
	}
	wantTopics := map[string]string{
		"acme.public.created.order": "orders",
		"acme.public.deleted.order": "orders-deleted",
	}
	if !reflect.DeepEqual(cfg.Topics, wantTopics) {
		t.Fatalf("Topics = %v, want %v", cfg.Topics, wantTopics)
	}
	if !reflect.DeepEqual(cfg.ActiveHandlers, []string{"orders", "audit"}) {
		t.Fatalf("ActiveHandlers = %v", cfg.ActiveHandlers)
	}
	if cfg.MaxProcessingAttempts != 7 || !cfg.VerifyChecksum || cfg.WaitSeconds != 3 {
		t.Fatalf("unexpected consumer settings: %s", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("loaded config should validate: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("MEDIAFLOW_DEFAULTS_TEST")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Transport() != "memory" || !cfg.ProducerEnabled || cfg.BatchSize != 100 {
		t.Fatalf("unexpected defaults: %s", cfg)
	}
	if cfg.ReceiveLimit != 10 || cfg.WaitSeconds != 20 {
		t.Fatalf("unexpected consumer defaults: %s", cfg)
	}
	if cfg.Policy() != "exponential" || cfg.DefaultReprocessingDelay != 5 {
		t.Fatalf("unexpected backoff defaults: %s", cfg)
	}
	if len(cfg.Topics) != 0 || cfg.ActiveHandlers != nil {
		t.Fatalf("expected empty topics and handlers, got %v %v", cfg.Topics, cfg.ActiveHandlers)
	}
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	v.Set(KeyPubSubSystem, "kafka")
	v.Set(KeyKafkaBrokers, "a:9092,b:9092")
	v.Set(KeyProducerEnabled, false)

	cfg, err := FromViper(v)
	if err != nil {
		t.Fatalf("FromViper: %v", err)
	}
	if !reflect.DeepEqual(cfg.KafkaBrokers, []string{"a:9092", "b:9092"}) {
		t.Fatalf("KafkaBrokers = %v", cfg.KafkaBrokers)
	}
	if cfg.ProducerEnabled {
		t.Fatal("explicit value should override the default")
	}
}

func TestLoadRejectsMalformedTopics(t *testing.T) {
	t.Setenv("MEDIAFLOW_BAD_TOPICS", "no-separator")
	if _, err := Load("MEDIAFLOW_BAD"); err == nil {
		t.Fatal("expected malformed topic mapping error")
	}
}
