/*
Package runtime wires the mediaflow building blocks into a Service.

# Architecture Overview

Messages arrive on a queue backend, are unwrapped by an envelope parser,
decoded by the codec registered for their media type and handed to the one
handler bound to that media type. Every message ends in exactly one outcome,
which decides whether it is acknowledged or made visible again after a
backoff delay.

# Package Structure

## Core Service (service.go)

The Service holds the schema and handler registries, the transport selected
by Config.PubSubSystem and a producer. Dispatcher builds a consumer and
dispatcher pair over the service queue; Start runs one until the context is
cancelled and serves metrics when enabled.

## Registration (registration.go, prototypes.go)

RegisterSchema and RegisterHandler are the untyped entry points.
RegisterJSONHandler and RegisterProtoHandler adapt typed handlers and
register the matching codec.

## Stats (stats.go, resources.go, introspection.go)

StatsCollector is a result sink keeping per-media-type counters, latency
percentiles and throughput. Report and the /api/handlers endpoint expose
them with the binding table.

## Publishing (publisher.go)

ProduceProto emits protobuf events in their JSON mapping.

# Sub-packages

  - backoff/: retry delay policies and their registry
  - codec/: media type codecs and the schema registry
  - config/: service configuration, validation and viper loading
  - consumer/: message receipt, TTL handling and ack/nack
  - dispatch/: handler invocation, outcome mapping and result sinks
  - envelope/: raw body parsing strategies
  - errors/: sentinel errors and error types
  - handlers/: handler contracts, typed adapters and the binding registry
  - producer/: topic routing, deferred publishing and batch wrappers
  - transport/: SQS/SNS, in-memory, SQL and watermill broker backends

# Usage Example

	cfg := &mediaflow.Config{
		PubSubSystem:    "aws",
		AWSRegion:       "eu-central-1",
		QueueURL:        queueURL,
		DefaultTopic:    "events",
		ProducerEnabled: true,
	}

	svc := mediaflow.NewService(cfg, logger, ctx, mediaflow.ServiceDependencies{})

	_ = mediaflow.RegisterJSONHandler(svc, mediaflow.JSONHandlerRegistration[Order]{
		Name:      "orders",
		MediaType: "acme.public.created.order",
		Handler:   handleOrder,
	})

	_ = svc.Start(ctx)
*/
package runtime
