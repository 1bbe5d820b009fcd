// Package mediaflow routes JSON messages between services by media type.
//
// Every message body carries a "mediaType" that names its schema and the one
// handler bound to it. A Service consumes a queue (SQS in production), decodes
// each message with the codec registered for its media type, invokes the
// handler and acknowledges or re-queues the message depending on the outcome:
// SUCCEEDED, SKIPPED, IGNORED and EXPIRED messages are deleted, RETRIED and
// FAILED ones become visible again after a backoff delay.
//
// The same Service publishes through its Producer, which validates fields
// against the schema, stamps the ambient message context (hop TTL,
// correlation id, publish time) into "opaqueData" and routes to the topic
// configured for the media type. Deferred scopes publish only when the scope
// succeeds, and DeferredBatch packs the buffered messages into batch wrappers
// that a built-in handler unpacks on the consuming side.
//
// # Transports
//
// Config.PubSubSystem selects the backend:
//   - aws: SQS queue and SNS topics, with LocalStack support
//   - memory: in-process loopback, the default
//   - channel: watermill Go channels
//   - kafka, rabbitmq, nats, http: watermill brokers
//   - sqlite, postgres: SQL tables with visibility timeouts
//
// Custom backends plug in through RegisterTransport or
// ServiceDependencies.Transport.
//
// # Schemas
//
// Media types follow vendor.visibility.lifecycle.resource. Created and changed
// media types without an explicit schema get one requiring "uri"; deleted ones
// require "id". Register a JSONCodec or ProtoCodec for anything richer.
package mediaflow
