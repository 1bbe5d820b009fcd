package transport

import (
	"context"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/mediaflow/internal/runtime/config"
	"github.com/drblury/mediaflow/internal/runtime/consumer"
	"github.com/drblury/mediaflow/internal/runtime/envelope"
	errspkg "github.com/drblury/mediaflow/internal/runtime/errors"
	"github.com/drblury/mediaflow/internal/runtime/ids"
	loggingpkg "github.com/drblury/mediaflow/internal/runtime/logging"
)

// WatermillTopics is a producer.TopicBackend over any watermill publisher.
type WatermillTopics struct {
	publisher message.Publisher
}

// NewWatermillTopics wraps publisher.
func NewWatermillTopics(publisher message.Publisher) *WatermillTopics {
	return &WatermillTopics{publisher: publisher}
}

// Publish sends body as the payload of a new watermill message and returns
// its UUID.
func (w *WatermillTopics) Publish(ctx context.Context, topic, body string) (string, error) {
	msg := message.NewMessage(ids.CreateULID(), message.Payload(body))
	msg.SetContext(ctx)
	if err := w.publisher.Publish(topic, msg); err != nil {
		return "", err
	}
	return msg.UUID, nil
}

// WatermillQueue is a consumer.QueueBackend over a watermill subscription.
// Delete acks the delivery. ChangeVisibility nacks it once the timeout has
// elapsed, so the broker redelivers it no earlier than requested. Receive
// counts are tracked per message UUID for the lifetime of the queue.
type WatermillQueue struct {
	subscriber message.Subscriber
	messages   <-chan *message.Message
	cancel     context.CancelFunc

	mu       sync.Mutex
	pending  map[string]*message.Message
	receives map[string]int
	timers   map[string]*time.Timer
}

// NewWatermillQueue subscribes to topic. The subscription outlives ctx and
// ends with Close.
func NewWatermillQueue(ctx context.Context, subscriber message.Subscriber, topic string) (*WatermillQueue, error) {
	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	messages, err := subscriber.Subscribe(subCtx, topic)
	if err != nil {
		cancel()
		return nil, err
	}
	return &WatermillQueue{
		subscriber: subscriber,
		messages:   messages,
		cancel:     cancel,
		pending:    make(map[string]*message.Message),
		receives:   make(map[string]int),
		timers:     make(map[string]*time.Timer),
	}, nil
}

func (q *WatermillQueue) Receive(ctx context.Context, maxMessages, waitSeconds int32) ([]consumer.RawMessage, error) {
	raws, err := q.drain(nil, int(maxMessages))
	if err != nil || len(raws) > 0 || waitSeconds <= 0 {
		return raws, err
	}

	wait := time.NewTimer(time.Duration(waitSeconds) * time.Second)
	defer wait.Stop()
	select {
	case msg, ok := <-q.messages:
		if !ok {
			return nil, errspkg.ErrTransportClosed
		}
		raws = append(raws, q.track(msg))
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-wait.C:
		return nil, nil
	}
	return q.drain(raws, int(maxMessages))
}

// drain appends whatever is already buffered without blocking.
func (q *WatermillQueue) drain(raws []consumer.RawMessage, limit int) ([]consumer.RawMessage, error) {
	for len(raws) < limit {
		select {
		case msg, ok := <-q.messages:
			if !ok {
				if len(raws) == 0 {
					return nil, errspkg.ErrTransportClosed
				}
				return raws, nil
			}
			raws = append(raws, q.track(msg))
		default:
			return raws, nil
		}
	}
	return raws, nil
}

func (q *WatermillQueue) track(msg *message.Message) consumer.RawMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	handle := ids.CreateULID()
	q.pending[handle] = msg
	q.receives[msg.UUID]++
	body := string(msg.Payload)
	return consumer.RawMessage{
		ID:                      msg.UUID,
		ReceiptHandle:           handle,
		Body:                    body,
		Checksum:                envelope.Checksum(body),
		ApproximateReceiveCount: q.receives[msg.UUID],
	}
}

func (q *WatermillQueue) release(receiptHandle string) (*message.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	msg, ok := q.pending[receiptHandle]
	if !ok {
		return nil, errspkg.ErrInvalidReceiptHandle
	}
	delete(q.pending, receiptHandle)
	return msg, nil
}

func (q *WatermillQueue) Delete(_ context.Context, receiptHandle string) error {
	msg, err := q.release(receiptHandle)
	if err != nil {
		return err
	}
	q.mu.Lock()
	delete(q.receives, msg.UUID)
	q.mu.Unlock()
	msg.Ack()
	return nil
}

func (q *WatermillQueue) ChangeVisibility(_ context.Context, receiptHandle string, timeoutSeconds int32) error {
	msg, err := q.release(receiptHandle)
	if err != nil {
		return err
	}
	if timeoutSeconds <= 0 {
		msg.Nack()
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.timers[receiptHandle] = time.AfterFunc(time.Duration(timeoutSeconds)*time.Second, func() {
		q.mu.Lock()
		delete(q.timers, receiptHandle)
		q.mu.Unlock()
		msg.Nack()
	})
	return nil
}

// Close ends the subscription. Deliveries waiting for a delayed nack are
// abandoned to the broker's own redelivery.
func (q *WatermillQueue) Close() error {
	q.mu.Lock()
	for handle, timer := range q.timers {
		timer.Stop()
		delete(q.timers, handle)
	}
	q.mu.Unlock()
	q.cancel()
	return q.subscriber.Close()
}

// watermillTransport pairs a publisher with an optional subscriber. Without
// a subscribe topic the transport is publish-only.
func watermillTransport(ctx context.Context, conf *config.Config, publisher message.Publisher, subscriber message.Subscriber, logger loggingpkg.ServiceLogger) (Transport, error) {
	t := Transport{Topics: NewWatermillTopics(publisher)}
	t.onClose(publisher.Close)
	if subscriber == nil {
		return t, nil
	}
	if conf.SubscribeTopic == "" {
		logger.Info("No subscribe topic configured; transport is publish-only", nil)
		t.onClose(subscriber.Close)
		return t, nil
	}

	queue, err := NewWatermillQueue(ctx, subscriber, conf.SubscribeTopic)
	if err != nil {
		_ = subscriber.Close()
		_ = t.Close()
		return Transport{}, err
	}
	t.Queue = queue
	t.onClose(queue.Close)
	return t, nil
}
