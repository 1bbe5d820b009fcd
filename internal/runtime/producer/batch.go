package producer

import (
	"context"
	"errors"
	"fmt"

	"github.com/drblury/mediaflow/internal/runtime/codec"
	"github.com/drblury/mediaflow/internal/runtime/handlers"
	"github.com/drblury/mediaflow/internal/runtime/mediatype"
)

const batchMediaType = mediatype.Batch

func batchFields(msgs []PublishedMessage) codec.Fields {
	entries := make([]any, 0, len(msgs))
	for _, msg := range msgs {
		entries = append(entries, map[string]any{
			codec.KeyMediaType:      msg.MediaType,
			codec.BatchMessageField: msg.Message,
			codec.BatchTopicField:   msg.Topic,
			codec.KeyOpaqueData:     msg.OpaqueData.ToAny(),
		})
	}
	return codec.Fields{codec.BatchMessagesField: entries}
}

// BatchEntry is one message unpacked from a batch wrapper.
type BatchEntry struct {
	MediaType string
	Message   string
	Topic     string
}

// UnpackBatch reads the entries of decoded batch wrapper content.
func UnpackBatch(content codec.Fields) ([]BatchEntry, error) {
	var raw []map[string]any
	switch v := content[codec.BatchMessagesField].(type) {
	case []map[string]any:
		raw = v
	case []any:
		raw = make([]map[string]any, 0, len(v))
		for i, item := range v {
			entry, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("mediaflow: batch entry %d is %T, not an object", i, item)
			}
			raw = append(raw, entry)
		}
	default:
		return nil, fmt.Errorf("mediaflow: batch messages field is %T, not an array", v)
	}

	entries := make([]BatchEntry, 0, len(raw))
	for i, item := range raw {
		entry := BatchEntry{}
		entry.MediaType, _ = item[codec.KeyMediaType].(string)
		entry.Message, _ = item[codec.BatchMessageField].(string)
		entry.Topic, _ = item[codec.BatchTopicField].(string)
		if entry.Message == "" || entry.Topic == "" {
			return nil, fmt.Errorf("mediaflow: batch entry %d lacks message or topic", i)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// BatchMessageHandler republishes every message of a batch wrapper to its
// original topic, so downstream consumers only see individual messages. Any
// publish failure fails the whole batch, which is then redelivered.
func BatchMessageHandler(p *Producer) handlers.Handler {
	return handlers.HandlerFunc(func(ctx context.Context, content codec.Fields) (bool, error) {
		entries, err := UnpackBatch(content)
		if err != nil {
			return false, err
		}
		var errs []error
		for _, entry := range entries {
			if _, err := p.Send(ctx, entry.Topic, entry.Message); err != nil {
				errs = append(errs, err)
			}
		}
		if err := errors.Join(errs...); err != nil {
			return false, err
		}
		return true, nil
	})
}
