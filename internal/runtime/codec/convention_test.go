package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/mediaflow/internal/runtime/mediatype"
)

func TestConventionResolver(t *testing.T) {
	created := ConventionResolver("vendor.x.created.foo")
	require.NotNil(t, created)
	assert.Equal(t, NewJSONCodec("vendor.x.created.foo", Required(URIField, String)), created)

	changed := ConventionResolver("vendor.internal.changed.foo.bar")
	require.NotNil(t, changed)
	assert.Equal(t, "vendor.internal.changed.foo.bar", changed.MediaType())

	deleted := ConventionResolver("vendor.x.deleted.foo")
	require.NotNil(t, deleted)
	_, err := deleted.Encode(Fields{"uri": "u"})
	assert.Error(t, err, "deleted messages are keyed by id")
	_, err = deleted.Encode(Fields{"id": "42"})
	assert.NoError(t, err)

	for _, mt := range []string{"vendor.x.archived.foo", "foo", mediatype.DefaultMarker, mediatype.Batch} {
		assert.Nil(t, ConventionResolver(mt), mt)
	}
}

func TestConventionCodecDecodesBrokerExample(t *testing.T) {
	c := ConventionResolver("vendor.x.created.foo")
	out, err := c.Decode(`{"mediaType":"vendor.x.created.foo","uri":"http://x"}`)
	require.NoError(t, err)
	assert.Equal(t, "http://x", out["uri"])
}

func TestBatchMessageCodec(t *testing.T) {
	c := BatchMessageCodec()
	assert.Equal(t, mediatype.Batch, c.MediaType())

	body, err := c.Encode(Fields{BatchMessagesField: []any{
		map[string]any{"mediaType": "m", "message": "{}", "topic": "t"},
	}})
	require.NoError(t, err)

	out, err := c.Decode(body)
	require.NoError(t, err)
	items, ok := out[BatchMessagesField].([]any)
	require.True(t, ok)
	assert.Len(t, items, 1)

	_, err = c.Encode(Fields{})
	assert.Error(t, err)
}
