package codec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/mediaflow/internal/runtime/errors"
	"github.com/drblury/mediaflow/internal/runtime/metadata"
)

const orderCreated = "acme.public.created.order"

func orderCodec() *JSONCodec {
	return NewJSONCodec(orderCreated,
		Required("uri", String),
		Required("quantity", Int),
		Optional("price", Float),
		Optional("express", Bool),
		Optional("tags", Array),
		Optional("address", Object),
	)
}

func TestJSONCodecRoundTrip(t *testing.T) {
	c := orderCodec()
	in := Fields{
		"uri":        "https://api.acme.test/orders/1",
		"quantity":   int64(3),
		"price":      12.5,
		"express":    true,
		"tags":       []any{"a", "b"},
		"address":    map[string]any{"city": "Berlin"},
		"opaqueData": map[string]string{"X-Request-Ttl": "31"},
	}

	body, err := c.Encode(in)
	require.NoError(t, err)

	out, err := c.Decode(body)
	require.NoError(t, err)

	for _, f := range c.Schema() {
		assert.Equal(t, in[f.Name], out[f.Name], f.Name)
	}
	assert.Equal(t, orderCreated, out.MediaType())
	assert.Equal(t, metadata.Metadata{"X-Request-Ttl": "31"}, out[KeyOpaqueData])
}

func TestJSONCodecEncodeSetsMediaTypeAndDropsUnknown(t *testing.T) {
	body, err := orderCodec().Encode(Fields{"uri": "u", "quantity": 1, "mediaType": "other", "debug": true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"mediaType":"acme.public.created.order","uri":"u","quantity":1}`, body)
}

func TestJSONCodecEncodeValidation(t *testing.T) {
	cases := map[string]struct {
		fields Fields
		field  string
	}{
		"missing required": {Fields{"quantity": 1}, "uri"},
		"null required":    {Fields{"uri": nil, "quantity": 1}, "uri"},
		"wrong type":       {Fields{"uri": 5, "quantity": 1}, "uri"},
		"fractional int":   {Fields{"uri": "u", "quantity": 1.5}, "quantity"},
		"wrong optional":   {Fields{"uri": "u", "quantity": 1, "express": "yes"}, "express"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := orderCodec().Encode(tc.fields)
			var verr *errspkg.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tc.field, verr.Field)
			assert.Equal(t, orderCreated, verr.MediaType)
		})
	}
}

func TestJSONCodecDecode(t *testing.T) {
	c := orderCodec()

	out, err := c.Decode(`{"mediaType":"acme.public.created.order","uri":"u","quantity":2,"unknown":"x"}`)
	require.NoError(t, err)
	assert.NotContains(t, out, "unknown")
	assert.Equal(t, int64(2), out["quantity"])
	assert.Equal(t, metadata.Metadata{}, out[KeyOpaqueData])

	_, err = c.Decode(`{"mediaType":"acme.public.created.order","quantity":2}`)
	assert.Error(t, err)

	_, err = c.Decode(`not json`)
	assert.Error(t, err)

	_, err = c.Decode(`{"uri":"u","quantity":2,"opaqueData":[1]}`)
	assert.Error(t, err)
}

func TestNewJSONCodecIgnoresFieldOrder(t *testing.T) {
	a := NewJSONCodec("m", Required("a", String), Optional("b", Int))
	b := NewJSONCodec("m", Optional("b", Int), Required("a", String))
	assert.Equal(t, a, b)
}

func TestFieldsHelpers(t *testing.T) {
	f := Fields{"mediaType": "m", "uri": "u", "opaqueData": map[string]any{"k": "v"}}
	assert.Equal(t, "m", f.MediaType())
	assert.Equal(t, "u", f.String("uri"))
	assert.Equal(t, "", f.String("missing"))
	assert.Equal(t, metadata.Metadata{"k": "v"}, f.OpaqueData())

	clone := f.Clone()
	clone["uri"] = "changed"
	assert.Equal(t, "u", f["uri"])
}
