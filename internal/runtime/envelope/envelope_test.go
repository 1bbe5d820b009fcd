package envelope

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/mediaflow/internal/runtime/codec"
	errspkg "github.com/drblury/mediaflow/internal/runtime/errors"
	"github.com/drblury/mediaflow/internal/runtime/mediatype"
	"github.com/drblury/mediaflow/internal/runtime/metadata"
)

func TestRaw(t *testing.T) {
	got, err := Raw(`{"a":1}`)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, got)
}

func TestBrokerWrapped(t *testing.T) {
	got, err := BrokerWrapped(`{"Type":"Notification","Message":"{\"mediaType\":\"m\"}"}`)
	require.NoError(t, err)
	assert.Equal(t, `{"mediaType":"m"}`, got)

	for _, body := range []string{`{"Type":"Notification"}`, `{"Message":{"mediaType":"m"}}`, `nope`} {
		_, err := BrokerWrapped(body)
		assert.Error(t, err, body)
	}
}

func TestRawJSON(t *testing.T) {
	parsed, err := RawJSON(`{"mediaType":"ignored","uri":"u","opaqueData":{"k":"v"}}`)
	require.NoError(t, err)
	assert.Equal(t, mediatype.DefaultMarker, parsed.MediaType)
	assert.Equal(t, "u", parsed.Content["uri"])
	assert.Equal(t, metadata.Metadata{"k": "v"}, parsed.OpaqueData)

	_, err = RawJSON(`[1]`)
	assert.Error(t, err)
	_, err = RawJSON(`{"opaqueData":"x"}`)
	assert.Error(t, err)
}

func TestSchemaDriven(t *testing.T) {
	reg := codec.NewRegistry()
	extract := SchemaDriven(reg)

	parsed, err := extract(`{"mediaType":"vendor.x.created.foo","uri":"http://x","opaqueData":{"X-Request-Ttl":"4"}}`)
	require.NoError(t, err)
	assert.Equal(t, "vendor.x.created.foo", parsed.MediaType)
	assert.Equal(t, "http://x", parsed.Content["uri"])
	assert.Equal(t, "4", parsed.OpaqueData["X-Request-Ttl"])
}

func TestSchemaDrivenUnknownMediaTypeYieldsNilContent(t *testing.T) {
	parsed, err := SchemaDriven(codec.NewRegistry())(`{"mediaType":"vendor.x.archived.foo","uri":"http://x"}`)
	require.NoError(t, err)
	assert.Equal(t, "vendor.x.archived.foo", parsed.MediaType)
	assert.Nil(t, parsed.Content)
}

func TestSchemaDrivenErrors(t *testing.T) {
	extract := SchemaDriven(codec.NewRegistry())
	cases := map[string]string{
		"missing media type": `{"uri":"http://x"}`,
		"empty media type":   `{"mediaType":"","uri":"http://x"}`,
		"decode failure":     `{"mediaType":"vendor.x.created.foo"}`,
		"not json":           `{{`,
		"bad opaque data":    `{"mediaType":"vendor.x.created.foo","uri":"u","opaqueData":[1]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := extract(body)
			assert.Error(t, err)
		})
	}
}

type failingFinder struct{ err error }

func (f failingFinder) Find(string) (codec.Codec, error) { return nil, f.err }

func TestSchemaDrivenPropagatesRegistryFailures(t *testing.T) {
	boom := errors.New("registry unavailable")
	_, err := SchemaDriven(failingFinder{err: boom})(`{"mediaType":"m"}`)
	assert.ErrorIs(t, err, boom)
}

func TestBrokerSchemaDrivenParsesWrappedBody(t *testing.T) {
	body := `{"Message": "{\"mediaType\":\"vendor.x.created.foo\",\"uri\":\"http://x\"}"}`
	parsed, err := BrokerSchemaDriven(codec.NewRegistry()).Parse("id-1", body, "")
	require.NoError(t, err)
	assert.Equal(t, "vendor.x.created.foo", parsed.MediaType)
	assert.Equal(t, "http://x", parsed.Content["uri"])
	assert.NotNil(t, parsed.OpaqueData)
}

func TestLocalSchemaDrivenAndPassThrough(t *testing.T) {
	body := `{"mediaType":"vendor.x.deleted.foo","id":"42"}`

	parsed, err := LocalSchemaDriven(codec.NewRegistry()).Parse("id-1", body, "")
	require.NoError(t, err)
	assert.Equal(t, "42", parsed.Content["id"])

	parsed, err = PassThrough().Parse("id-1", body, "")
	require.NoError(t, err)
	assert.Equal(t, mediatype.DefaultMarker, parsed.MediaType)

	_, err = BrokerSchemaDriven(codec.NewRegistry()).Parse("id-1", body, "")
	assert.Error(t, err, "unwrapped body must fail broker unwrapping")
}

func TestParseVerifiesChecksum(t *testing.T) {
	body := `{"mediaType":"vendor.x.created.foo","uri":"http://x"}`
	parser := LocalSchemaDriven(codec.NewRegistry(), WithChecksum())

	_, err := parser.Parse("id-1", body, Checksum(body))
	require.NoError(t, err)

	_, err = parser.Parse("id-1", body, "")
	require.NoError(t, err, "missing checksum is not verified")

	_, err = parser.Parse("id-1", body, "d41d8cd98f00b204e9800998ecf8427e")
	var mismatch *errspkg.ChecksumMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "id-1", mismatch.MessageID)
	assert.Equal(t, Checksum(body), mismatch.Actual)

	_, err = LocalSchemaDriven(codec.NewRegistry()).Parse("id-1", body, "bogus")
	assert.NoError(t, err, "checksums are ignored unless enabled")
}

func TestChecksum(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", Checksum(""))
}
