package codec

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/apipb"

	errspkg "github.com/drblury/mediaflow/internal/runtime/errors"
	"github.com/drblury/mediaflow/internal/runtime/mediatype"
)

func TestRegistryRegisterIsIdempotentForIdenticalCodecs(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(orderCreated, orderCodec()))
	require.NoError(t, r.Register(orderCreated, orderCodec()))

	err := r.Register(orderCreated, NewJSONCodec(orderCreated, Required("uri", String)))
	var already *errspkg.AlreadyRegisteredError
	require.True(t, errors.As(err, &already))
	assert.Equal(t, orderCreated, already.MediaType)

	require.NoError(t, r.Register(methodChanged, NewProtoCodec(methodChanged, &apipb.Method{})))
	require.NoError(t, r.Register(methodChanged, NewProtoCodec(methodChanged, &apipb.Method{})))
}

func TestRegistryRegisterRejectsBadInput(t *testing.T) {
	r := NewRegistry()
	assert.ErrorIs(t, r.Register("", orderCodec()), errspkg.ErrMediaTypeRequired)
	assert.ErrorIs(t, r.Register(orderCreated, nil), errspkg.ErrCodecRequired)
	assert.Error(t, r.Register("acme.public.changed.order", orderCodec()))
}

func TestRegistryFindResolvesConventionOnce(t *testing.T) {
	calls := 0
	r := NewRegistry(WithResolver(func(mt string) Codec {
		calls++
		return ConventionResolver(mt)
	}))

	first, err := r.Find("vendor.x.created.foo")
	require.NoError(t, err)
	second, err := r.Find("vendor.x.created.foo")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)
	assert.Contains(t, r.MediaTypes(), "vendor.x.created.foo")
}

func TestRegistryFindUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Find("vendor.x.archived.foo")
	assert.ErrorIs(t, err, errspkg.ErrSchemaNotFound)

	noConvention := NewRegistry(WithResolver(nil))
	_, err = noConvention.Find("vendor.x.created.foo")
	assert.ErrorIs(t, err, errspkg.ErrSchemaNotFound)
}

func TestRegistryRegisterMediaType(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterMediaType("vendor.x.deleted.foo"))
	require.NoError(t, r.RegisterMediaType("vendor.x.deleted.foo"))
	assert.ErrorIs(t, r.RegisterMediaType("vendor.x.moved.foo"), errspkg.ErrSchemaNotFound)
	assert.ErrorIs(t, r.RegisterMediaType(""), errspkg.ErrMediaTypeRequired)

	require.NoError(t, r.Register("vendor.x.created.bar", NewJSONCodec("vendor.x.created.bar", Required("name", String))))
	var already *errspkg.AlreadyRegisteredError
	assert.ErrorAs(t, r.RegisterMediaType("vendor.x.created.bar"), &already)
}

func TestRegistryKnowsBatchMediaType(t *testing.T) {
	r := NewRegistry()
	c, err := r.Find(mediatype.Batch)
	require.NoError(t, err)
	assert.Equal(t, mediatype.Batch, c.MediaType())
	assert.Equal(t, []string{mediatype.Batch}, r.MediaTypes())
}

func TestRegistryConcurrentFind(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Find("vendor.x.changed.foo")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Len(t, r.MediaTypes(), 2)
}
