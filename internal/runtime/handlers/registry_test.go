package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/mediaflow/internal/runtime/codec"
	errspkg "github.com/drblury/mediaflow/internal/runtime/errors"
)

const (
	orderCreatedType = "acme.public.created.order"
	orderDeletedType = "acme.public.deleted.order"
)

func accept(context.Context, codec.Fields) (bool, error) { return true, nil }

func TestRegisterValidation(t *testing.T) {
	r := NewRegistry()
	assert.ErrorIs(t, r.Register("", BindFunc("a", accept)), errspkg.ErrMediaTypeRequired)
	assert.ErrorIs(t, r.Register(orderCreatedType, BindFunc("", accept)), errspkg.ErrHandlerNameRequired)
	assert.ErrorIs(t, r.Register(orderCreatedType, Binding{Name: "empty"}), errspkg.ErrHandlerRequired)
	assert.ErrorIs(t, r.Register(orderCreatedType, Binding{
		Name:    "both",
		Handler: HandlerFunc(accept),
		Factory: func() Handler { return HandlerFunc(accept) },
	}), errspkg.ErrHandlerRequired)
}

func TestBoundWithoutActiveListBindsEverything(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(orderCreatedType, BindFunc("billing", accept)))
	require.NoError(t, r.Register(orderDeletedType, BindFunc("billing", accept)))

	bound, err := r.Bound(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{orderCreatedType, orderDeletedType}, bound.MediaTypes())

	h, name, err := bound.Find(orderCreatedType)
	require.NoError(t, err)
	assert.Equal(t, "billing", name)
	ok, err := h.Handle(context.Background(), nil)
	assert.True(t, ok)
	assert.NoError(t, err)
}

func TestBoundFiltersByActiveNames(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(orderCreatedType, BindFunc("billing", accept)))
	require.NoError(t, r.Register(orderCreatedType, BindFunc("shipping", accept)))
	require.NoError(t, r.Register(orderDeletedType, BindFunc("shipping", accept)))

	bound, err := r.Bound([]string{"billing"})
	require.NoError(t, err)

	_, name, err := bound.Find(orderCreatedType)
	require.NoError(t, err)
	assert.Equal(t, "billing", name)

	_, _, err = bound.Find(orderDeletedType)
	assert.ErrorIs(t, err, errspkg.ErrHandlerNotFound)
	assert.Equal(t, []string{"billing", "shipping"}, r.Names())
}

func TestBoundRejectsAmbiguousBindings(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(orderCreatedType, BindFunc("billing", accept)))
	require.NoError(t, r.Register(orderCreatedType, BindFunc("shipping", accept)))

	_, err := r.Bound(nil)
	var ambiguous *errspkg.AmbiguousHandlerError
	require.True(t, errors.As(err, &ambiguous))
	assert.Equal(t, orderCreatedType, ambiguous.MediaType)
	assert.Equal(t, []string{"billing", "shipping"}, ambiguous.Bindings)

	_, err = r.Bound([]string{"billing", "shipping"})
	assert.True(t, errors.As(err, &ambiguous))
}

func TestRegisterSameNameReplaces(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(orderCreatedType, BindFunc("billing", accept)))
	require.NoError(t, r.Register(orderCreatedType, BindFunc("billing", func(context.Context, codec.Fields) (bool, error) {
		return false, nil
	})))

	bound, err := r.Bound(nil)
	require.NoError(t, err)
	h, _, err := bound.Find(orderCreatedType)
	require.NoError(t, err)
	ok, _ := h.Handle(context.Background(), nil)
	assert.False(t, ok)
}

type countingHandler struct{ id int }

func (countingHandler) Handle(context.Context, codec.Fields) (bool, error) { return true, nil }

func TestFactoryBindingInstantiatesPerFind(t *testing.T) {
	created := 0
	r := NewRegistry()
	require.NoError(t, r.Register(orderCreatedType, BindFactory("billing", func() Handler {
		created++
		return countingHandler{id: created}
	})))

	bound, err := r.Bound(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	first, _, err := bound.Find(orderCreatedType)
	require.NoError(t, err)
	second, _, err := bound.Find(orderCreatedType)
	require.NoError(t, err)

	assert.Equal(t, 2, created)
	assert.NotEqual(t, first, second)
}

func TestBindBindsInstance(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(orderCreatedType, Bind("billing", countingHandler{id: 7})))
	bound, err := r.Bound([]string{"billing"})
	require.NoError(t, err)
	h, _, err := bound.Find(orderCreatedType)
	require.NoError(t, err)
	assert.Equal(t, countingHandler{id: 7}, h)
	assert.Equal(t, []string{orderCreatedType}, r.MediaTypes())
}

func TestNamesOfListsBindingsPerMediaType(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(orderCreatedType, BindFunc("shipping", accept)))
	require.NoError(t, r.Register(orderCreatedType, BindFunc("billing", accept)))
	require.NoError(t, r.Register(orderDeletedType, BindFunc("audit", accept)))

	assert.Equal(t, []string{"billing", "shipping"}, r.NamesOf(orderCreatedType))
	assert.Equal(t, []string{"audit", "billing", "shipping"}, r.Names())
	assert.Empty(t, r.NamesOf("unknown"))
}
