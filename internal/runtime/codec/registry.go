package codec

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	errspkg "github.com/drblury/mediaflow/internal/runtime/errors"
)

// Registry maps media types to codecs. It is append-only: a media type can be
// registered again only with an identical codec.
type Registry struct {
	mu       sync.RWMutex
	codecs   map[string]Codec
	resolver Resolver
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithResolver replaces the convention resolver. A nil resolver disables
// convention-based registration.
func WithResolver(resolver Resolver) RegistryOption {
	return func(r *Registry) {
		r.resolver = resolver
	}
}

// NewRegistry returns a registry that already knows the batch wrapper media
// type and resolves unknown media types through ConventionResolver.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		codecs:   make(map[string]Codec),
		resolver: ConventionResolver,
	}
	for _, opt := range opts {
		opt(r)
	}
	batch := BatchMessageCodec()
	r.codecs[batch.MediaType()] = batch
	return r
}

// Register binds c to mediaType.
func (r *Registry) Register(mediaType string, c Codec) error {
	if mediaType == "" {
		return errspkg.ErrMediaTypeRequired
	}
	if c == nil {
		return errspkg.ErrCodecRequired
	}
	if c.MediaType() != mediaType {
		return fmt.Errorf("mediaflow: codec for %q registered under %q", c.MediaType(), mediaType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerLocked(mediaType, c)
}

func (r *Registry) registerLocked(mediaType string, c Codec) error {
	if existing, ok := r.codecs[mediaType]; ok {
		if sameCodec(existing, c) {
			return nil
		}
		return &errspkg.AlreadyRegisteredError{MediaType: mediaType}
	}
	r.codecs[mediaType] = c
	return nil
}

// RegisterMediaType registers mediaType with the codec its naming convention
// implies. It fails when no convention applies.
func (r *Registry) RegisterMediaType(mediaType string) error {
	if mediaType == "" {
		return errspkg.ErrMediaTypeRequired
	}
	c := r.resolve(mediaType)
	if c == nil {
		return fmt.Errorf("%w: %q matches no naming convention", errspkg.ErrSchemaNotFound, mediaType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerLocked(mediaType, c)
}

// Find returns the codec of mediaType. Unregistered media types that match a
// naming convention are registered permanently on first lookup.
func (r *Registry) Find(mediaType string) (Codec, error) {
	r.mu.RLock()
	c, ok := r.codecs[mediaType]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}

	resolved := r.resolve(mediaType)
	if resolved == nil {
		return nil, fmt.Errorf("%w: %q", errspkg.ErrSchemaNotFound, mediaType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.codecs[mediaType]; ok {
		return existing, nil
	}
	r.codecs[mediaType] = resolved
	return resolved, nil
}

// MediaTypes lists the registered media types in sorted order.
func (r *Registry) MediaTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.codecs))
	for mt := range r.codecs {
		out = append(out, mt)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) resolve(mediaType string) Codec {
	if r.resolver == nil {
		return nil
	}
	return r.resolver(mediaType)
}

func sameCodec(a, b Codec) bool {
	if eq, ok := a.(Equaler); ok {
		return eq.Equal(b)
	}
	return reflect.DeepEqual(a, b)
}
