package handlers

import (
	"fmt"
	"sort"
	"sync"

	errspkg "github.com/drblury/mediaflow/internal/runtime/errors"
)

// Registry holds every binding known to the process, keyed by media type and
// then by binding name.
type Registry struct {
	mu       sync.RWMutex
	bindings map[string]map[string]Binding
}

func NewRegistry() *Registry {
	return &Registry{bindings: make(map[string]map[string]Binding)}
}

// Register adds b to the bindings of mediaType. A binding with the same name
// replaces the previous one.
func (r *Registry) Register(mediaType string, b Binding) error {
	if mediaType == "" {
		return errspkg.ErrMediaTypeRequired
	}
	if b.Name == "" {
		return errspkg.ErrHandlerNameRequired
	}
	if (b.Handler == nil) == (b.Factory == nil) {
		return fmt.Errorf("%w: binding %q must set exactly one of handler or factory", errspkg.ErrHandlerRequired, b.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.bindings[mediaType]
	if !ok {
		set = make(map[string]Binding)
		r.bindings[mediaType] = set
	}
	set[b.Name] = b
	return nil
}

// MediaTypes lists the media types with at least one binding.
func (r *Registry) MediaTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.bindings))
	for mt := range r.bindings {
		out = append(out, mt)
	}
	sort.Strings(out)
	return out
}

// NamesOf lists the binding names of mediaType.
func (r *Registry) NamesOf(mediaType string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.bindings[mediaType]
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Names lists every binding name across all media types.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, set := range r.bindings {
		for name := range set {
			seen[name] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Bound computes the handlers active in this process. An empty active list
// activates every binding. More than one active binding for a media type is
// a configuration error.
func (r *Registry) Bound(active []string) (Bound, error) {
	activeSet := make(map[string]struct{}, len(active))
	for _, name := range active {
		activeSet[name] = struct{}{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	bound := make(Bound, len(r.bindings))
	var errs []error
	for mt, set := range r.bindings {
		var matched []Binding
		for name, b := range set {
			if len(activeSet) > 0 {
				if _, ok := activeSet[name]; !ok {
					continue
				}
			}
			matched = append(matched, b)
		}
		switch len(matched) {
		case 0:
		case 1:
			bound[mt] = matched[0]
		default:
			names := make([]string, len(matched))
			for i, b := range matched {
				names[i] = b.Name
			}
			sort.Strings(names)
			errs = append(errs, &errspkg.AmbiguousHandlerError{MediaType: mt, Bindings: names})
		}
	}
	if len(errs) > 0 {
		sort.Slice(errs, func(i, j int) bool {
			return errs[i].(*errspkg.AmbiguousHandlerError).MediaType < errs[j].(*errspkg.AmbiguousHandlerError).MediaType
		})
		return nil, joinErrors(errs)
	}
	return bound, nil
}

// Bound is the active subset of a Registry: at most one binding per media type.
type Bound map[string]Binding

// Find returns the handler for mediaType. Factory bindings are instantiated
// on every call.
func (b Bound) Find(mediaType string) (Handler, string, error) {
	binding, ok := b[mediaType]
	if !ok {
		return nil, "", fmt.Errorf("%w: %q", errspkg.ErrHandlerNotFound, mediaType)
	}
	return binding.instance(), binding.Name, nil
}

// MediaTypes lists the bound media types.
func (b Bound) MediaTypes() []string {
	out := make([]string, 0, len(b))
	for mt := range b {
		out = append(out, mt)
	}
	sort.Strings(out)
	return out
}
