// Package mediatype parses and builds media type strings of the form
// <vendor>.<visibility>.<lifecycle>.<resource>.
package mediatype

import (
	"fmt"
	"strings"
)

// Lifecycle is the change a message announces for its resource.
type Lifecycle string

const (
	Created Lifecycle = "created"
	Changed Lifecycle = "changed"
	Deleted Lifecycle = "deleted"
)

const (
	Internal = "internal"
	Public   = "public"
)

// DefaultMarker is the media type given to payloads extracted without a
// schema lookup.
const DefaultMarker = "application/json"

// Batch is the media type of batch wrapper messages.
const Batch = "mediaflow.internal.batch.message"

// MediaType is a parsed media type.
type MediaType struct {
	Vendor     string
	Visibility string
	Lifecycle  Lifecycle
	Resource   string
}

// Parse splits s into its parts. The resource may itself contain dots. Any
// lifecycle token is accepted; use KnownLifecycle to check it.
func Parse(s string) (MediaType, error) {
	parts := strings.Split(s, ".")
	if len(parts) < 4 {
		return MediaType{}, fmt.Errorf("mediaflow: media type %q must have at least 4 dot separated parts", s)
	}
	for i, p := range parts {
		if p == "" {
			return MediaType{}, fmt.Errorf("mediaflow: media type %q has an empty part at position %d", s, i)
		}
	}
	return MediaType{
		Vendor:     parts[0],
		Visibility: parts[1],
		Lifecycle:  Lifecycle(parts[2]),
		Resource:   strings.Join(parts[3:], "."),
	}, nil
}

func (m MediaType) String() string {
	return strings.Join([]string{m.Vendor, m.Visibility, string(m.Lifecycle), m.Resource}, ".")
}

// KnownLifecycle reports whether l is one of created, changed or deleted.
func KnownLifecycle(l Lifecycle) bool {
	switch l {
	case Created, Changed, Deleted:
		return true
	}
	return false
}

// LifecycleOf returns the lifecycle of s, or false when s does not parse or
// its lifecycle is not one of the known changes.
func LifecycleOf(s string) (Lifecycle, bool) {
	mt, err := Parse(s)
	if err != nil || !KnownLifecycle(mt.Lifecycle) {
		return "", false
	}
	return mt.Lifecycle, true
}

// Builder produces the media types of one resource.
type Builder struct {
	Vendor     string
	Visibility string
	Resource   string
}

// For returns a public builder for resource.
func For(vendor, resource string) Builder {
	return Builder{Vendor: vendor, Visibility: Public, Resource: resource}
}

// Internal returns a copy of b with internal visibility.
func (b Builder) Internal() Builder {
	b.Visibility = Internal
	return b
}

func (b Builder) build(l Lifecycle) string {
	return MediaType{Vendor: b.Vendor, Visibility: b.Visibility, Lifecycle: l, Resource: b.Resource}.String()
}

func (b Builder) Created() string { return b.build(Created) }
func (b Builder) Changed() string { return b.build(Changed) }
func (b Builder) Deleted() string { return b.build(Deleted) }

// All returns the created, changed and deleted media types of b.
func (b Builder) All() []string {
	return []string{b.Created(), b.Changed(), b.Deleted()}
}
