package metadata

import (
	"fmt"
	"strconv"
)

// Metadata is the opaque data carried alongside every message, independent
// of its schema fields. On the wire it is the "opaqueData" object.
type Metadata map[string]string

func (m Metadata) cloneWithExtra(extra int) Metadata {
	size := len(m) + extra
	if size <= 0 {
		return Metadata{}
	}

	cloned := make(Metadata, size)
	for k, v := range m {
		cloned[k] = v
	}
	return cloned
}

// Clone returns a shallow copy of the metadata map.
func (m Metadata) Clone() Metadata {
	return m.cloneWithExtra(0)
}

// With returns a cloned metadata map containing the provided key/value pair.
func (m Metadata) With(key, value string) Metadata {
	cloned := m.cloneWithExtra(1)
	cloned[key] = value
	return cloned
}

// WithAll returns a cloned metadata map where entries override existing keys.
func (m Metadata) WithAll(entries Metadata) Metadata {
	cloned := m.cloneWithExtra(len(entries))
	for k, v := range entries {
		cloned[k] = v
	}
	return cloned
}

// New constructs a Metadata map from alternating key/value pairs.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 0; i < len(pairs)-1; i += 2 {
		md[pairs[i]] = pairs[i+1]
	}
	return md
}

// FromAny converts a decoded JSON object (or any string-keyed map) into
// Metadata. Non-string values are stringified; nil values are dropped.
func FromAny(value any) (Metadata, bool) {
	switch v := value.(type) {
	case nil:
		return Metadata{}, true
	case Metadata:
		return v.Clone(), true
	case map[string]string:
		return Metadata(v).Clone(), true
	case map[string]any:
		md := make(Metadata, len(v))
		for k, raw := range v {
			if raw == nil {
				continue
			}
			md[k] = stringify(raw)
		}
		return md, true
	default:
		return nil, false
	}
}

// ToAny returns the metadata as a generic map for inclusion in JSON bodies.
func (m Metadata) ToAny() map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprint(t)
	}
}
