package codec

import (
	"fmt"
	"math"
	"sort"

	errspkg "github.com/drblury/mediaflow/internal/runtime/errors"
	"github.com/drblury/mediaflow/internal/runtime/jsoncodec"
	"github.com/drblury/mediaflow/internal/runtime/metadata"
)

// FieldType constrains the JSON type of a schema field.
type FieldType int

const (
	Any FieldType = iota
	String
	Int
	Float
	Bool
	Object
	Array
)

func (t FieldType) String() string {
	switch t {
	case String:
		return "string"
	case Int:
		return "integer"
	case Float:
		return "number"
	case Bool:
		return "boolean"
	case Object:
		return "object"
	case Array:
		return "array"
	default:
		return "any"
	}
}

// Field declares one schema field.
type Field struct {
	Name     string
	Type     FieldType
	Required bool
}

// Required is shorthand for a required field.
func Required(name string, typ FieldType) Field {
	return Field{Name: name, Type: typ, Required: true}
}

// Optional is shorthand for an optional field.
func Optional(name string, typ FieldType) Field {
	return Field{Name: name, Type: typ}
}

// JSONCodec validates messages against a flat list of typed fields.
type JSONCodec struct {
	mediaType string
	fields    []Field
}

// NewJSONCodec returns a codec for mediaType with the given schema. Fields are
// kept sorted by name so equal schemas compare equal regardless of order.
func NewJSONCodec(mediaType string, fields ...Field) *JSONCodec {
	sorted := append([]Field(nil), fields...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return &JSONCodec{mediaType: mediaType, fields: sorted}
}

func (c *JSONCodec) MediaType() string {
	return c.mediaType
}

// Schema returns a copy of the declared fields.
func (c *JSONCodec) Schema() []Field {
	return append([]Field(nil), c.fields...)
}

func (c *JSONCodec) Encode(fields Fields) (string, error) {
	out, err := c.validate(fields)
	if err != nil {
		return "", err
	}
	out[KeyMediaType] = c.mediaType
	if md := fields.OpaqueData(); len(md) > 0 {
		out[KeyOpaqueData] = md.ToAny()
	}
	body, err := jsoncodec.MarshalToString(out)
	if err != nil {
		return "", &errspkg.ValidationError{MediaType: c.mediaType, Reason: "cannot be serialized", Cause: err}
	}
	return body, nil
}

func (c *JSONCodec) Decode(body string) (Fields, error) {
	raw, err := jsoncodec.DecodeObject(body)
	if err != nil {
		return nil, &errspkg.ValidationError{MediaType: c.mediaType, Reason: "is not a JSON object", Cause: err}
	}
	out, err := c.validate(Fields(raw))
	if err != nil {
		return nil, err
	}
	out[KeyMediaType] = c.mediaType
	md, ok := metadata.FromAny(raw[KeyOpaqueData])
	if !ok {
		return nil, &errspkg.ValidationError{MediaType: c.mediaType, Field: KeyOpaqueData, Reason: "must be an object"}
	}
	out[KeyOpaqueData] = md
	return out, nil
}

// validate copies the declared fields out of in, dropping everything else.
func (c *JSONCodec) validate(in Fields) (Fields, error) {
	out := make(Fields, len(c.fields)+2)
	for _, f := range c.fields {
		v, present := in[f.Name]
		if !present || v == nil {
			if f.Required {
				return nil, &errspkg.ValidationError{MediaType: c.mediaType, Field: f.Name, Reason: "is required"}
			}
			continue
		}
		normalized, ok := coerce(f.Type, v)
		if !ok {
			return nil, &errspkg.ValidationError{
				MediaType: c.mediaType,
				Field:     f.Name,
				Reason:    fmt.Sprintf("must be of type %s, got %T", f.Type, v),
			}
		}
		out[f.Name] = normalized
	}
	return out, nil
}

// coerce checks v against typ. Numbers decoded from JSON arrive as float64,
// so integral floats are accepted for Int and returned as int64.
func coerce(typ FieldType, v any) (any, bool) {
	switch typ {
	case Any:
		return v, true
	case String:
		s, ok := v.(string)
		return s, ok
	case Bool:
		b, ok := v.(bool)
		return b, ok
	case Int:
		switch n := v.(type) {
		case int:
			return int64(n), true
		case int32:
			return int64(n), true
		case int64:
			return n, true
		case float64:
			if n != math.Trunc(n) || math.IsInf(n, 0) {
				return nil, false
			}
			return int64(n), true
		}
		return nil, false
	case Float:
		switch n := v.(type) {
		case float64:
			return n, true
		case float32:
			return float64(n), true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		}
		return nil, false
	case Object:
		switch v.(type) {
		case map[string]any, Fields, map[string]string, metadata.Metadata:
			return v, true
		}
		return nil, false
	case Array:
		switch v.(type) {
		case []any, []string, []map[string]any:
			return v, true
		}
		return nil, false
	}
	return nil, false
}
