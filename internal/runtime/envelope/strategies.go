package envelope

import (
	"errors"

	"github.com/drblury/mediaflow/internal/runtime/codec"
	errspkg "github.com/drblury/mediaflow/internal/runtime/errors"
	"github.com/drblury/mediaflow/internal/runtime/jsoncodec"
	"github.com/drblury/mediaflow/internal/runtime/mediatype"
	"github.com/drblury/mediaflow/internal/runtime/metadata"
)

// SchemaFinder looks up the codec of a media type. *codec.Registry
// implements it.
type SchemaFinder interface {
	Find(mediaType string) (codec.Codec, error)
}

// BrokerMessageKey is the field of an SNS notification that carries the
// published body.
const BrokerMessageKey = "Message"

// Raw treats the body as the user message.
func Raw(body string) (string, error) {
	return body, nil
}

// BrokerWrapped reads the user message from the "Message" field of a
// notification-broker envelope.
func BrokerWrapped(body string) (string, error) {
	wrapper, err := jsoncodec.DecodeObject(body)
	if err != nil {
		return "", err
	}
	inner, ok := wrapper[BrokerMessageKey].(string)
	if !ok {
		return "", errMissingMessage
	}
	return inner, nil
}

// RawJSON decodes the body as a generic JSON object under the default media
// type marker.
func RawJSON(body string) (Parsed, error) {
	obj, err := jsoncodec.DecodeObject(body)
	if err != nil {
		return Parsed{}, err
	}
	md, ok := metadata.FromAny(obj[codec.KeyOpaqueData])
	if !ok {
		return Parsed{}, errOpaqueData
	}
	return Parsed{MediaType: mediatype.DefaultMarker, Content: codec.Fields(obj), OpaqueData: md}, nil
}

// SchemaDriven reads mediaType and opaqueData from the body, then decodes it
// with the codec registered for that media type. An unknown media type is not
// an error: the result carries nil content.
func SchemaDriven(schemas SchemaFinder) Extractor {
	return func(body string) (Parsed, error) {
		obj, err := jsoncodec.DecodeObject(body)
		if err != nil {
			return Parsed{}, err
		}
		mediaType, _ := obj[codec.KeyMediaType].(string)
		if mediaType == "" {
			return Parsed{}, errMissingMediaType
		}
		md, ok := metadata.FromAny(obj[codec.KeyOpaqueData])
		if !ok {
			return Parsed{}, errOpaqueData
		}
		parsed := Parsed{MediaType: mediaType, OpaqueData: md}

		c, err := schemas.Find(mediaType)
		if errors.Is(err, errspkg.ErrSchemaNotFound) {
			return parsed, nil
		}
		if err != nil {
			return Parsed{}, err
		}
		content, err := c.Decode(body)
		if err != nil {
			return Parsed{}, err
		}
		parsed.Content = content
		return parsed, nil
	}
}
