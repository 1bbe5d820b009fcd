// Package envelope turns raw queue bodies into media-typed content. A Parser
// composes two strategies: an Unwrapper that peels transport envelopes off
// the body, and an Extractor that reads the media type and decodes content.
package envelope

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/drblury/mediaflow/internal/runtime/codec"
	errspkg "github.com/drblury/mediaflow/internal/runtime/errors"
	"github.com/drblury/mediaflow/internal/runtime/metadata"
)

// Parsed is the result of parsing one body. Content is nil when the media
// type has no schema; the dispatcher treats that as unroutable.
type Parsed struct {
	MediaType  string
	Content    codec.Fields
	OpaqueData metadata.Metadata
}

// Unwrapper returns the user message carried by a raw body.
type Unwrapper func(body string) (string, error)

// Extractor reads the media type of a user message and decodes it.
type Extractor func(body string) (Parsed, error)

// Parser composes an Unwrapper and an Extractor.
type Parser struct {
	unwrap         Unwrapper
	extract        Extractor
	verifyChecksum bool
}

// Option customizes a Parser.
type Option func(*Parser)

// WithChecksum compares the MD5 hex digest of every raw body with the
// checksum reported by the queue backend. Bodies without a reported checksum
// are not checked.
func WithChecksum() Option {
	return func(p *Parser) {
		p.verifyChecksum = true
	}
}

// New builds a parser from its two strategies.
func New(unwrap Unwrapper, extract Extractor, opts ...Option) *Parser {
	p := &Parser{unwrap: unwrap, extract: extract}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PassThrough parses plain JSON bodies without any schema. Useful in tests.
func PassThrough(opts ...Option) *Parser {
	return New(Raw, RawJSON, opts...)
}

// BrokerSchemaDriven parses notification-broker wrapped bodies through the
// schema registry. This is the production default for SNS fed SQS queues.
func BrokerSchemaDriven(schemas SchemaFinder, opts ...Option) *Parser {
	return New(BrokerWrapped, SchemaDriven(schemas), opts...)
}

// LocalSchemaDriven parses unwrapped bodies through the schema registry, for
// backends that deliver published bodies as-is.
func LocalSchemaDriven(schemas SchemaFinder, opts ...Option) *Parser {
	return New(Raw, SchemaDriven(schemas), opts...)
}

// Parse converts a raw body into a Parsed message. id only labels errors.
func (p *Parser) Parse(id, body, checksum string) (Parsed, error) {
	if p.verifyChecksum && checksum != "" {
		if actual := Checksum(body); !strings.EqualFold(actual, checksum) {
			return Parsed{}, &errspkg.ChecksumMismatchError{MessageID: id, Expected: checksum, Actual: actual}
		}
	}
	inner, err := p.unwrap(body)
	if err != nil {
		return Parsed{}, fmt.Errorf("mediaflow: unwrap message %s: %w", id, err)
	}
	parsed, err := p.extract(inner)
	if err != nil {
		return Parsed{}, fmt.Errorf("mediaflow: extract message %s: %w", id, err)
	}
	if parsed.OpaqueData == nil {
		parsed.OpaqueData = metadata.Metadata{}
	}
	return parsed, nil
}

// Checksum returns the MD5 hex digest of body, the digest SQS reports as
// MD5OfBody.
func Checksum(body string) string {
	sum := md5.Sum([]byte(body))
	return hex.EncodeToString(sum[:])
}

var (
	errMissingMessage   = errors.New("broker envelope has no string \"Message\" field")
	errMissingMediaType = errors.New("message has no \"mediaType\"")
	errOpaqueData       = errors.New("\"opaqueData\" must be an object")
)
