// Package jsoncodec is the single JSON entry point for wire bodies, envelopes
// and batch wrappers. It uses sonic in standard-library compatible mode so
// map keys are sorted and HTML is escaped exactly like encoding/json.
package jsoncodec

import (
	"github.com/bytedance/sonic"
)

var defaultConfig = sonic.ConfigStd

func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

// MarshalToString encodes v into a wire string.
func MarshalToString(v any) (string, error) {
	return defaultConfig.MarshalToString(v)
}

func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}

// UnmarshalString decodes a wire string into v.
func UnmarshalString(body string, v any) error {
	return defaultConfig.UnmarshalFromString(body, v)
}

// DecodeObject decodes body into a generic JSON object. Non-object documents
// are rejected.
func DecodeObject(body string) (map[string]any, error) {
	var out map[string]any
	if err := UnmarshalString(body, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errNotObject
	}
	return out, nil
}

func Valid(data []byte) bool {
	return defaultConfig.Valid(data)
}
