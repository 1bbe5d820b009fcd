package jsoncodec

import "errors"

var errNotObject = errors.New("jsoncodec: document is not a JSON object")
