// Package backoff computes the visibility timeout applied when a message is
// returned to the queue after a failed or retried delivery.
package backoff

import (
	"math/rand/v2"
)

// MaxTimeout is the largest visibility timeout a policy may return (12h).
const MaxTimeout = 43200

// maxExponent keeps 2^n - 1 inside int64.
const maxExponent = 62

// Policy computes a visibility timeout in seconds for a message that has been
// received receiveCount times. explicit is a caller-chosen override. A nil
// result means the policy has no opinion.
type Policy interface {
	ComputeTimeout(receiveCount int, explicit *int) *int
}

// Naive returns the explicit override when given, else Default.
type Naive struct {
	Default *int
}

func (n Naive) ComputeTimeout(_ int, explicit *int) *int {
	if explicit != nil {
		return clamp(*explicit)
	}
	if n.Default != nil {
		return clamp(*n.Default)
	}
	return nil
}

// Exponential draws a uniformly random timeout in [1, 2^n - 1] where n is the
// receive count, capped at MaxTimeout. The lower bound is 1, not 0, so a
// failed message is never made visible again immediately.
type Exponential struct {
	// Draw returns a uniform integer in [0, n). Defaults to rand.Int64N.
	Draw func(n int64) int64
}

func (e Exponential) ComputeTimeout(receiveCount int, explicit *int) *int {
	if explicit != nil {
		return clamp(*explicit)
	}
	n := receiveCount
	if n < 1 {
		n = 1
	}
	if n > maxExponent {
		n = maxExponent
	}
	upper := int64(1)<<uint(n) - 1

	draw := e.Draw
	if draw == nil {
		draw = rand.Int64N
	}
	timeout := 1 + draw(upper)
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}
	v := int(timeout)
	return &v
}

func clamp(v int) *int {
	switch {
	case v < 0:
		v = 0
	case v > MaxTimeout:
		v = MaxTimeout
	}
	return &v
}

// Seconds is a convenience for building explicit overrides.
func Seconds(v int) *int {
	return &v
}
