package result

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		name   string
		ok     bool
		err    error
		kind   Kind
		retry  bool
		reason string
	}{
		{"success", true, nil, Succeeded, false, ""},
		{"declined", false, nil, Skipped, false, ReasonDeclined},
		{"ignore", false, ErrIgnore, Ignored, false, ErrIgnore.Error()},
		{"wrapped ignore", false, fmt.Errorf("stale: %w", ErrIgnore), Ignored, false, "stale: " + ErrIgnore.Error()},
		{"skip", false, Skip("already shipped", nil), Skipped, false, "already shipped"},
		{"hop limit", false, ErrHopLimitExceeded, Expired, false, ReasonHopLimit},
		{"retry", false, RetryAfter(3, nil), Retried, true, "mediaflow: retry after 3s"},
		{"failure", false, boom, Failed, true, "boom"},
		{"failure ignores ok", true, boom, Failed, true, "boom"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.ok, tc.err)
			assert.Equal(t, tc.kind, got.Kind)
			assert.Equal(t, tc.retry, got.Retry())
			assert.Equal(t, tc.reason, got.Reason)
		})
	}
}

func TestClassifyRetryCarriesDelay(t *testing.T) {
	got := Classify(false, fmt.Errorf("lagging replica: %w", RetryAfter(3, errors.New("not found"))))
	require.NotNil(t, got.RetryAfter)
	assert.Equal(t, 3, *got.RetryAfter)
	assert.Equal(t, Retried, got.Kind)
}

func TestClassifySkipCarriesExtra(t *testing.T) {
	got := Classify(false, Skip("duplicate", map[string]any{"order_id": "o-1"}))
	assert.Equal(t, map[string]any{"order_id": "o-1"}, got.Extra)
	assert.Nil(t, got.Err)
}

func TestSignalsMatchSentinels(t *testing.T) {
	cause := errors.New("lag")
	retry := RetryAfter(2, cause)
	assert.ErrorIs(t, retry, ErrRetry)
	assert.ErrorIs(t, retry, cause)
	assert.ErrorIs(t, Skip("x", nil), ErrSkip)
	assert.Equal(t, "mediaflow: retry after 2s: lag", retry.Error())
	assert.Equal(t, "mediaflow: skip message: x", Skip("x", nil).Error())
}

func TestPanicked(t *testing.T) {
	got := Panicked("kaboom", []byte("goroutine 1"))
	assert.Equal(t, Failed, got.Kind)
	assert.True(t, got.Retry())

	var p *PanicError
	require.True(t, errors.As(got.Err, &p))
	assert.Equal(t, "goroutine 1", p.Stack)

	inner := errors.New("nil map")
	assert.ErrorIs(t, Panicked(inner, nil).Err, inner)
}
