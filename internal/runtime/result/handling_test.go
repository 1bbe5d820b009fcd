package result

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFailedResultCarriesErrorInfo(t *testing.T) {
	since := 2 * time.Second
	r := New("m-1", "acme.public.created.order", "billing", Classify(false, errors.New("db down")), 15*time.Millisecond, &since)

	require.NotNil(t, r.Error)
	assert.Equal(t, "db down", r.Error.Message)
	assert.Equal(t, "*errors.errorString", r.Error.Type)
	assert.True(t, r.Retry)
	assert.Nil(t, r.RetryTimeout)
	assert.Equal(t, LevelError, r.Level())

	fields := r.LogFields()
	assert.Equal(t, "FAILED", fields["outcome"])
	assert.Equal(t, int64(15), fields["elapsed_ms"])
	assert.Equal(t, int64(2000), fields["since_published_ms"])
	assert.Equal(t, "billing", fields["handler"])
}

func TestNewNonFailedResultsHaveNoErrorInfo(t *testing.T) {
	for _, outcome := range []Outcome{
		Classify(true, nil),
		Classify(false, RetryAfter(3, errors.New("lag"))),
		Classify(false, ErrHopLimitExceeded),
	} {
		r := New("m", "mt", "", outcome, 0, nil)
		assert.Nil(t, r.Error, outcome.Kind)
	}
}

func TestLevels(t *testing.T) {
	levels := map[Kind]Level{
		Succeeded: LevelInfo,
		Skipped:   LevelInfo,
		Retried:   LevelInfo,
		Ignored:   LevelDebug,
		Expired:   LevelWarn,
		Failed:    LevelError,
	}
	for kind, want := range levels {
		assert.Equal(t, want, MessageHandlingResult{Kind: kind}.Level(), kind)
	}
	assert.Len(t, Kinds, len(levels))
}

func TestLogFieldsMergesExtraWithoutOverwriting(t *testing.T) {
	r := New("m-1", "mt", "", Classify(false, Skip("dup", map[string]any{"order_id": "o-1", "outcome": "nope"})), time.Millisecond, nil)
	fields := r.LogFields()
	assert.Equal(t, "o-1", fields["order_id"])
	assert.Equal(t, "SKIPPED", fields["outcome"])
	assert.Equal(t, "dup", fields["reason"])
	assert.NotContains(t, fields, "since_published_ms")
	assert.NotContains(t, fields, "handler")

	retried := New("m-2", "mt", "", Classify(false, RetryAfter(3, nil)), 0, nil)
	assert.Equal(t, 3, retried.LogFields()["retry_timeout"])
}

func TestNewErrorInfoIncludesPanicStack(t *testing.T) {
	info := NewErrorInfo(Panicked("x", []byte("stack")).Err)
	assert.Equal(t, "stack", info.Stack)
	assert.Nil(t, NewErrorInfo(nil))
}
