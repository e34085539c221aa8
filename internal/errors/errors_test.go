package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesCategoryAndSeverity(t *testing.T) {
	tests := []struct {
		code         string
		wantCategory Category
		wantSeverity Severity
		wantRetry    bool
	}{
		{ErrCodeConfigInvalid, CategoryConfig, SeverityFatal, false},
		{ErrCodeDimensionMismatch, CategoryIndex, SeverityFatal, false},
		{ErrCodeDuplicateID, CategoryIndex, SeverityFatal, false},
		{ErrCodeSourceTimeout, CategorySource, SeverityError, true},
		{ErrCodeSourceFailed, CategorySource, SeverityError, true},
		{ErrCodeInvalidWeights, CategoryValidation, SeverityFatal, false},
		{ErrCodeAllSourcesFailed, CategoryInternal, SeverityFatal, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "msg", nil)
			assert.Equal(t, tt.wantCategory, err.Category)
			assert.Equal(t, tt.wantSeverity, err.Severity)
			assert.Equal(t, tt.wantRetry, err.Retryable)
		})
	}
}

func TestQuadError_ErrorFormat(t *testing.T) {
	err := New(ErrCodeDuplicateID, "id already present", nil)
	assert.Equal(t, "[ERR_202_DUPLICATE_ID] id already present", err.Error())
}

func TestQuadError_IsAndUnwrap(t *testing.T) {
	cause := stderrors.New("underlying")
	err := New(ErrCodeSourceFailed, "graph store down", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, stderrors.Is(err, New(ErrCodeSourceFailed, "other message", nil)))
	assert.False(t, stderrors.Is(err, New(ErrCodeSourceTimeout, "other", nil)))
}

func TestQuadError_WrappedThroughFmt(t *testing.T) {
	inner := New(ErrCodeAllSourcesFailed, "no usable results", nil)
	outer := fmt.Errorf("search: %w", inner)

	var qe *QuadError
	require.True(t, stderrors.As(outer, &qe))
	assert.Equal(t, ErrCodeAllSourcesFailed, qe.Code)
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrCodeDimensionMismatch, "bad vector", nil).
		WithDetail("expected", "128").
		WithDetail("got", "64")

	assert.Equal(t, "128", err.Details["expected"])
	assert.Equal(t, "64", err.Details["got"])
}

func TestHelpers(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(stderrors.New("plain")))
	assert.True(t, IsRetryable(New(ErrCodeSourceTimeout, "slow", nil)))

	assert.True(t, IsFatal(New(ErrCodeInvalidOptions, "bad", nil)))
	assert.False(t, IsFatal(New(ErrCodeSourceFailed, "down", nil)))

	assert.Equal(t, ErrCodeInternal, GetCode(InternalError("x", nil)))
	assert.Equal(t, "", GetCode(stderrors.New("plain")))
	assert.Equal(t, CategorySource, GetCategory(SourceError("x", nil)))
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}

	calls := 0
	err := Retry(t.Context(), cfg, func() error {
		calls++
		if calls < 3 {
			return stderrors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}

	sentinel := stderrors.New("always")
	calls := 0
	err := Retry(t.Context(), cfg, func() error {
		calls++
		return sentinel
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 3, calls) // initial + 2 retries
}

func TestRetryWithResult(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}

	calls := 0
	got, err := RetryWithResult(t.Context(), cfg, func() (int, error) {
		calls++
		if calls == 1 {
			return 0, stderrors.New("transient")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	cb := NewCircuitBreaker("graph", WithMaxFailures(2), WithResetTimeout(time.Hour))

	assert.Equal(t, StateClosed, cb.State())

	fail := func() error { return stderrors.New("down") }
	_ = cb.Execute(fail)
	assert.Equal(t, StateClosed, cb.State())
	_ = cb.Execute(fail)
	assert.Equal(t, StateOpen, cb.State())

	err := cb.Execute(func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker("memory", WithMaxFailures(1), WithResetTimeout(time.Millisecond))

	_ = cb.Execute(func() error { return stderrors.New("down") })
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())

	// Successful probe closes the circuit.
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
}
