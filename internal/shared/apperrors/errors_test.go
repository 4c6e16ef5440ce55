package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOfWrappedError(t *testing.T) {
	base := Concurrency(CodeStaleVersion, "event was modified concurrently")
	wrapped := fmt.Errorf("create booking: %w", base)

	assert.Equal(t, KindConcurrency, KindOf(wrapped))
	assert.Equal(t, CodeStaleVersion, CodeOf(wrapped))
	assert.True(t, IsRetryable(wrapped))
}

func TestKindOfPlainError(t *testing.T) {
	err := errors.New("boom")

	assert.Equal(t, KindFatal, KindOf(err))
	assert.Equal(t, CodeInternal, CodeOf(err))
	assert.False(t, IsRetryable(err))
}

func TestConcurrencyCarriesRetryHint(t *testing.T) {
	err := Concurrency(CodeLockTimeout, "could not acquire lock")

	require.True(t, err.Retryable)
	assert.Equal(t, time.Second, err.RetryAfter)

	payload := Payload(err)
	assert.Equal(t, 1, payload["retry_after_seconds"])
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("quantity must be positive"), http.StatusBadRequest},
		{"not found", NotFound(CodeBookingNotFound, "booking not found"), http.StatusNotFound},
		{"business state", BusinessState(CodeInvalidState, "cannot cancel"), http.StatusConflict},
		{"expired", BusinessState(CodeBookingExpired, "booking expired"), http.StatusGone},
		{"inventory", Inventory(CodeInsufficientSeats, "not enough tickets"), http.StatusConflict},
		{"concurrency", Concurrency(CodeStaleVersion, "conflict"), http.StatusConflict},
		{"external", External("redis unreachable", errors.New("dial tcp")), http.StatusServiceUnavailable},
		{"fatal", Internal("invariant breach", nil), http.StatusInternalServerError},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestWithDetailAccumulates(t *testing.T) {
	err := Inventory(CodeSeatNotAvailable, "seat is not available").
		WithDetail("seat_id", "abc").
		WithDetail("current_status", "HELD")

	payload := Payload(err)
	details, ok := payload["details"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "abc", details["seat_id"])
	assert.Equal(t, "HELD", details["current_status"])
}

func TestUnwrapPreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := External("store unavailable", cause)

	assert.True(t, errors.Is(err, cause))
}
