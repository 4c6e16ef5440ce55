package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies an error for propagation and transport mapping.
type Kind string

const (
	KindValidation    Kind = "VALIDATION"
	KindNotFound      Kind = "NOT_FOUND"
	KindBusinessState Kind = "BUSINESS_STATE"
	KindInventory     Kind = "INVENTORY"
	KindConcurrency   Kind = "CONCURRENCY"
	KindExternal      Kind = "EXTERNAL"
	KindFatal         Kind = "FATAL"
)

// Machine-readable error codes carried to clients.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeEventNotFound      = "EVENT_NOT_FOUND"
	CodeBookingNotFound    = "BOOKING_NOT_FOUND"
	CodeSeatNotFound       = "SEAT_NOT_FOUND"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeWaitlistNotFound   = "WAITLIST_ENTRY_NOT_FOUND"
	CodeEventInactive      = "EVENT_INACTIVE"
	CodeInvalidState       = "INVALID_BOOKING_STATE"
	CodeBookingExpired     = "BOOKING_EXPIRED"
	CodeEventHasBookings   = "EVENT_HAS_BOOKINGS"
	CodeEventNotSoldOut    = "EVENT_NOT_SOLD_OUT"
	CodeAlreadyOnWaitlist  = "ALREADY_ON_WAITLIST"
	CodeInsufficientSeats  = "INSUFFICIENT_CAPACITY"
	CodeSeatNotAvailable   = "SEAT_NOT_AVAILABLE"
	CodeSeatHoldExpired    = "SEAT_HOLD_EXPIRED"
	CodeStaleVersion       = "STALE_VERSION"
	CodeLockTimeout        = "LOCK_TIMEOUT"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternal           = "INTERNAL_ERROR"
)

// Error is the tagged error type used across services. Business failures are
// values of this type; only unexpected conditions stay as plain wrapped errors.
type Error struct {
	Kind       Kind
	Code       string
	Message    string
	Details    map[string]interface{}
	RetryAfter time.Duration
	Retryable  bool
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail attaches a named detail (entity id, requested amount, ...).
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

// New creates an error of the given kind.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, code, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a bad-input error.
func Validation(message string) *Error {
	return New(KindValidation, CodeValidation, message)
}

// NotFound creates an entity-missing error. Authorization failures are
// reported through this constructor too, so existence is not leaked.
func NotFound(code, message string) *Error {
	return New(KindNotFound, code, message)
}

// BusinessState creates a state-machine violation error.
func BusinessState(code, message string) *Error {
	return New(KindBusinessState, code, message)
}

// Inventory creates a scarce-resource error.
func Inventory(code, message string) *Error {
	return New(KindInventory, code, message)
}

// Concurrency creates a retryable conflict error. Callers retry these per the
// engine's retry policy; after exhaustion they surface with a retry hint.
func Concurrency(code, message string) *Error {
	return &Error{
		Kind:       KindConcurrency,
		Code:       code,
		Message:    message,
		RetryAfter: time.Second,
		Retryable:  true,
	}
}

// External creates a transient infrastructure error.
func External(message string, cause error) *Error {
	return &Error{
		Kind:       KindExternal,
		Code:       CodeServiceUnavailable,
		Message:    message,
		RetryAfter: time.Second,
		Retryable:  true,
		Err:        cause,
	}
}

// Internal creates a fatal error for invariant violations and programmer
// mistakes. The cause is kept for structured logging.
func Internal(message string, cause error) *Error {
	return &Error{Kind: KindFatal, Code: CodeInternal, Message: message, Err: cause}
}

// KindOf extracts the kind from an error chain; plain errors are Fatal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindFatal
}

// CodeOf extracts the machine code from an error chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsRetryable reports whether the error may succeed on retry.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// AsError extracts the tagged error from a chain, if present.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// HTTPStatus maps an error to a transport status code.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindBusinessState:
		if e.Code == CodeBookingExpired {
			return http.StatusGone
		}
		return http.StatusConflict
	case KindInventory:
		return http.StatusConflict
	case KindConcurrency:
		return http.StatusConflict
	case KindExternal:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Payload shapes the error detail object embedded in API responses.
func Payload(err error) map[string]interface{} {
	var e *Error
	if !errors.As(err, &e) {
		return map[string]interface{}{"code": CodeInternal}
	}
	out := map[string]interface{}{"code": e.Code}
	if len(e.Details) > 0 {
		out["details"] = e.Details
	}
	if e.RetryAfter > 0 {
		out["retry_after_seconds"] = int(e.RetryAfter.Seconds())
	}
	return out
}
