package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a record does not exist or is soft-deleted.
var ErrNotFound = errors.New("not found")

// ErrStoreUnavailable signals that the persistence store itself is
// unreachable, as opposed to a per-record persistence failure.
var ErrStoreUnavailable = errors.New("store unavailable")

// ValidationError is a caller fault: unknown region, degenerate bounding box,
// malformed query. It is surfaced immediately and never retried; no run or
// partial state is created for it.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// UpstreamKind classifies failures of the external directory service.
type UpstreamKind int

const (
	// UpstreamTransient covers timeouts, connection resets and 5xx
	// responses. Retryable with short backoff.
	UpstreamTransient UpstreamKind = iota
	// UpstreamRateLimited is an explicit backoff signal from the upstream
	// quota system. Retryable only after an extended delay.
	UpstreamRateLimited
	// UpstreamPermanent covers bad credentials and unsupported operations.
	// Never retried; aborts the calling run.
	UpstreamPermanent
	// UpstreamNotFound means the requested entity does not exist upstream.
	UpstreamNotFound
)

func (k UpstreamKind) String() string {
	switch k {
	case UpstreamTransient:
		return "transient"
	case UpstreamRateLimited:
		return "rate_limited"
	case UpstreamPermanent:
		return "permanent"
	case UpstreamNotFound:
		return "not_found"
	}
	return "unknown"
}

// UpstreamError is a classified failure of an external directory call. The
// client never surfaces raw transport errors; every failure is wrapped in one
// of the four kinds.
type UpstreamError struct {
	Kind UpstreamKind
	Op   string // "nearby" or "details"
	Msg  string
	Err  error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s (%s): %s: %v", e.Op, e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("upstream %s (%s): %s", e.Op, e.Kind, e.Msg)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// UpstreamKindOf extracts the classification from err. The second return
// value is false when err is not an upstream error.
func UpstreamKindOf(err error) (UpstreamKind, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Kind, true
	}
	return 0, false
}
