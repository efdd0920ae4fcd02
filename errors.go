package tubecore

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed failure taxonomy shared by the extraction and
// download sides of the core.
type ErrorKind string

const (
	// Extraction-side kinds, assigned by the gateway.
	KindRateLimited ErrorKind = "rate_limited"
	KindNotFound    ErrorKind = "not_found"
	KindUnavailable ErrorKind = "unavailable" // geo/age/private restriction
	KindTransient   ErrorKind = "transient"   // network error or timeout
	KindMalformed   ErrorKind = "malformed"   // unexpected response shape

	// Download-side kinds, assigned by the orchestrator.
	KindTransportFailure ErrorKind = "transport_failure"
	KindDiskFailure      ErrorKind = "disk_failure"
	KindCancelled        ErrorKind = "cancelled"
)

// Error is a classified failure. Op names the operation that failed, Err is
// the underlying cause (may itself be a multierror covering a whole fallback
// chain).
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the classified kind of err, or KindTransient if err carries
// no classification. A nil error has no kind.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindTransient
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
