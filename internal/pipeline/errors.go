package pipeline

import (
	"errors"
	"fmt"
)

// Kind partitions every failure the write path can produce. Handlers map
// kinds to HTTP status codes; recoverable kinds (UpstreamUnavailable,
// StoreConflict) are absorbed inside the pipeline and never reach a caller.
type Kind int

const (
	KindInvalidInput        Kind = iota + 1 // missing fields, bad types, out-of-range values, malformed dates
	KindUnauthorized                        // missing bearer token
	KindForbidden                           // bad token, disallowed origin
	KindMaliciousContent                    // XSS detector fired
	KindOutOfScope                          // geographic or temporal gate
	KindRejected                            // classifier verdict (policy/defense/simulation/foreign/not_drone/satire)
	KindUpstreamUnavailable                 // LLM or embedding provider down after retries
	KindStoreConflict                       // unique collision on source_url; a merge signal, not a failure
	KindStoreFailure                        // any other storage error
	KindTimeout                             // per-call or request deadline exceeded
)

// Error is the pipeline's rejection/failure value. Category is the short
// machine-readable string surfaced to callers ("satire_domain", "foreign",
// "policy"); Detail is for server-side logs only and must never be returned
// over HTTP.
type Error struct {
	Kind     Kind
	Category string
	Detail   string
	Err      error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Category, e.Detail)
	}
	return e.Category
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Reject builds a caller-caused rejection with a category string.
func Reject(kind Kind, category, detail string) *Error {
	return &Error{Kind: kind, Category: category, Detail: detail}
}

// Fail wraps a server-side failure.
func Fail(kind Kind, category string, err error) *Error {
	return &Error{Kind: kind, Category: category, Detail: fmt.Sprint(err), Err: err}
}

// KindOf extracts the Kind from an error chain; unknown errors are treated
// as store failures so they surface as a generic 5xx.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindStoreFailure
}

// CategoryOf extracts the caller-visible category, or "internal" when the
// error carries none.
func CategoryOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) && pe.Category != "" {
		return pe.Category
	}
	return "internal"
}

// CallerCaused reports whether the error should map to a 4xx.
func CallerCaused(err error) bool {
	switch KindOf(err) {
	case KindInvalidInput, KindUnauthorized, KindForbidden, KindMaliciousContent, KindOutOfScope, KindRejected:
		return true
	}
	return false
}
