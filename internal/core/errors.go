package core

import (
	"errors"
	"fmt"
)

// Kind is the semantic error taxonomy from the error handling design: these
// are not Go types, just a tag carried by CoreError so retry/logging logic
// can switch on it without type assertions.
type Kind string

const (
	KindConfig         Kind = "config"
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindUnauthorized   Kind = "unauthorized"
	KindForbidden      Kind = "forbidden"
	KindNetwork        Kind = "network"
	KindRateLimited    Kind = "rate_limited"
	KindTimeout        Kind = "timeout"
	KindMalformed      Kind = "provider_malformed"
	KindCancelled      Kind = "cancelled"
	KindNotReady       Kind = "not_ready"
)

// CoreError wraps an underlying error with the kind and operation name that
// produced it, so callers can classify without string matching.
type CoreError struct {
	Kind Kind
	Op   string
	Err  error

	// Suggestion is an optional operator-facing recovery hint, used for
	// Unauthorized/Forbidden per the error handling design.
	Suggestion string

	// Path is the repository-relative file path this error concerns, set
	// by per-file acquisition failures so a caller can record a
	// SkippedFile without parsing Error()'s text. Empty when the error
	// isn't about a specific file.
	Path string
}

func (e *CoreError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Suggestion)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CoreError) Unwrap() error { return e.Err }

// NewError constructs a CoreError, wrapping err unless it is nil.
func NewError(kind Kind, op string, err error) *CoreError {
	return &CoreError{Kind: kind, Op: op, Err: err}
}

// NewErrorf constructs a CoreError from a format string.
func NewErrorf(kind Kind, op, format string, args ...any) *CoreError {
	return &CoreError{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// NewFileError constructs a CoreError about a specific repository-relative
// path, so callers can recover the path structurally via PathOf instead of
// parsing Error()'s text.
func NewFileError(kind Kind, op, path string, err error) *CoreError {
	return &CoreError{Kind: kind, Op: op, Err: err, Path: path}
}

// KindOf extracts the Kind from err, returning "" if err is not (or does
// not wrap) a *CoreError.
func KindOf(err error) Kind {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// PathOf extracts the Path from err, returning "" if err is not (or does
// not wrap) a *CoreError, or carries no path.
func PathOf(err error) string {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Path
	}
	return ""
}

// IsRetryable reports whether err's kind is one the retry discipline in the
// concurrency & resource model should retry: Network, RateLimited, Timeout,
// and ProviderMalformed-adjacent transient 5xx (classified as Network by
// callers). Config, Validation, NotFound, Unauthorized, Forbidden,
// ProviderMalformed, Cancelled, and NotReady are never retried.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindRateLimited, KindTimeout:
		return true
	default:
		return false
	}
}

var (
	// ErrNotFound is a lightweight sentinel for callers that only need
	// errors.Is, e.g. repository/record lookups.
	ErrNotFound = errors.New("not found")
	// ErrNotReady is the sentinel for the not-ready condition. The RAG
	// Engine does not return it; it reports a repository with no committed
	// index as a CoreError of KindNotReady.
	ErrNotReady = errors.New("repository not ready")
	// ErrCancelled is returned by in-flight operations aborted via context
	// cancellation or an explicit stop request.
	ErrCancelled = errors.New("operation cancelled")
)
