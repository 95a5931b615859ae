// Package errkind defines the error taxonomy used across the extraction
// pipeline. Every failure surfaced from an external dependency is classified
// into exactly one Kind, which drives retry behaviour and the process exit
// code.
package errkind

import (
	"context"
	"fmt"
	"net"

	"github.com/pkg/errors"

	"github.com/siphon-data/siphon/constants"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindConfiguration covers missing or invalid ERP/client configuration. Fatal, never retried.
	KindConfiguration
	// KindCredential covers missing, expired or unauthorized secrets. Fatal, never retried.
	KindCredential
	// KindTransient covers timeouts, 5xx/429, connection resets and deadlocks. Retried with backoff.
	KindTransient
	// KindPersistent covers auth failures, schema mismatches and SQL syntax errors. Fatal immediately.
	KindPersistent
	// KindDataQuality is a critical validation finding that halts before upload.
	KindDataQuality
	// KindUpload covers object store failures. Retried as transient, fatal after exhaustion.
	KindUpload
	// KindCancelled marks a run stopped via its cancellation signal.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "ConfigurationError"
	case KindCredential:
		return "CredentialError"
	case KindTransient:
		return "TransientError"
	case KindPersistent:
		return "PersistentError"
	case KindDataQuality:
		return "DataQualityError"
	case KindUpload:
		return "UploadError"
	case KindCancelled:
		return "Cancelled"
	default:
		return "UnknownError"
	}
}

// Error carries a Kind alongside the wrapped cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap tags err with the given kind, preserving the original chain.
// A nil err returns nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Wrapf tags a formatted, wrapped error with the given kind.
func Wrapf(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: errors.Wrapf(err, format, args...)}
}

// New creates a fresh error of the given kind.
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Err: errors.New(message)}
}

// Newf creates a fresh formatted error of the given kind.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Err: errors.Errorf(format, args...)}
}

// KindOf extracts the Kind from err's chain, defaulting to KindUnknown.
// Context cancellation is recognised even when untagged.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return KindUnknown
}

// IsTransient reports whether err should be retried by the resilience policy.
// Untagged network timeouts count as transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case KindTransient, KindUpload:
		return true
	case KindUnknown:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return true
		}
	}
	return false
}

// ExitCode maps an error to the process exit code contract: 0 ok,
// 1 configuration, 2 credential, 3 extraction (transient exhausted or
// persistent), 4 critical validation, 5 upload.
func ExitCode(err error) int {
	if err == nil {
		return constants.ExitOk
	}
	switch KindOf(err) {
	case KindConfiguration:
		return constants.ExitConfigError
	case KindCredential:
		return constants.ExitCredError
	case KindTransient, KindPersistent, KindCancelled:
		return constants.ExitExtractError
	case KindDataQuality:
		return constants.ExitDataQuality
	case KindUpload:
		return constants.ExitUploadError
	default:
		return constants.ExitUnknownError
	}
}

// FromHTTPStatus classifies an HTTP response status per the extractor rules:
// 429 and 5xx are transient, all other 4xx are persistent. A 401/403 here is
// the remote rejecting credentials we already resolved, so it counts as an
// extraction failure rather than a credential-resolution one.
func FromHTTPStatus(status int) Kind {
	switch {
	case status == 429 || status >= 500:
		return KindTransient
	case status >= 400:
		return KindPersistent
	default:
		return KindUnknown
	}
}
