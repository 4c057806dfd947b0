package model

import "fmt"

// ErrorKind classifies upload lifecycle failures so callers can branch on kind.
type ErrorKind string

const (
	KindReferenceInvalid ErrorKind = "ReferenceInvalid"
	KindReferenceExpired ErrorKind = "ReferenceExpired"
	KindAccountNotUsable ErrorKind = "AccountNotUsable"
	KindAuthExpired      ErrorKind = "AuthExpired"
	KindAuthRevoked      ErrorKind = "AuthRevoked"
	KindTransientNetwork ErrorKind = "TransientNetwork"
	KindQuotaExceeded    ErrorKind = "QuotaExceeded"
	KindValidationError  ErrorKind = "ValidationError"
	KindTimeout          ErrorKind = "Timeout"
	KindNotFound         ErrorKind = "NotFound"
)

// DomainError carries an ErrorKind plus a human-readable message and optional cause.
type DomainError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DomainError) Unwrap() error { return e.Cause }

// NewDomainError builds a DomainError without a cause.
func NewDomainError(kind ErrorKind, message string) *DomainError {
	return &DomainError{Kind: kind, Message: message}
}

// WrapDomainError builds a DomainError wrapping an underlying error.
func WrapDomainError(kind ErrorKind, message string, cause error) *DomainError {
	return &DomainError{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the ErrorKind from err, returning ok=false for untyped errors.
func KindOf(err error) (ErrorKind, bool) {
	for err != nil {
		if de, ok := err.(*DomainError); ok {
			return de.Kind, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return "", false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// Retryable reports whether a failure of this kind may be retried locally
// before the job has committed bytes platform-side.
func (k ErrorKind) Retryable() bool {
	return k == KindAuthExpired || k == KindTransientNetwork
}
