package apperr

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Kind classifies an error for HTTP mapping and logging. Handlers never
// branch on database error values directly; storage results are
// translated into one of these kinds at the point of failure.
type Kind int

const (
	// Internal is the fallback for unexpected failures.
	Internal Kind = iota
	// Validation covers missing or malformed caller input.
	Validation
	// Unauthenticated covers missing, invalid or expired credentials.
	Unauthenticated
	// Forbidden covers capability or ownership denials inside the
	// caller's own tenant.
	Forbidden
	// NotFound covers absent resources, including resources that exist
	// but belong to another tenant. The two cases are deliberately
	// indistinguishable.
	NotFound
	// Conflict covers duplicate subdomains and duplicate in-tenant
	// emails.
	Conflict
	// QuotaExceeded means the tenant's plan ceiling for the resource is
	// reached.
	QuotaExceeded
	// Unavailable covers storage timeouts and transient failures; the
	// caller may retry.
	Unavailable
)

// Error carries a kind and a caller-safe message. The wrapped cause, if
// any, is for logs only and never rendered to clients.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New returns an error of the given kind with a caller-safe message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a cause to a kinded error. The message stays
// caller-safe; the cause surfaces only through logging.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// KindOf extracts the kind from err, defaulting to Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// MessageOf extracts the caller-safe message from err. Unknown errors
// get a generic message so internals never leak.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}

// FromDB translates a storage error into the taxonomy: missing rows
// become NotFound with the given message, context timeouts become
// Unavailable, everything else stays Internal.
func FromDB(err error, notFoundMessage string) *Error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return New(NotFound, notFoundMessage)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return Wrap(Unavailable, "storage temporarily unavailable", err)
	default:
		return Wrap(Internal, "internal server error", err)
	}
}
