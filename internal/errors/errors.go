// Package errors defines typed errors with categories for user-friendly reporting.
// Every failure the query client can produce carries one of the kinds below so
// callers (the CLI, the interactive shell, tests) can branch on the category
// without parsing messages.
//
// Errors wrap their underlying cause, so the standard library's errors.Is and
// errors.As keep working through an *E.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// MissingCredential indicates no API key could be resolved.
	MissingCredential Kind = "missing_credential"
	// TransportError indicates the HTTP round trip failed or returned a non-2xx status.
	TransportError Kind = "transport_error"
	// DecodeError indicates the response body is not a valid execution envelope.
	DecodeError Kind = "decode_error"
	// ExecutionNotReady indicates the execution has not completed successfully.
	ExecutionNotReady Kind = "execution_not_ready"
	// MalformedSuccess indicates a completed envelope without a result payload.
	MalformedSuccess Kind = "malformed_success"
	// StorageError indicates the result cache could not be written or read.
	StorageError Kind = "storage_error"
	// InvalidQueryID indicates a query id that is not safe to send or store.
	InvalidQueryID Kind = "invalid_query_id"
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *E) Unwrap() error { return e.Err }

// ErrorKind returns e.Kind. Other error types in this module implement it too
// so KindOf can classify them.
func (e *E) ErrorKind() Kind { return e.Kind }

// Is reports whether target is an *E of the same kind. It lets callers match
// a category with errors.Is(err, errors.New(errors.DecodeError, "")).
func (e *E) Is(target error) bool {
	t, ok := target.(*E)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

type kinded interface {
	ErrorKind() Kind
}

// KindOf returns the kind of the first classified error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var k kinded
	if stderrors.As(err, &k) {
		return k.ErrorKind()
	}
	return ""
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	return stderrors.Is(err, &E{Kind: kind})
}
