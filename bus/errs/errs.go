// Package errs defines the small closed set of error kinds that every op
// handler reports back across the bus, plus a BusError type that carries one
// of them alongside a wrapped underlying error.
package errs

import "fmt"

// Kind is one of the fixed error categories the guest understands. New
// values must not be added without updating every codec that serializes
// them.
type Kind string

const (
	// BadResource means an rid was unknown or did not match the requested
	// stream variant.
	BadResource Kind = "bad_resource"
	// NoBuffer means a zero-copy buffer was required but not supplied.
	NoBuffer Kind = "no_buffer"
	// PermissionDenied means the permission policy refused the action.
	PermissionDenied Kind = "permission_denied"
	// IO means an underlying OS or network operation failed.
	IO Kind = "io"
	// Parse means the request payload could not be decoded.
	Parse Kind = "parse"
	// Overflow means a reply could not be pushed into the queue because it
	// is full; the host must retry once the guest drains.
	Overflow Kind = "overflow"
)

// BusError is the error type every op handler returns in place of a bare
// error, so the dispatcher can map it to a JSON err envelope or a negative
// MinimalOp result without string-sniffing.
type BusError struct {
	Kind Kind
	Err  error
}

// New builds a BusError wrapping err under kind.
func New(kind Kind, err error) *BusError {
	return &BusError{Kind: kind, Err: err}
}

// Newf builds a BusError from a formatted message.
func Newf(kind Kind, format string, args ...any) *BusError {
	return &BusError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

func (e *BusError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *BusError) Unwrap() error { return e.Err }

// Message returns the text the guest sees in the JSON err envelope's
// "message" field.
func (e *BusError) Message() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}
