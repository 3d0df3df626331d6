// Package dispatch routes records drained from the shared queue to
// registered op handlers, and pushes their replies back under the
// originating op id.
package dispatch

import "github.com/arfaz/opbus/bus/errs"

// Result is what a handler returns: whether it completed synchronously with
// bytes in hand, or whether the caller must wait on Async for an
// asynchronous completion.
type Result struct {
	// Sync holds the reply bytes when the op completed immediately. It is
	// nil when the op is asynchronous.
	Sync []byte
	// Async, when non-nil, resolves to the reply bytes once the
	// asynchronous computation finishes.
	Async <-chan AsyncReply
}

// AsyncReply is the eventual outcome of an asynchronous op.
type AsyncReply struct {
	Reply []byte
	Err   *errs.BusError
}

// IsAsync reports whether r represents a deferred computation.
func (r Result) IsAsync() bool { return r.Async != nil }

// SyncResult wraps bytes already available as an immediate Result.
func SyncResult(reply []byte) Result {
	return Result{Sync: reply}
}

// AsyncResult wraps a channel that will eventually deliver the reply as a
// deferred Result.
func AsyncResult(ch <-chan AsyncReply) Result {
	return Result{Async: ch}
}

// Handler processes one request payload for a given op, optionally reading
// or writing through a zero-copy buffer supplied alongside the JSON
// payload (read/write use this; most ops do not).
type Handler func(req Request) (Result, *errs.BusError)

// Request is what a handler receives: the decoded JSON payload bytes (or
// raw MinimalOp integers, depending on the op's codec) plus any zero-copy
// buffer the guest attached.
type Request struct {
	// PromiseID correlates an async reply to its originating call. DrainOne
	// recovers it from the request record only for ops registered with
	// RegisterMinimal; direct callers of Dispatch set it themselves.
	PromiseID int32
	// Payload is the raw request record: the op-specific JSON document, or
	// the 12-byte MinimalEnvelope for ops registered with RegisterMinimal.
	Payload []byte
	// ZeroCopy is the buffer the guest attached for in-place read/write, or
	// nil if none was supplied.
	ZeroCopy []byte
}
