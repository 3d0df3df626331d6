package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arfaz/opbus/bus/errs"
	"github.com/arfaz/opbus/bus/queue"
)

// Counters is the subset of metrics.Metrics the dispatcher updates; kept as
// a small interface so this package does not import metrics directly.
type Counters interface {
	IncDispatched()
	IncSync()
	IncAsync()
	IncOverflowRetry()
}

type noopCounters struct{}

func (noopCounters) IncDispatched()   {}
func (noopCounters) IncSync()         {}
func (noopCounters) IncAsync()        {}
func (noopCounters) IncOverflowRetry() {}

// Encoding identifies the wire codec a registered op uses for its replies,
// so DrainOne knows how to shape an error reply for that op.
type Encoding int

const (
	// EncodingJSON is the JsonOp envelope ({"ok":...}/{"err":...}).
	EncodingJSON Encoding = iota
	// EncodingMinimal is the fixed 12-byte MinimalEnvelope used by the
	// read/write hot path.
	EncodingMinimal
)

// Dispatcher routes queue records to registered handlers and pushes their
// replies back under the originating op id. The mapping from op name to
// numeric id is fixed at registration time and stable thereafter.
type Dispatcher struct {
	q         *queue.SharedQueue
	handlers  map[uint32]Handler
	names     map[string]uint32
	encodings map[uint32]Encoding

	// pushMu serializes writes into q: the queue is single-producer, but
	// both the drain loop (for sync replies) and async completions (from
	// goroutines spawned by handlers) need to push into it.
	pushMu sync.Mutex

	counters Counters

	group *errgroup.Group
	gctx  context.Context
}

// New creates a Dispatcher over q. maxConcurrentAsync bounds how many
// asynchronous op completions may be in flight at once (via an
// errgroup.Group with SetLimit); pass 0 for no limit.
func New(q *queue.SharedQueue, maxConcurrentAsync int, counters Counters) *Dispatcher {
	if counters == nil {
		counters = noopCounters{}
	}
	ctx := context.Background()
	group, gctx := errgroup.WithContext(ctx)
	if maxConcurrentAsync > 0 {
		group.SetLimit(maxConcurrentAsync)
	}
	return &Dispatcher{
		q:         q,
		handlers:  make(map[uint32]Handler),
		names:     make(map[string]uint32),
		encodings: make(map[uint32]Encoding),
		counters:  counters,
		group:     group,
		gctx:      gctx,
	}
}

// Register binds name to opID and h, replying with the JsonOp envelope on
// both success and error. Registering the same opID twice is a programmer
// error and panics.
func (d *Dispatcher) Register(opID uint32, name string, h Handler) {
	d.register(opID, name, h, EncodingJSON)
}

// RegisterMinimal binds name to opID and h, using the fixed-size
// MinimalEnvelope for error replies instead of the JsonOp envelope — for
// ops like read/write whose success replies are already MinimalEnvelope-
// shaped and whose guests never expect a variable-length JSON document
// under that op id.
func (d *Dispatcher) RegisterMinimal(opID uint32, name string, h Handler) {
	d.register(opID, name, h, EncodingMinimal)
}

func (d *Dispatcher) register(opID uint32, name string, h Handler, enc Encoding) {
	if _, exists := d.handlers[opID]; exists {
		panic(fmt.Sprintf("dispatch: op id %d already registered", opID))
	}
	d.handlers[opID] = h
	d.names[name] = opID
	d.encodings[opID] = enc
}

// OpID returns the numeric id registered for name.
func (d *Dispatcher) OpID(name string) (uint32, bool) {
	id, ok := d.names[name]
	return id, ok
}

// Dispatch invokes the handler registered for opID directly, without going
// through the shared queue. This is the entry point both the queue-draining
// loop and any direct (e.g. hot-path read/write) caller use.
//
// Dispatching to an unknown op id is a programmer error and panics — the
// guest and host are expected to agree on the set of registered ops.
func (d *Dispatcher) Dispatch(opID uint32, req Request) (Result, *errs.BusError) {
	h, ok := d.handlers[opID]
	if !ok {
		panic(fmt.Sprintf("dispatch: no handler registered for op id %d", opID))
	}
	d.counters.IncDispatched()
	return h(req)
}

// pushReply serializes a push of a reply record under opID. On overflow it
// is the caller's responsibility to retry; pushReply itself does not
// retry, since retry policy (e.g. wait for a drain signal) belongs to the
// caller's event loop.
func (d *Dispatcher) pushReply(opID uint32, reply []byte) bool {
	d.pushMu.Lock()
	defer d.pushMu.Unlock()
	return d.q.Push(opID, reply)
}

// DrainOne shifts a single record off the queue (if any), dispatches it,
// and — for a synchronous result — pushes the reply back immediately. For
// an asynchronous result, it spawns a tracked goroutine that pushes the
// reply once the computation completes. It reports whether a record was
// processed.
func (d *Dispatcher) DrainOne() bool {
	opID, record, ok := d.q.Shift()
	if !ok {
		return false
	}

	enc := d.encodings[opID]
	req := Request{Payload: record}
	if enc == EncodingMinimal {
		// Best-effort: recover the promise id so an error reply still
		// correlates with the guest's call. A malformed record (too short
		// to be a MinimalEnvelope) leaves PromiseID at its zero value —
		// the handler itself will fail the same decode and report Parse.
		if env, berr := DecodeMinimal(record); berr == nil {
			req.PromiseID = env.PromiseID
		}
	}

	result, berr := d.Dispatch(opID, req)
	if berr != nil {
		d.retryingPush(opID, d.encodeErr(enc, req.PromiseID, berr))
		return true
	}

	if !result.IsAsync() {
		d.counters.IncSync()
		d.retryingPush(opID, result.Sync)
		return true
	}

	d.counters.IncAsync()
	promiseID := req.PromiseID
	d.group.Go(func() error {
		reply := <-result.Async
		if reply.Err != nil {
			d.retryingPush(opID, d.encodeErr(enc, promiseID, reply.Err))
			return nil
		}
		d.retryingPush(opID, reply.Reply)
		return nil
	})
	return true
}

// encodeErr shapes a handler error as the wire reply the op's registered
// encoding expects: a JsonOp {"err":...} document, or a negative
// MinimalEnvelope carrying the promise id for correlation.
func (d *Dispatcher) encodeErr(enc Encoding, promiseID int32, berr *errs.BusError) []byte {
	if enc == EncodingMinimal {
		return EncodeMinimal(MinimalEnvelope{PromiseID: promiseID, Result: -1})
	}
	return EncodeJsonErr(berr)
}

// retryingPush pushes reply under opID, retrying on overflow. Overflow is
// the queue's only recoverable failure mode for a reply push: the host
// must not drop a reply silently, and the guest is expected to drain
// periodically, which frees slots this push can then occupy.
func (d *Dispatcher) retryingPush(opID uint32, reply []byte) {
	const backoff = time.Millisecond
	for !d.pushReply(opID, reply) {
		d.counters.IncOverflowRetry()
		time.Sleep(backoff)
	}
}

// Drain shifts and dispatches every record currently resident in the
// queue. It returns once the queue reports empty; it does not block
// waiting for more records to arrive — that is the caller's event loop's
// job (typically "drain after the guest yields control").
func (d *Dispatcher) Drain() {
	for d.DrainOne() {
	}
}

// Wait blocks until every asynchronous completion spawned so far has
// finished pushing its reply. Call it during graceful shutdown.
func (d *Dispatcher) Wait() error {
	return d.group.Wait()
}
