// Package ops implements the concrete op handlers exposed to the guest:
// read/write, fetch, run/run_status/kill, resources, get_random_values,
// and format_error/apply_source_map.
package ops

import (
	"context"

	"github.com/arfaz/opbus/bus/dispatch"
	"github.com/arfaz/opbus/bus/errs"
	"github.com/arfaz/opbus/bus/reslock"
	"github.com/arfaz/opbus/bus/resource"
	"github.com/arfaz/opbus/bus/stream"
)

// IO exposes the read and write op handlers. Both are single-shot: each
// call reads or writes once against the zero-copy buffer and returns
// immediately with the byte count (or a negative sentinel on error),
// matching the MinimalOp hot-path contract.
type IO struct {
	Table *resource.Table
	Locks *reslock.Table
}

// Read implements the read(rid, buffer) op: it reads up to len(buffer)
// bytes from rid's stream into buffer and returns the count, 0 on EOF, or a
// negative MinimalEnvelope result on error.
func (io *IO) Read(req dispatch.Request) (dispatch.Result, *errs.BusError) {
	env, berr := dispatch.DecodeMinimal(req.Payload)
	if berr != nil {
		return dispatch.Result{}, berr
	}
	rid := env.Arg
	if len(req.ZeroCopy) == 0 {
		return dispatch.Result{}, errs.Newf(errs.NoBuffer, "read: no zero-copy buffer specified")
	}

	s, berr := resource.Get[stream.Stream](io.Table, rid)
	if berr != nil {
		return dispatch.Result{}, berr
	}

	if err := io.Locks.Lock(context.Background(), rid); err != nil {
		return dispatch.Result{}, errs.New(errs.IO, err)
	}
	defer io.Locks.Unlock(rid)

	n, rerr := s.Read(req.ZeroCopy)
	if rerr != nil {
		return dispatch.Result{}, rerr
	}
	return dispatch.SyncResult(dispatch.EncodeMinimal(dispatch.MinimalEnvelope{
		PromiseID: env.PromiseID,
		Arg:       rid,
		Result:    int32(n),
	})), nil
}

// Write implements the write(rid, bytes) op.
func (io *IO) Write(req dispatch.Request) (dispatch.Result, *errs.BusError) {
	env, berr := dispatch.DecodeMinimal(req.Payload)
	if berr != nil {
		return dispatch.Result{}, berr
	}
	rid := env.Arg
	if len(req.ZeroCopy) == 0 {
		return dispatch.Result{}, errs.Newf(errs.NoBuffer, "write: no zero-copy buffer specified")
	}

	s, berr := resource.Get[stream.Stream](io.Table, rid)
	if berr != nil {
		return dispatch.Result{}, berr
	}

	if err := io.Locks.Lock(context.Background(), rid); err != nil {
		return dispatch.Result{}, errs.New(errs.IO, err)
	}
	defer io.Locks.Unlock(rid)

	n, werr := s.Write(req.ZeroCopy)
	if werr != nil {
		return dispatch.Result{}, werr
	}
	return dispatch.SyncResult(dispatch.EncodeMinimal(dispatch.MinimalEnvelope{
		PromiseID: env.PromiseID,
		Arg:       rid,
		Result:    int32(n),
	})), nil
}
