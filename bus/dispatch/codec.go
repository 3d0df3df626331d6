package dispatch

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/arfaz/opbus/bus/errs"
)

// jsonEnvelope is the wire shape of JsonOp replies: {"ok": ...} on success,
// {"err": {"kind": ..., "message": ...}} on failure.
type jsonEnvelope struct {
	OK  json.RawMessage `json:"ok,omitempty"`
	Err *jsonErr        `json:"err,omitempty"`
}

type jsonErr struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// EncodeJsonOK marshals value as a successful JsonOp reply, padding the
// result to a 4-byte boundary as the queue requires.
func EncodeJsonOK(value any) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("dispatch: marshal ok payload: %w", err)
	}
	env := jsonEnvelope{OK: raw}
	out, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("dispatch: marshal envelope: %w", err)
	}
	return pad4(out), nil
}

// EncodeJsonErr marshals a BusError as a failed JsonOp reply.
func EncodeJsonErr(be *errs.BusError) []byte {
	env := jsonEnvelope{Err: &jsonErr{Kind: string(be.Kind), Message: be.Message()}}
	out, err := json.Marshal(env)
	if err != nil {
		// Marshaling a jsonErr of plain strings cannot fail; if it somehow
		// did, fall back to a minimal, still-valid envelope.
		out = []byte(`{"err":{"kind":"io","message":"internal encoding failure"}}`)
	}
	return pad4(out)
}

// DecodeJsonPayload unmarshals a JsonOp request payload (which is not
// wrapped in an envelope — only replies are) into dst.
func DecodeJsonPayload(payload []byte, dst any) *errs.BusError {
	if err := json.Unmarshal(trimPadding(payload), dst); err != nil {
		return errs.New(errs.Parse, err)
	}
	return nil
}

func pad4(b []byte) []byte {
	if rem := len(b) % 4; rem != 0 {
		b = append(b, make([]byte, 4-rem)...)
	}
	return b
}

// trimPadding strips trailing NUL padding added by pad4 before decoding.
// JSON documents never legitimately end in NUL bytes, so this is safe.
func trimPadding(b []byte) []byte {
	i := len(b)
	for i > 0 && b[i-1] == 0 {
		i--
	}
	return b[:i]
}

// TrimPadding exposes trimPadding for callers outside this package (e.g. a
// JsonOp codec bridge) that receive a reply's raw bytes and need the
// padding stripped before treating them as a JSON document.
func TrimPadding(b []byte) []byte {
	return trimPadding(b)
}

// MinimalEnvelope is the compact 3-int32 reply shape used by the hot-path
// read/write ops: (promise_id, arg, result). A negative result encodes an
// error; the guest maps it back to an errs.Kind by convention (read/write
// only ever report errs.IO, errs.NoBuffer, or errs.BadResource, so a single
// negative sentinel per call site is enough — the kind is not carried over
// the wire in this envelope, unlike JsonOp).
type MinimalEnvelope struct {
	PromiseID int32
	Arg       int32
	Result    int32
}

// EncodeMinimal serializes e as 12 bytes, little-endian.
func EncodeMinimal(e MinimalEnvelope) []byte {
	out := make([]byte, 12)
	binary.LittleEndian.PutUint32(out[0:4], uint32(e.PromiseID))
	binary.LittleEndian.PutUint32(out[4:8], uint32(e.Arg))
	binary.LittleEndian.PutUint32(out[8:12], uint32(e.Result))
	return out
}

// DecodeMinimal parses a 12-byte MinimalOp request.
func DecodeMinimal(b []byte) (MinimalEnvelope, *errs.BusError) {
	if len(b) != 12 {
		return MinimalEnvelope{}, errs.Newf(errs.Parse, "minimal op payload must be 12 bytes, got %d", len(b))
	}
	return MinimalEnvelope{
		PromiseID: int32(binary.LittleEndian.Uint32(b[0:4])),
		Arg:       int32(binary.LittleEndian.Uint32(b[4:8])),
		Result:    int32(binary.LittleEndian.Uint32(b[8:12])),
	}, nil
}
