package ops

import (
	"os"
	"strings"
	"sync"

	sourcemap "gopkg.in/sourcemap.v1"

	"github.com/arfaz/opbus/bus/dispatch"
	"github.com/arfaz/opbus/bus/errs"
)

// FormatErrorRequest is the format_error(error) op payload: a JSON-encoded
// guest-side error object to render as a display string.
type FormatErrorRequest struct {
	Error string `json:"error"`
}

// FormatErrorReply is the format_error() op's success payload.
type FormatErrorReply struct {
	Error string `json:"error"`
}

// ApplySourceMapRequest is the apply_source_map(filename, line, column) op
// payload: a position in compiled output to remap to the original source.
type ApplySourceMapRequest struct {
	Filename string `json:"filename"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
}

// ApplySourceMapReply is the apply_source_map() op's success payload, the
// position rewritten in terms of the original source when a map was found.
type ApplySourceMapReply struct {
	Filename string `json:"filename"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
}

// SourceMaps exposes the format_error and apply_source_map op handlers. It
// caches parsed *sourcemap.Consumer values per compiled filename, mirroring
// the CachedMaps table kept next to the original TypeScript compiler so
// repeated stack-trace lookups for the same file don't reparse its map.
type SourceMaps struct {
	mu     sync.Mutex
	cache  map[string]*sourcemap.Consumer
	missed map[string]bool
}

// NewSourceMaps creates an empty SourceMaps cache.
func NewSourceMaps() *SourceMaps {
	return &SourceMaps{
		cache:  make(map[string]*sourcemap.Consumer),
		missed: make(map[string]bool),
	}
}

// FormatError implements the format_error() op. It returns the guest's
// error string with surrounding whitespace trimmed; it does not parse the
// text or apply source maps to the positions in it.
func (s *SourceMaps) FormatError(req dispatch.Request) (dispatch.Result, *errs.BusError) {
	var fr FormatErrorRequest
	if berr := dispatch.DecodeJsonPayload(req.Payload, &fr); berr != nil {
		return dispatch.Result{}, berr
	}

	out, err := dispatch.EncodeJsonOK(FormatErrorReply{Error: strings.TrimSpace(fr.Error)})
	if err != nil {
		return dispatch.Result{}, errs.New(errs.IO, err)
	}
	return dispatch.SyncResult(out), nil
}

// ApplySourceMap implements the apply_source_map() op. It loads (and
// caches) the source map adjacent to filename — "<filename>.map" on disk —
// and rewrites (line, column) in terms of the original source. If no map
// can be found or parsed, the original position is returned unchanged,
// matching the original compiler's fall-through behavior for files that
// were never transpiled.
func (s *SourceMaps) ApplySourceMap(req dispatch.Request) (dispatch.Result, *errs.BusError) {
	var ar ApplySourceMapRequest
	if berr := dispatch.DecodeJsonPayload(req.Payload, &ar); berr != nil {
		return dispatch.Result{}, berr
	}

	reply := ApplySourceMapReply{Filename: ar.Filename, Line: ar.Line, Column: ar.Column}

	consumer := s.consumerFor(ar.Filename)
	if consumer != nil {
		if file, _, line, col, ok := consumer.Source(ar.Line, ar.Column); ok {
			reply.Filename = firstNonEmpty(file, ar.Filename)
			reply.Line = line
			reply.Column = col
		}
	}

	out, err := dispatch.EncodeJsonOK(reply)
	if err != nil {
		return dispatch.Result{}, errs.New(errs.IO, err)
	}
	return dispatch.SyncResult(out), nil
}

// consumerFor returns the cached *sourcemap.Consumer for filename, loading
// and parsing "<filename>.map" on first use. A prior load failure is
// remembered so a missing map is not re-read on every stack frame.
func (s *SourceMaps) consumerFor(filename string) *sourcemap.Consumer {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.cache[filename]; ok {
		return c
	}
	if s.missed[filename] {
		return nil
	}

	data, err := os.ReadFile(filename + ".map") // #nosec G304 -- filename originates from the guest's own compiled output path
	if err != nil {
		s.missed[filename] = true
		return nil
	}
	consumer, err := sourcemap.Parse(filename+".map", data)
	if err != nil {
		s.missed[filename] = true
		return nil
	}
	s.cache[filename] = consumer
	return consumer
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
