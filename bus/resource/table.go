// Package resource implements the host-side table of opaque integer handles
// ("rid") that stand in for long-lived, heterogeneous host-owned objects:
// stdio streams, files, TCP/TLS streams, HTTP bodies, and child processes.
//
// The table is a closed tagged union over the known resource kinds rather
// than open-ended dynamic dispatch: Entry.Stream is a small interface, and
// Get[T] performs a type-safe downcast instead of exposing reflection to
// callers.
package resource

import (
	"fmt"
	"sync"

	"github.com/arfaz/opbus/bus/errs"
)

// Stream is the minimal capability every stored resource must provide:
// something that can eventually be shut down. Concrete stream behavior
// (read/write) lives in package stream, which implements this alongside
// its own richer interface.
type Stream interface {
	Close() error
}

// Entry is a snapshot of one table slot, returned by Entries for
// enumeration.
type Entry struct {
	RID int32
	Tag string
}

// Table is a registry mapping rid -> (tag, Stream). Entries carry no
// reference count: Remove deletes an entry outright.
// Handles are non-zero, strictly increasing, and never reused.
type Table struct {
	mu      sync.RWMutex
	next    int32
	entries map[int32]entry
}

type entry struct {
	tag    string
	stream Stream
}

// New creates an empty Table. The first allocated handle is 3, matching the
// convention that 0/1/2 are reserved for the process-wide stdin/stdout/
// stderr resources installed by the caller at startup.
func New() *Table {
	return &Table{next: 3, entries: make(map[int32]entry)}
}

// Add inserts resource under tag and returns its newly allocated handle.
func (t *Table) Add(tag string, res Stream) int32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	rid := t.next
	t.next++
	t.entries[rid] = entry{tag: tag, stream: res}
	return rid
}

// AddAt inserts resource at an explicit handle, used only at startup to
// install the well-known stdin=0/stdout=1/stderr=2 slots. It panics if rid
// is already occupied.
func (t *Table) AddAt(rid int32, tag string, res Stream) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.entries[rid]; exists {
		panic(fmt.Sprintf("resource: rid %d already occupied", rid))
	}
	t.entries[rid] = entry{tag: tag, stream: res}
	if rid >= t.next {
		t.next = rid + 1
	}
}

// Get looks up rid and attempts to downcast it to T. It returns a
// bad_resource error if the handle is unknown or stored under a different
// concrete type.
func Get[T Stream](t *Table, rid int32) (T, *errs.BusError) {
	var zero T
	t.mu.RLock()
	e, ok := t.entries[rid]
	t.mu.RUnlock()
	if !ok {
		return zero, errs.Newf(errs.BadResource, "rid %d not found", rid)
	}
	v, ok := e.stream.(T)
	if !ok {
		return zero, errs.Newf(errs.BadResource, "rid %d is not of the requested kind", rid)
	}
	return v, nil
}

// Remove deletes rid from the table and returns the stored resource. The
// caller owns shutting it down. ok is false if rid was unknown.
func (t *Table) Remove(rid int32) (Stream, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[rid]
	if !ok {
		return nil, false
	}
	delete(t.entries, rid)
	return e.stream, true
}

// Tag returns the tag stored for rid, or "" if unknown.
func (t *Table) Tag(rid int32) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[rid]
	if !ok {
		return "", false
	}
	return e.tag, true
}

// Entries returns a snapshot of every live handle. The result is not kept
// consistent with concurrent mutation after it is returned.
func (t *Table) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, 0, len(t.entries))
	for rid, e := range t.entries {
		out = append(out, Entry{RID: rid, Tag: e.tag})
	}
	return out
}

// Len reports the number of live handles.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
