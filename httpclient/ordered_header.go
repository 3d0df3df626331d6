package httpclient

import (
	"net/http"
)

// headerEntry stores a single header key/value pair with its original
// casing.
type headerEntry struct {
	key   string
	value string
}

// OrderedHeader is a drop-in companion to http.Header that preserves the
// exact capitalisation and insertion order of HTTP headers — both of which
// http.Header's map[string][]string representation discards. The order is
// kept only inside OrderedHeader itself: ApplyToRequest and ToHTTPHeader
// write into an http.Header map, which keeps the raw key casing but not the
// order across different keys.
//
// OrderedHeader is NOT safe for concurrent use without external
// synchronisation; callers build one per outgoing request.
type OrderedHeader struct {
	entries []headerEntry
}

// Add appends key/value, preserving the exact casing of key. Multiple calls
// with the same key produce multiple entries (like http.Header.Add).
func (h *OrderedHeader) Add(key, value string) {
	h.entries = append(h.entries, headerEntry{key: key, value: value})
}

// Set replaces the first entry matching key (case-insensitively) with the
// new value and removes subsequent duplicates. If no entry exists, Set
// behaves like Add.
func (h *OrderedHeader) Set(key, value string) {
	canonKey := http.CanonicalHeaderKey(key)
	replaced := false
	out := h.entries[:0]
	for _, e := range h.entries {
		if http.CanonicalHeaderKey(e.key) == canonKey {
			if !replaced {
				out = append(out, headerEntry{key: key, value: value})
				replaced = true
			}
		} else {
			out = append(out, e)
		}
	}
	if !replaced {
		out = append(out, headerEntry{key: key, value: value})
	}
	h.entries = out
}

// Del removes all entries matching key (case-insensitively).
func (h *OrderedHeader) Del(key string) {
	canonKey := http.CanonicalHeaderKey(key)
	out := h.entries[:0]
	for _, e := range h.entries {
		if http.CanonicalHeaderKey(e.key) != canonKey {
			out = append(out, e)
		}
	}
	h.entries = out
}

// Get returns the value of the first entry matching key (case-insensitively),
// or "" if none exists.
func (h *OrderedHeader) Get(key string) string {
	canonKey := http.CanonicalHeaderKey(key)
	for _, e := range h.entries {
		if http.CanonicalHeaderKey(e.key) == canonKey {
			return e.value
		}
	}
	return ""
}

// Len returns the number of header entries (including duplicates).
func (h *OrderedHeader) Len() int { return len(h.entries) }

// Clone returns a shallow copy of the receiver.
func (h *OrderedHeader) Clone() *OrderedHeader {
	c := &OrderedHeader{entries: make([]headerEntry, len(h.entries))}
	copy(c.entries, h.entries)
	return c
}

// ApplyToRequest writes every entry into req.Header, preserving exact key
// casing by bypassing http.Header's canonical-key normalisation and writing
// the raw key directly into the underlying map. Values under the same key
// keep their relative order; the order across different keys is not kept,
// since http.Header is a map.
// Any headers already present in req.Header are replaced, not merged.
func (h *OrderedHeader) ApplyToRequest(req *http.Request) {
	req.Header = make(http.Header, len(h.entries))
	for _, e := range h.entries {
		req.Header[e.key] = append(req.Header[e.key], e.value)
	}
}

// ToHTTPHeader converts to a standard http.Header map. Insertion order is
// not preserved (maps are unordered) but exact key casing is, since the raw
// key is used rather than its canonical form.
func (h *OrderedHeader) ToHTTPHeader() http.Header {
	out := make(http.Header, len(h.entries))
	for _, e := range h.entries {
		out[e.key] = append(out[e.key], e.value)
	}
	return out
}

// FromPairs builds an OrderedHeader from a guest-supplied ordered list of
// (name, value) pairs — the shape the fetch op's JSON payload carries its
// headers in, since a JSON object cannot itself preserve key order.
func FromPairs(pairs [][2]string) *OrderedHeader {
	h := &OrderedHeader{entries: make([]headerEntry, 0, len(pairs))}
	for _, p := range pairs {
		h.Add(p[0], p[1])
	}
	return h
}
