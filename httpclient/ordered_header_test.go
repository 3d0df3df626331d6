package httpclient_test

import (
	"net/http"
	"testing"

	"github.com/arfaz/opbus/httpclient"
)

func TestOrderedHeaderAddAndGet(t *testing.T) {
	var h httpclient.OrderedHeader
	h.Add("accept-language", "en-US,en;q=0.9")
	h.Add("sec-ch-ua-platform", `"Windows"`)

	if got := h.Get("accept-language"); got != "en-US,en;q=0.9" {
		t.Errorf("Get: got %q, want en-US,en;q=0.9", got)
	}
	if got := h.Get("Accept-Language"); got != "en-US,en;q=0.9" {
		t.Errorf("Get (canonical case): got %q, want en-US,en;q=0.9", got)
	}
}

func TestOrderedHeaderSetReplaces(t *testing.T) {
	var h httpclient.OrderedHeader
	h.Add("User-Agent", "old-value")
	h.Add("Accept", "*/*")
	h.Set("User-Agent", "new-value")

	if got := h.Get("User-Agent"); got != "new-value" {
		t.Errorf("after Set: got %q, want new-value", got)
	}
	req, _ := http.NewRequest("GET", "http://example.com", nil)
	h.ApplyToRequest(req)
	if vals := req.Header["User-Agent"]; len(vals) != 1 {
		t.Errorf("expected 1 User-Agent after Set, got %d", len(vals))
	}
}

func TestOrderedHeaderDel(t *testing.T) {
	var h httpclient.OrderedHeader
	h.Add("X-Foo", "bar")
	h.Add("X-Baz", "qux")
	h.Del("X-Foo")

	if got := h.Get("X-Foo"); got != "" {
		t.Errorf("after Del: expected empty, got %q", got)
	}
	if h.Len() != 1 {
		t.Errorf("expected 1 entry after Del, got %d", h.Len())
	}
}

func TestOrderedHeaderApplyToRequestPreservesCasing(t *testing.T) {
	var h httpclient.OrderedHeader
	h.Add("sec-ch-ua-platform", `"Windows"`)
	h.Add("accept-language", "en-US")

	req, _ := http.NewRequest("GET", "http://example.com", nil)
	h.ApplyToRequest(req)

	if _, ok := req.Header["sec-ch-ua-platform"]; !ok {
		t.Error("expected raw key sec-ch-ua-platform to be present in header map")
	}
}

func TestOrderedHeaderClone(t *testing.T) {
	var h httpclient.OrderedHeader
	h.Add("A", "1")
	c := h.Clone()
	c.Add("B", "2")

	if h.Len() != 1 {
		t.Error("Clone should not affect original length")
	}
	if c.Len() != 2 {
		t.Error("cloned header should have 2 entries")
	}
}

func TestFromPairsPreservesOrderAndCasing(t *testing.T) {
	h := httpclient.FromPairs([][2]string{
		{"X-First", "1"},
		{"x-second", "2"},
	})
	if h.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", h.Len())
	}
	req, _ := http.NewRequest("GET", "http://example.com", nil)
	h.ApplyToRequest(req)
	if _, ok := req.Header["X-First"]; !ok {
		t.Error("expected raw key X-First to be present")
	}
	if _, ok := req.Header["x-second"]; !ok {
		t.Error("expected raw key x-second to be present")
	}
}
