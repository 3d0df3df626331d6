package inspector_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arfaz/opbus/bus/queue"
	"github.com/arfaz/opbus/bus/resource"
	"github.com/arfaz/opbus/inspector"
	"github.com/arfaz/opbus/metrics"
)

func TestHandleResourcesReportsLiveEntries(t *testing.T) {
	m := metrics.New()
	q := queue.New(queue.RecommendedSize)
	table := resource.New()
	table.Add("httpBody", closerFunc(func() error { return nil }))

	srv := inspector.New(m, q, table, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/resources", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var entries []resource.Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Tag != "httpBody" {
		t.Errorf("Tag = %q, want httpBody", entries[0].Tag)
	}
}

func TestHandleQueueReportsResidentRecords(t *testing.T) {
	m := metrics.New()
	q := queue.New(queue.RecommendedSize)
	q.Push(7, []byte("abcd"))

	srv := inspector.New(m, q, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/queue", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var decoded struct {
		RecordsResident int `json:"recordsResident"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.RecordsResident != 1 {
		t.Errorf("RecordsResident = %d, want 1", decoded.RecordsResident)
	}
}

// closerFunc adapts a func() error as a resource.Stream.
type closerFunc func() error

func (f closerFunc) Close() error { return f() }
