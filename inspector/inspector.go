// Package inspector provides a real-time HTTP introspection server for a
// running op bus instance.
//
// It exposes:
//   - GET  /api/metrics/stream   – SSE stream of live dispatch counters (100 ms ticks)
//   - GET  /api/logs/stream      – SSE stream of log entries
//   - GET  /api/resources        – current resource-table snapshot (JSON)
//   - GET  /api/queue            – current shared-queue depth (JSON)
//   - POST /api/proxies          – upload a new proxy list (multipart file)
//
// All SSE endpoints set appropriate headers so browsers can use EventSource
// without any additional libraries. CORS is wide-open so a local frontend
// dev server can reach this backend during development.
package inspector

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/arfaz/opbus/bus/queue"
	"github.com/arfaz/opbus/bus/resource"
	"github.com/arfaz/opbus/bus/timer"
	"github.com/arfaz/opbus/metrics"
	"github.com/arfaz/opbus/proxy"
)

// MetricsSnapshot is the JSON payload pushed to inspector clients every tick.
type MetricsSnapshot struct {
	Timestamp     int64  `json:"timestamp"`
	Dispatched    uint64 `json:"dispatched"`
	Sync          uint64 `json:"sync"`
	Async         uint64 `json:"async"`
	OverflowRetry uint64 `json:"overflowRetry"`
	QueueDepth    int    `json:"queueDepth"`
	ResourceCount int    `json:"resourceCount"`
}

// LogEntry is a structured log line streamed to the inspector.
type LogEntry struct {
	Timestamp int64  `json:"ts"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

const maxLogs = 10_000

// Server serves the introspection endpoints for one bus instance.
type Server struct {
	metrics *metrics.Metrics
	queue   *queue.SharedQueue
	table   *resource.Table
	timer   *timer.GlobalTimer
	proxies *proxy.ProxyManager

	logMu    sync.Mutex
	logs     []LogEntry
	logSubs  map[chan LogEntry]struct{}
	logSubMu sync.Mutex

	metricsSubs  map[chan MetricsSnapshot]struct{}
	metricsSubMu sync.Mutex

	mux *http.ServeMux
}

// New creates an inspector Server over the given bus components. table,
// timer, and proxies may be nil if the caller does not want those facets
// exposed.
func New(m *metrics.Metrics, q *queue.SharedQueue, table *resource.Table, gt *timer.GlobalTimer, proxies *proxy.ProxyManager) *Server {
	s := &Server{
		metrics:     m,
		queue:       q,
		table:       table,
		timer:       gt,
		proxies:     proxies,
		logs:        make([]LogEntry, 0, 512),
		logSubs:     make(map[chan LogEntry]struct{}),
		metricsSubs: make(map[chan MetricsSnapshot]struct{}),
		mux:         http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// AddLog appends a structured log entry to the ring buffer and fans it out
// to every active SSE /api/logs/stream subscriber.
func (s *Server) AddLog(level, message string) {
	entry := LogEntry{
		Timestamp: time.Now().UnixMilli(),
		Level:     level,
		Message:   message,
	}

	s.logMu.Lock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > maxLogs {
		s.logs = s.logs[len(s.logs)-maxLogs:]
	}
	s.logMu.Unlock()

	s.logSubMu.Lock()
	for ch := range s.logSubs {
		select {
		case ch <- entry:
		default:
			// Slow subscriber -- drop rather than block.
		}
	}
	s.logSubMu.Unlock()
}

// ListenAndServe starts the HTTP server on addr (e.g. ":8090") and blocks
// until the process exits. It also starts the background goroutine that
// ticks metrics to SSE subscribers every 100 ms.
func (s *Server) ListenAndServe(addr string) error {
	go s.metricsTicker()
	log.Printf("inspector: listening on %s", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE/log streams are unbounded
		IdleTimeout:  120 * time.Second,
	}
	return srv.ListenAndServe()
}

// ServeHTTP lets a Server be mounted into another http.Handler (or driven
// directly in tests) instead of only via ListenAndServe.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/api/metrics/stream", s.withCORS(s.handleMetricsStream))
	s.mux.HandleFunc("/api/logs/stream", s.withCORS(s.handleLogsStream))
	s.mux.HandleFunc("/api/resources", s.withCORS(s.handleResources))
	s.mux.HandleFunc("/api/queue", s.withCORS(s.handleQueue))
	s.mux.HandleFunc("/api/proxies", s.withCORS(s.handleProxies))
}

func (s *Server) withCORS(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h(w, r)
	}
}

func (s *Server) metricsTicker() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		snap := s.snapshot()
		s.metricsSubMu.Lock()
		for ch := range s.metricsSubs {
			select {
			case ch <- snap:
			default:
			}
		}
		s.metricsSubMu.Unlock()
	}
}

func (s *Server) snapshot() MetricsSnapshot {
	m := s.metrics.Snapshot()
	snap := MetricsSnapshot{
		Timestamp:     time.Now().UnixMilli(),
		Dispatched:    m.Dispatched,
		Sync:          m.Sync,
		Async:         m.Async,
		OverflowRetry: m.OverflowRetry,
	}
	if s.queue != nil {
		snap.QueueDepth = s.queue.Size()
	}
	if s.table != nil {
		snap.ResourceCount = s.table.Len()
	}
	return snap
}

func (s *Server) handleMetricsStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan MetricsSnapshot, 16)
	s.metricsSubMu.Lock()
	s.metricsSubs[ch] = struct{}{}
	s.metricsSubMu.Unlock()

	defer func() {
		s.metricsSubMu.Lock()
		delete(s.metricsSubs, ch)
		s.metricsSubMu.Unlock()
	}()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-ch:
			if err := sseWrite(w, snap); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) handleLogsStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	s.logMu.Lock()
	history := make([]LogEntry, len(s.logs))
	copy(history, s.logs)
	s.logMu.Unlock()

	for _, entry := range history {
		if err := sseWrite(w, entry); err != nil {
			return
		}
	}
	flusher.Flush()

	ch := make(chan LogEntry, 256)
	s.logSubMu.Lock()
	s.logSubs[ch] = struct{}{}
	s.logSubMu.Unlock()

	defer func() {
		s.logSubMu.Lock()
		delete(s.logSubs, ch)
		s.logSubMu.Unlock()
	}()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case entry := <-ch:
			if err := sseWrite(w, entry); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func sseWrite(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

func (s *Server) handleResources(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.table == nil {
		json.NewEncoder(w).Encode([]resource.Entry{}) //nolint:errcheck
		return
	}
	if err := json.NewEncoder(w).Encode(s.table.Entries()); err != nil {
		log.Printf("inspector: encode resources: %v", err)
	}
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	depth := 0
	if s.queue != nil {
		depth = s.queue.Size()
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"recordsResident":%d}`, depth)
}

const maxProxyUploadSize = 10 << 20 // 10 MiB

func (s *Server) handleProxies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.proxies == nil {
		http.Error(w, "proxy rotation not configured", http.StatusNotImplemented)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxProxyUploadSize)
	if err := r.ParseMultipartForm(maxProxyUploadSize); err != nil {
		http.Error(w, "request too large or not multipart", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("proxies")
	if err != nil {
		http.Error(w, "missing 'proxies' field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	dest, err := os.CreateTemp("", "proxies-*.txt")
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	defer dest.Close()

	n, err := io.Copy(dest, file)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	if err := s.proxies.LoadProxies(dest.Name()); err != nil {
		http.Error(w, "failed to load uploaded proxy list", http.StatusBadRequest)
		return
	}

	s.AddLog("INFO", fmt.Sprintf("proxy list uploaded: file=%q size=%d bytes original=%q count=%d",
		dest.Name(), n, header.Filename, s.proxies.Count()))

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"ok":true,"count":%d}`, s.proxies.Count())
}
