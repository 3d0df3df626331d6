// Package config provides production-grade configuration management for the
// op bus. It supports JSON-based configuration loading with safe defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config holds all tunable parameters for one bus instance. The struct is
// designed to be loaded once at startup and then shared across goroutines
// as a read-only value, making it inherently thread-safe after
// initialization.
type Config struct {
	// QueueSize is the byte size of the shared memory queue backing the
	// host<->guest ring buffer. Must be large enough to hold the largest
	// single record plus its header; see bus/queue.RecommendedSize.
	QueueSize int `json:"queue_size"`

	// MaxConcurrentAsync bounds how many asynchronous op completions
	// (fetch, run_status, and similar) may be in flight at once. 0 means
	// unbounded.
	MaxConcurrentAsync int `json:"max_concurrent_async"`

	// FetchTimeout is the end-to-end timeout applied to a single fetch()
	// op's HTTP round trip.
	FetchTimeout time.Duration `json:"fetch_timeout"`

	// FetchWorkers sizes the worker pool backing fetch and run_status ops.
	FetchWorkers int `json:"fetch_workers"`

	// ImpersonationProfile selects the browser fingerprint fetch() requests
	// are carried under: "", "chrome", or "firefox". Empty disables
	// impersonation and uses the stdlib transport shape.
	ImpersonationProfile string `json:"impersonation_profile"`

	// ProxyFile is the path to a newline-delimited file of proxy addresses
	// fetch() rotates through. Leave empty to dial direct.
	ProxyFile string `json:"proxy_file"`

	// PermissionFile is the path to a JSON permission.Policy document. Leave
	// empty to run with permission.Default() (maximally permissive).
	PermissionFile string `json:"permission_file"`

	// RandomSeed, when non-nil, seeds get_random_values deterministically
	// for reproducible test runs instead of drawing from crypto/rand.
	RandomSeed *int64 `json:"random_seed"`

	// InspectorAddr is the listen address for the introspection HTTP
	// server (queue depth, resource table, dispatch counters). Leave empty
	// to disable it.
	InspectorAddr string `json:"inspector_addr"`
}

// LoadConfig reads a JSON file at filename and deserialises it into a
// Config. It returns an error if the file cannot be opened or if the JSON
// is malformed. The returned *Config is ready to use; zero-value fields
// retain Go's zero values, so callers should validate required fields
// after loading.
func LoadConfig(filename string) (*Config, error) {
	f, err := os.Open(filename) // #nosec G304 -- filename is caller-provided config path
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", filename, err)
	}
	defer f.Close()

	var cfg Config
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields() // catch typos in config files early
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode %q: %w", filename, err)
	}
	return &cfg, nil
}

// DefaultConfig returns a *Config pre-filled with development-sensible
// defaults. Callers are free to mutate the returned struct before passing
// it to other components; each call returns a fresh independent copy.
func DefaultConfig() *Config {
	return &Config{
		QueueSize:            128 * 100, // bus/queue.RecommendedSize
		MaxConcurrentAsync:   64,
		FetchTimeout:         30 * time.Second,
		FetchWorkers:         16,
		ImpersonationProfile: "",
		ProxyFile:            "",
		PermissionFile:       "",
		InspectorAddr:        "",
	}
}
