// Package permission implements the host-side policy consulted by op
// handlers before performing a privileged action: opening a network
// connection, spawning a process, or touching the filesystem.
package permission

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/arfaz/opbus/bus/errs"
)

// Policy is the loaded allow-list. All fields are JSON-configurable via
// LoadFile, matching the rest of the repository's configuration
// convention.
type Policy struct {
	mu sync.RWMutex

	// AllowAllNet, when true, bypasses the NetHosts allow-list entirely.
	AllowAllNet bool `json:"allowAllNet"`
	// NetHosts is the list of host[:port] patterns fetch/net ops may reach.
	// An entry ending in "*" matches by prefix.
	NetHosts []string `json:"netHosts"`

	// AllowRun, when true, permits the run op to spawn child processes.
	AllowRun bool `json:"allowRun"`

	// ReadPaths / WritePaths list directory prefixes the read/write ops may
	// touch on the filesystem. An empty list denies all access of that
	// kind.
	ReadPaths  []string `json:"readPaths"`
	WritePaths []string `json:"writePaths"`
}

// Default returns a maximally permissive policy, suitable for local
// development and the demo guest; production embeddings should load an
// explicit allow-list file instead.
func Default() *Policy {
	return &Policy{
		AllowAllNet: true,
		AllowRun:    true,
		ReadPaths:   []string{"/"},
		WritePaths:  []string{"/"},
	}
}

// LoadFile reads a JSON policy document from path, rejecting unknown
// fields the same way config.LoadConfig does.
func LoadFile(path string) (*Policy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("permission: open %s: %w", path, err)
	}
	defer f.Close()

	var p Policy
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("permission: decode %s: %w", path, err)
	}
	return &p, nil
}

// CheckNetURL reports whether rawURL's host is reachable under the policy.
func (p *Policy) CheckNetURL(rawURL string) *errs.BusError {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.AllowAllNet {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return errs.New(errs.Parse, err)
	}
	host := u.Host
	for _, pattern := range p.NetHosts {
		if matchHost(pattern, host) {
			return nil
		}
	}
	return errs.Newf(errs.PermissionDenied, "network access to %q denied", host)
}

func matchHost(pattern, host string) bool {
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(host, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == host
}

// CheckRun reports whether the run op is permitted at all.
func (p *Policy) CheckRun() *errs.BusError {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.AllowRun {
		return nil
	}
	return errs.Newf(errs.PermissionDenied, "run access denied")
}

// CheckRead reports whether path is readable under the policy.
func (p *Policy) CheckRead(path string) *errs.BusError {
	return checkPath(&p.mu, p.ReadPaths, path, "read")
}

// CheckWrite reports whether path is writable under the policy.
func (p *Policy) CheckWrite(path string) *errs.BusError {
	return checkPath(&p.mu, p.WritePaths, path, "write")
}

func checkPath(mu *sync.RWMutex, allowed []string, path, verb string) *errs.BusError {
	mu.RLock()
	defer mu.RUnlock()
	clean := filepath.Clean(path)
	for _, prefix := range allowed {
		if prefix == "/" || strings.HasPrefix(clean, filepath.Clean(prefix)) {
			return nil
		}
	}
	return errs.Newf(errs.PermissionDenied, "%s access to %q denied", verb, path)
}
