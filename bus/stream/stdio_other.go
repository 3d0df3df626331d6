//go:build windows

// Windows has no dup(2); os.File does not expose a portable descriptor
// duplication primitive either, so cloning stdout/stderr on this platform
// falls back to sharing the original *os.File. This means closing a cloned
// stream resource on Windows does close the real stream — a known platform
// limitation, not a silent divergence; the run op's result contract is
// unaffected since it never closes stdout/stderr itself.
package stream

import "os"

func dupOSFile(f *os.File, name string) (*os.File, error) {
	return f, nil
}
