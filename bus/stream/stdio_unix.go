//go:build !windows

// Duplicating the process-wide stdout/stderr file descriptor so that
// closing a cloned stream resource never closes the real stream.

package stream

import (
	"fmt"
	"os"
	"syscall"
)

// dupOSFile duplicates f's file descriptor via dup(2) and wraps the copy in
// a new *os.File so closing the clone does not affect f.
func dupOSFile(f *os.File, name string) (*os.File, error) {
	fd, err := syscall.Dup(int(f.Fd()))
	if err != nil {
		return nil, fmt.Errorf("stream: dup %s: %w", name, err)
	}
	return os.NewFile(uintptr(fd), name), nil
}
