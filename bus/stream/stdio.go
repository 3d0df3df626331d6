package stream

import (
	"os"
	"sync"
)

var (
	stdoutOnce sync.Once
	stdoutFile *os.File
	stderrOnce sync.Once
	stderrFile *os.File
)

// processStdout returns the process-wide stdout handle, initialized once at
// first use. Every stream resource cloned from it must duplicate this
// handle (see CloneStdout) rather than share it, so closing one resource
// never closes real stdout for the rest of the process.
func processStdout() *os.File {
	stdoutOnce.Do(func() { stdoutFile = os.Stdout })
	return stdoutFile
}

func processStderr() *os.File {
	stderrOnce.Do(func() { stderrFile = os.Stderr })
	return stderrFile
}

// CloneStdout returns a Stream backed by an independent OS-level duplicate
// of process stdout. Closing it does not close the real stdout.
func CloneStdout() (Stream, error) {
	dup, err := dupOSFile(processStdout(), "stdout-clone")
	if err != nil {
		return nil, err
	}
	return NewWriteOnly(dup), nil
}

// CloneStderr is CloneStdout's counterpart for stderr.
func CloneStderr() (Stream, error) {
	dup, err := dupOSFile(processStderr(), "stderr-clone")
	if err != nil {
		return nil, err
	}
	return NewWriteOnly(dup), nil
}

// Stdin returns a Stream reading from the process's real stdin. Unlike
// stdout/stderr there is only ever one reader of stdin in this model, so no
// duplication is needed.
func Stdin() Stream {
	return NewReadOnly(os.Stdin)
}
