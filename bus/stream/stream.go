// Package stream unifies the heterogeneous byte-stream kinds the resource
// table holds — stdio, files, TCP, TLS, HTTP bodies, child pipes — behind
// one Stream interface, so the read/write op handlers never need to know
// which concrete kind they were handed.
package stream

import (
	"io"

	"github.com/arfaz/opbus/bus/errs"
)

// Tag names the well-known resource kinds used for table enumeration.
const (
	TagStdin           = "stdin"
	TagStdout          = "stdout"
	TagStderr          = "stderr"
	TagFsFile          = "fsFile"
	TagTCPStream       = "tcpStream"
	TagClientTLSStream = "clientTlsStream"
	TagServerTLSStream = "serverTlsStream"
	TagHTTPBody        = "httpBody"
	TagChildStdin      = "childStdin"
	TagChildStdout     = "childStdout"
	TagChildStderr     = "childStderr"
	TagChild           = "child"
)

// Stream is the capability set every resource-table entry that participates
// in read/write ops must implement. A variant that only supports one
// direction returns a bad_resource error from the other.
type Stream interface {
	// Read reads up to len(p) bytes. It returns bad_resource if the
	// underlying resource does not support reading.
	Read(p []byte) (n int, err *errs.BusError)
	// Write writes len(p) bytes. It returns bad_resource if the underlying
	// resource does not support writing.
	Write(p []byte) (n int, err *errs.BusError)
	// Close releases the underlying OS resource.
	Close() error
}

// readOnly wraps an io.Reader, rejecting writes with bad_resource.
type readOnly struct {
	r io.Reader
	c io.Closer
}

// NewReadOnly adapts an io.Reader (optionally also an io.Closer) as a
// Stream that rejects writes.
func NewReadOnly(r io.Reader) Stream {
	c, _ := r.(io.Closer)
	return &readOnly{r: r, c: c}
}

func (s *readOnly) Read(p []byte) (int, *errs.BusError) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		return n, errs.New(errs.IO, err)
	}
	if err == io.EOF {
		return n, nil
	}
	return n, nil
}

func (s *readOnly) Write([]byte) (int, *errs.BusError) {
	return 0, errs.Newf(errs.BadResource, "stream does not support write")
}

func (s *readOnly) Close() error {
	if s.c != nil {
		return s.c.Close()
	}
	return nil
}

// writeOnly wraps an io.Writer, rejecting reads with bad_resource.
type writeOnly struct {
	w io.Writer
	c io.Closer
}

// NewWriteOnly adapts an io.Writer (optionally also an io.Closer) as a
// Stream that rejects reads.
func NewWriteOnly(w io.Writer) Stream {
	c, _ := w.(io.Closer)
	return &writeOnly{w: w, c: c}
}

func (s *writeOnly) Read([]byte) (int, *errs.BusError) {
	return 0, errs.Newf(errs.BadResource, "stream does not support read")
}

func (s *writeOnly) Write(p []byte) (int, *errs.BusError) {
	n, err := s.w.Write(p)
	if err != nil {
		return n, errs.New(errs.IO, err)
	}
	return n, nil
}

func (s *writeOnly) Close() error {
	if s.c != nil {
		return s.c.Close()
	}
	return nil
}

// readWriter wraps something that is both an io.Reader and io.Writer (e.g.
// a TCP or TLS connection).
type readWriter struct {
	rw io.ReadWriteCloser
}

// NewReadWriter adapts an io.ReadWriteCloser (TCP streams, TLS streams) as a
// full-duplex Stream.
func NewReadWriter(rw io.ReadWriteCloser) Stream {
	return &readWriter{rw: rw}
}

func (s *readWriter) Read(p []byte) (int, *errs.BusError) {
	n, err := s.rw.Read(p)
	if err != nil && err != io.EOF {
		return n, errs.New(errs.IO, err)
	}
	return n, nil
}

func (s *readWriter) Write(p []byte) (int, *errs.BusError) {
	n, err := s.rw.Write(p)
	if err != nil {
		return n, errs.New(errs.IO, err)
	}
	return n, nil
}

func (s *readWriter) Close() error {
	return s.rw.Close()
}
