package stream_test

import (
	"bytes"
	"testing"

	"github.com/arfaz/opbus/bus/stream"
)

func TestReadOnlyRejectsWrite(t *testing.T) {
	s := stream.NewReadOnly(bytes.NewReader([]byte("hello")))
	if _, berr := s.Write([]byte("x")); berr == nil {
		t.Fatal("expected bad_resource error on write to a read-only stream")
	}
}

func TestReadOnlyReadsThrough(t *testing.T) {
	s := stream.NewReadOnly(bytes.NewReader([]byte("hello")))
	buf := make([]byte, 5)
	n, berr := s.Read(buf)
	if berr != nil {
		t.Fatalf("Read: %v", berr)
	}
	if string(buf[:n]) != "hello" {
		t.Errorf("Read = %q, want %q", buf[:n], "hello")
	}
}

func TestReadOnlyClosesUnderlyingCloser(t *testing.T) {
	rc := &closeTrackingReader{Reader: bytes.NewReader(nil)}
	s := stream.NewReadOnly(rc)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !rc.closed {
		t.Error("expected Close to propagate to the underlying io.Closer")
	}
}

func TestWriteOnlyRejectsRead(t *testing.T) {
	var buf bytes.Buffer
	s := stream.NewWriteOnly(&buf)
	if _, berr := s.Read(make([]byte, 4)); berr == nil {
		t.Fatal("expected bad_resource error on read from a write-only stream")
	}
}

func TestWriteOnlyWritesThrough(t *testing.T) {
	var buf bytes.Buffer
	s := stream.NewWriteOnly(&buf)
	n, berr := s.Write([]byte("hi"))
	if berr != nil {
		t.Fatalf("Write: %v", berr)
	}
	if n != 2 || buf.String() != "hi" {
		t.Errorf("buf = %q, n = %d, want \"hi\", 2", buf.String(), n)
	}
}

func TestReadWriterSupportsBothDirections(t *testing.T) {
	rwc := &loopbackReadWriteCloser{buf: bytes.NewBuffer([]byte("seed"))}
	s := stream.NewReadWriter(rwc)

	buf := make([]byte, 4)
	n, berr := s.Read(buf)
	if berr != nil {
		t.Fatalf("Read: %v", berr)
	}
	if string(buf[:n]) != "seed" {
		t.Errorf("Read = %q, want %q", buf[:n], "seed")
	}

	if _, berr := s.Write([]byte("more")); berr != nil {
		t.Fatalf("Write: %v", berr)
	}
	if rwc.buf.String() != "more" {
		t.Errorf("buf = %q, want %q", rwc.buf.String(), "more")
	}
}

type closeTrackingReader struct {
	*bytes.Reader
	closed bool
}

func (c *closeTrackingReader) Close() error {
	c.closed = true
	return nil
}

type loopbackReadWriteCloser struct {
	buf *bytes.Buffer
}

func (l *loopbackReadWriteCloser) Read(p []byte) (int, error)  { return l.buf.Read(p) }
func (l *loopbackReadWriteCloser) Write(p []byte) (int, error) { l.buf.Reset(); return l.buf.Write(p) }
func (l *loopbackReadWriteCloser) Close() error                { return nil }
