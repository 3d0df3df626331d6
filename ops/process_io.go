package ops

import (
	"io"
	"os/exec"
	"strconv"

	"github.com/arfaz/opbus/bus/errs"
	"github.com/arfaz/opbus/bus/resource"
	"github.com/arfaz/opbus/bus/stream"
)

// stdioPipe holds whichever end of an io.Pipe the host keeps after handing
// the other end to the child.
type stdioPipe struct {
	r io.ReadCloser
	w io.WriteCloser
}

// resolveStdioRID parses mode as the decimal rid of an existing stream
// resource to clone, surfacing why it couldn't rather than silently leaving
// the child's stdio unwired: a non-numeric mode is a parse error, and a
// numeric mode that doesn't name a live stream is a bad_resource error.
func resolveStdioRID(mode string, table *resource.Table) (stream.Stream, *errs.BusError) {
	rid, err := strconv.Atoi(mode)
	if err != nil {
		return nil, errs.Newf(errs.Parse, "run: invalid stdio mode %q", mode)
	}
	return resource.Get[stream.Stream](table, int32(rid))
}

// wireStdin configures cmd's stdin per mode, which is either a StdioMode
// keyword or the decimal rid of an existing stream resource to clone.
func wireStdin(cmd *exec.Cmd, mode string, table *resource.Table) (*stdioPipe, *errs.BusError) {
	switch StdioMode(mode) {
	case StdioInherit, "":
		return nil, nil
	case StdioNull:
		return nil, nil
	case StdioPiped:
		pr, pw := io.Pipe()
		cmd.Stdin = pr
		return &stdioPipe{w: pw}, nil
	default:
		s, berr := resolveStdioRID(mode, table)
		if berr != nil {
			return nil, berr
		}
		cmd.Stdin = readerFrom(s)
		return nil, nil
	}
}

// wireStdout configures cmd's stdout per mode.
func wireStdout(cmd *exec.Cmd, mode string, table *resource.Table) (*stdioPipe, *errs.BusError) {
	switch StdioMode(mode) {
	case StdioInherit, "":
		return nil, nil
	case StdioNull:
		return nil, nil
	case StdioPiped:
		pr, pw := io.Pipe()
		cmd.Stdout = pw
		return &stdioPipe{r: pr}, nil
	default:
		s, berr := resolveStdioRID(mode, table)
		if berr != nil {
			return nil, berr
		}
		cmd.Stdout = writerFrom(s)
		return nil, nil
	}
}

// wireStderr configures cmd's stderr per mode.
func wireStderr(cmd *exec.Cmd, mode string, table *resource.Table) (*stdioPipe, *errs.BusError) {
	switch StdioMode(mode) {
	case StdioInherit, "":
		return nil, nil
	case StdioNull:
		return nil, nil
	case StdioPiped:
		pr, pw := io.Pipe()
		cmd.Stderr = pw
		return &stdioPipe{r: pr}, nil
	default:
		s, berr := resolveStdioRID(mode, table)
		if berr != nil {
			return nil, berr
		}
		cmd.Stderr = writerFrom(s)
		return nil, nil
	}
}

// streamReader/streamWriter adapt a stream.Stream back to io.Reader/Writer
// for handing to exec.Cmd, converting BusErrors to plain errors.
type streamReader struct{ s stream.Stream }

func (r streamReader) Read(p []byte) (int, error) {
	n, berr := r.s.Read(p)
	if berr != nil {
		return n, berr
	}
	return n, nil
}

type streamWriter struct{ s stream.Stream }

func (w streamWriter) Write(p []byte) (int, error) {
	n, berr := w.s.Write(p)
	if berr != nil {
		return n, berr
	}
	return n, nil
}

func readerFrom(s stream.Stream) io.Reader { return streamReader{s: s} }
func writerFrom(s stream.Stream) io.Writer { return streamWriter{s: s} }
