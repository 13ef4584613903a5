package adapter

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"

	m "trellis.dev/pkg/trellis/internal/model"
	"trellis.dev/pkg/trellis/pkg"
)

// OutputRecorder is a listener capturing test output to a spool file so it
// can be written to a report after the run.
type OutputRecorder struct {
	m.NullListener
	spool pkg.Spool[m.TestOutput]
}

var (
	_ m.Listener  = (*OutputRecorder)(nil)
	_ io.WriterTo = (*OutputRecorder)(nil)
)

// NewOutputRecorder creates an OutputRecorder spooling into dir.
func NewOutputRecorder(dir string) (*OutputRecorder, error) {
	spool, err := pkg.NewSpool[m.TestOutput](dir)
	if err != nil {
		return nil, err
	}

	return &OutputRecorder{spool: spool}, nil
}

// TestOutput implements m.Listener.
func (r *OutputRecorder) TestOutput(output m.TestOutput) {
	if err := r.spool.Append(output); err != nil {
		slog.Error("failed to record test output", "test", output.Test, "error", err)
	}
}

// Len returns the number of recorded output chunks.
func (r *OutputRecorder) Len() uint64 {
	return r.spool.Len()
}

// WriteTo writes every chunk prefixed by its test and stream.
func (r *OutputRecorder) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: bufio.NewWriter(w)}

	err := r.spool.Range(func(_ uint64, output m.TestOutput) error {
		for _, line := range strings.SplitAfter(output.Text, "\n") {
			if line == "" {
				continue
			}

			if _, err := fmt.Fprintf(cw, "[%s] %s: %s", output.Test, output.Kind, line); err != nil {
				return err
			}

			if !strings.HasSuffix(line, "\n") {
				if _, err := io.WriteString(cw, "\n"); err != nil {
					return err
				}
			}
		}

		return nil
	})
	if err != nil {
		return cw.n, err
	}

	return cw.n, cw.w.Flush()
}

// Close deletes the spool file.
func (r *OutputRecorder) Close() error {
	return r.spool.Close()
}

type countingWriter struct {
	w *bufio.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)

	return n, err
}
