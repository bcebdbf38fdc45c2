package json

import (
	"io"

	"github.com/catalogkit/mdk"
	"github.com/pkg/errors"
)

// Writer encodes work unit payloads, either as a single json array or as one
// object per line.
type Writer struct {
	w     io.Writer
	lines bool
	n     int
}

// NewWriter returns a Writer which writes a json array to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// NewLineWriter returns a Writer which writes one object per line to w.
func NewLineWriter(w io.Writer) *Writer {
	return &Writer{w: w, lines: true}
}

// Write encodes wu's payload.
func (w *Writer) Write(wu *mdk.WorkUnit) error {
	data, err := mdk.MarshalMetadata(wu.Metadata)
	if err != nil {
		return errors.Wrapf(err, "encoding '%s'", wu.ID)
	}
	var prefix string
	switch {
	case w.lines:
	case w.n == 0:
		prefix = "[\n"
	default:
		prefix = ",\n"
	}
	if _, err := io.WriteString(w.w, prefix); err != nil {
		return errors.Wrap(err, "writing")
	}
	if _, err := w.w.Write(data); err != nil {
		return errors.Wrap(err, "writing")
	}
	if w.lines {
		if _, err := io.WriteString(w.w, "\n"); err != nil {
			return errors.Wrap(err, "writing")
		}
	}
	w.n++
	return nil
}

// Close terminates the array. It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.lines {
		return nil
	}
	end := "\n]\n"
	if w.n == 0 {
		end = "[]\n"
	}
	_, err := io.WriteString(w.w, end)
	return errors.Wrap(err, "closing array")
}

// Count returns how many payloads were written.
func (w *Writer) Count() int { return w.n }
