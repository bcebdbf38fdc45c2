package file

import (
	"bufio"
	"context"
	"os"

	"github.com/catalogkit/mdk"
	"github.com/catalogkit/mdk/json"
	"github.com/pkg/errors"
)

// Sink is a mdk.Sink which writes work unit payloads to a json file, as an
// array by default.
type Sink struct {
	f   *os.File
	buf *bufio.Writer
	w   *json.Writer
}

// SinkOption is a functional option for the file Sink.
type SinkOption func(s *Sink)

// OptSinkLines writes one object per line instead of an array.
func OptSinkLines() SinkOption {
	return func(s *Sink) {
		s.w = json.NewLineWriter(s.buf)
	}
}

// NewSink creates (or truncates) filename.
func NewSink(filename string, opts ...SinkOption) (*Sink, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, errors.Wrap(err, "creating sink file")
	}
	s := &Sink{f: f, buf: bufio.NewWriter(f)}
	s.w = json.NewWriter(s.buf)
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Write implements mdk.Sink.
func (s *Sink) Write(ctx context.Context, wu *mdk.WorkUnit) error {
	return s.w.Write(wu)
}

// Close implements mdk.Sink.
func (s *Sink) Close() error {
	if err := s.w.Close(); err != nil {
		s.f.Close()
		return err
	}
	if err := s.buf.Flush(); err != nil {
		s.f.Close()
		return errors.Wrap(err, "flushing")
	}
	return errors.Wrap(s.f.Close(), "closing sink file")
}
