package mock

import (
	"context"
	"io"
	"sync"

	"github.com/catalogkit/mdk"
)

// Sink records what it is given. FailAfter, if positive, makes the write
// after that many succeed return Err.
type Sink struct {
	mu        sync.Mutex
	WorkUnits []*mdk.WorkUnit
	Closed    bool

	FailAfter int
	Err       error
}

// Write implements mdk.Sink.
func (s *Sink) Write(ctx context.Context, wu *mdk.WorkUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAfter > 0 && len(s.WorkUnits) >= s.FailAfter {
		return s.Err
	}
	s.WorkUnits = append(s.WorkUnits, wu)
	return nil
}

// Close implements mdk.Sink.
func (s *Sink) Close() error {
	s.mu.Lock()
	s.Closed = true
	s.mu.Unlock()
	return nil
}

// Source hands out Records in order and then io.EOF, or Err if it is set.
type Source struct {
	Records []interface{}
	Err     error
}

// Record implements mdk.Source.
func (s *Source) Record() (interface{}, error) {
	if len(s.Records) == 0 {
		if s.Err != nil {
			return nil, s.Err
		}
		return nil, io.EOF
	}
	rec := s.Records[0]
	s.Records = s.Records[1:]
	return rec, nil
}
