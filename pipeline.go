package mdk

import (
	"io"

	"github.com/pkg/errors"
)

// Stream is a lazy sequence of WorkUnits. Next returns io.EOF once the stream
// is exhausted, and any other error is fatal to the stream.
type Stream interface {
	Next() (*WorkUnit, error)
}

// StreamFunc adapts a function to the Stream interface.
type StreamFunc func() (*WorkUnit, error)

// Next implements Stream.
func (f StreamFunc) Next() (*WorkUnit, error) { return f() }

// Processor transforms one stream into another.
type Processor func(Stream) Stream

// Chain wraps s in each processor in turn. Nil processors are skipped, so
// optional stages can be left out of a list without filtering it first.
func Chain(s Stream, procs ...Processor) Stream {
	for _, p := range procs {
		if p == nil {
			continue
		}
		s = p(s)
	}
	return s
}

type sliceStream struct {
	wus []*WorkUnit
}

// SliceStream returns a Stream over wus.
func SliceStream(wus ...*WorkUnit) Stream {
	return &sliceStream{wus: wus}
}

func (s *sliceStream) Next() (*WorkUnit, error) {
	if len(s.wus) == 0 {
		return nil, io.EOF
	}
	wu := s.wus[0]
	s.wus = s.wus[1:]
	return wu, nil
}

// Collect drains s.
func Collect(s Stream) ([]*WorkUnit, error) {
	var wus []*WorkUnit
	for {
		wu, err := s.Next()
		if err == io.EOF {
			return wus, nil
		} else if err != nil {
			return wus, err
		}
		wus = append(wus, wu)
	}
}

// AutoWorkUnit wraps each record of src in a WorkUnit. Change events get the
// id <urn>/mce and typed proposals get <urn>-<aspectName>. Any other record
// is a fatal error, except a *WorkUnit, which sources use to set
// IsPrimarySource themselves and which is passed on as is.
func AutoWorkUnit(src Source) Stream {
	return StreamFunc(func() (*WorkUnit, error) {
		rec, err := src.Record()
		if err == io.EOF {
			return nil, err
		} else if err != nil {
			return nil, errors.Wrap(err, "getting record")
		}
		switch r := rec.(type) {
		case *ChangeEvent:
			return r.WorkUnit(), nil
		case *ChangeProposalWrapper:
			return r.WorkUnit(), nil
		case *WorkUnit:
			return r, nil
		default:
			return nil, errors.Wrapf(ErrUnknownMetadata, "source returned %T", rec)
		}
	})
}

// passThrough is the shape every stage shares: upstream units are observed
// and re-yielded unchanged, and once upstream ends the units produced by
// finish follow. Errors are sticky.
type passThrough struct {
	upstream Stream
	observe  func(wu *WorkUnit) error
	finish   func() (Stream, error)

	tail Stream
	err  error
}

func (p *passThrough) Next() (*WorkUnit, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.tail == nil {
		wu, err := p.upstream.Next()
		if err == nil {
			if p.observe != nil {
				if err := p.observe(wu); err != nil {
					p.err = err
					return nil, err
				}
			}
			return wu, nil
		}
		if err != io.EOF {
			p.err = err
			return nil, err
		}
		p.tail = SliceStream()
		if p.finish != nil {
			tail, err := p.finish()
			if err != nil {
				p.err = err
				return nil, err
			}
			if tail != nil {
				p.tail = tail
			}
		}
	}
	wu, err := p.tail.Next()
	if err != nil {
		p.err = err
	}
	return wu, err
}
