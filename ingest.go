package mdk

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
)

// Sink receives the fully processed stream.
type Sink interface {
	Write(ctx context.Context, wu *WorkUnit) error
	Close() error
}

// Committer is anything which persists state at the end of a complete run,
// such as a StaleEntityRemovalHandler.
type Committer interface {
	Commit() error
}

// Ingester runs a Source through a chain of processors into a Sink.
type Ingester struct {
	// Committers are committed, in order, only after every unit of a run
	// reached the sink.
	Committers []Committer
	Log        Logger
	Stats      Statter

	src   Source
	sink  Sink
	procs []Processor
}

// NewIngester returns an Ingester which wraps src with AutoWorkUnit, then
// applies procs in order. Nil processors are skipped.
func NewIngester(src Source, sink Sink, procs ...Processor) *Ingester {
	return &Ingester{
		Log:   NopLogger{},
		Stats: NopStatter{},
		src:   src,
		sink:  sink,
		procs: procs,
	}
}

// Run pulls the stream to completion. A run that stops early, through an
// error or ctx being done, still closes the sink but commits nothing.
func (n *Ingester) Run(ctx context.Context) (err error) {
	defer func() {
		cerr := n.sink.Close()
		if err == nil && cerr != nil {
			err = errors.Wrap(cerr, "closing sink")
		}
	}()
	start := time.Now()
	s := Chain(AutoWorkUnit(n.src), n.procs...)
	count := 0
	for {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "run stopped after %d work units", count)
		}
		wu, err := s.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return errors.Wrapf(err, "getting work unit after %d", count)
		}
		if err := n.sink.Write(ctx, wu); err != nil {
			return errors.Wrapf(err, "writing work unit '%s'", wu.ID)
		}
		count++
		if count%10000 == 0 {
			n.Log.Debugf("wrote %d work units", count)
		}
	}
	for _, c := range n.Committers {
		if err := c.Commit(); err != nil {
			return errors.Wrap(err, "committing")
		}
	}
	n.Stats.Timing("ingest.run", time.Since(start), 1.0)
	n.Log.Printf("wrote %d work units in %v", count, time.Since(start))
	return nil
}
