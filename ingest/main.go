// Package ingest runs ingestion recipes: it builds the source and sink a
// recipe names, chains the default processors between them and commits the
// stale entity state once a run completed.
package ingest

import (
	"context"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/catalogkit/mdk"
	"github.com/catalogkit/mdk/termstat"
	"github.com/pkg/errors"

	// state providers a recipe may name
	_ "github.com/catalogkit/mdk/boltdb"
	_ "github.com/catalogkit/mdk/leveldb"
	_ "github.com/catalogkit/mdk/sqlite"
)

// Main runs one recipe.
type Main struct {
	Recipe       string `help:"Path of the yaml ingestion recipe."`
	PipelineName string `help:"Overrides the recipe's pipeline_name."`
	DryRun       bool   `help:"Write to the sink but never commit state."`
	Verbose      bool   `help:"Enable debug logging."`
	Progress     bool   `help:"Print running counts to stderr."`

	Stdout io.Writer   `flag:"-"`
	Stats  mdk.Statter `flag:"-"`
	Logger mdk.Logger  `flag:"-"`

	// Report holds the counts of the last run.
	Report *mdk.SourceReport `flag:"-"`

	log mdk.Logger
}

// NewMain gets a new Main with default values.
func NewMain() *Main {
	return &Main{
		Recipe: "recipe.yaml",
		Stdout: os.Stdout,
		Stats:  mdk.NopStatter{},
	}
}

// Run loads the recipe and runs it until the source is exhausted or the
// process is interrupted.
func (m *Main) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	r, err := LoadRecipe(m.Recipe)
	if err != nil {
		return err
	}
	return m.RunRecipe(ctx, r)
}

// RunRecipe runs r. Flags set on m override the recipe.
func (m *Main) RunRecipe(ctx context.Context, r *Recipe) (err error) {
	if m.PipelineName != "" {
		r.PipelineName = m.PipelineName
	}
	if m.DryRun {
		r.DryRun = true
	}
	if err := r.Validate(); err != nil {
		return errors.Wrap(err, "validating recipe")
	}

	m.log = m.Logger
	if m.log == nil {
		zl, err := mdk.NewZapLogger(m.Verbose)
		if err != nil {
			return err
		}
		defer zl.Sync() // nolint: errcheck
		m.log = zl
	}
	stats := m.Stats
	if stats == nil {
		stats = mdk.NopStatter{}
	}
	if _, nop := stats.(mdk.NopStatter); nop && m.Progress {
		progress := termstat.NewCollector(os.Stderr, 2*time.Second)
		defer progress.Stop()
		stats = progress
	}
	if m.Stdout == nil {
		m.Stdout = os.Stdout
	}
	m.Report = mdk.NewSourceReport(stats)

	handler, err := mdk.NewStaleEntityRemovalHandler(r.StatefulIngestion, r.PipelineName,
		mdk.OptHandlerDryRun(r.DryRun),
		mdk.OptHandlerReport(m.Report),
		mdk.OptHandlerLogger(m.log),
	)
	if err != nil {
		return errors.Wrap(err, "setting up stateful ingestion")
	}
	defer func() {
		if cerr := handler.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	src, err := buildSource(r.Source, m.log)
	if err != nil {
		return err
	}
	if src.closer != nil {
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-ctx.Done():
			case <-stop:
			}
			if err := src.closer.Close(); err != nil {
				m.log.Printf("closing %s source: %v", r.Source.Type, err)
			}
		}()
	}
	sink, err := buildSink(r.Sink, m)
	if err != nil {
		return err
	}

	procs := mdk.DefaultProcessors(mdk.ProcessorConfig{
		BrowsePathsV2: r.BrowsePathV2.Enabled,
		DropDirs:      r.BrowsePathV2.DropDirs,
		StaleEntities: staleHandler(handler),
		Reporter:      m.Report,
	})
	ing := mdk.NewIngester(src, sink, procs...)
	ing.Log = m.log
	ing.Stats = stats
	if handler.Enabled() {
		ing.Committers = append(ing.Committers, handler)
	}

	m.log.Printf("running pipeline '%s' from %s to %s (run %s)", r.PipelineName, r.Source.Type, r.Sink.Type, handler.RunID())
	if err := ing.Run(ctx); err != nil {
		return errors.Wrapf(err, "running pipeline '%s'", r.PipelineName)
	}
	m.log.Printf("pipeline finished:\n%s", m.Report)
	return nil
}

// staleHandler returns h as a StaleEntityHandler, or nil if it is disabled
// so that the stage is left out.
func staleHandler(h *mdk.StaleEntityRemovalHandler) mdk.StaleEntityHandler {
	if !h.Enabled() {
		return nil
	}
	return h
}
