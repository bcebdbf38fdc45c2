package fake

import (
	"context"

	"github.com/catalogkit/mdk"
	"github.com/catalogkit/mdk/file"
	"github.com/pkg/errors"
)

// Main writes a fake crawl to a file.
type Main struct {
	Out        string  `help:"File to write the work units to."`
	Lines      bool    `help:"Write one work unit per line rather than a json array."`
	Platform   string  `help:"Data platform of the warehouse."`
	Env        string  `help:"Environment of the dataset urns."`
	Projects   int     `help:"Number of projects."`
	Datasets   int     `help:"Number of datasets per project."`
	Tables     int     `help:"Number of tables per dataset."`
	Seed       int64   `help:"Seed for table properties and skipping."`
	SkipTables float64 `help:"Fraction of tables to leave out."`
	Lineage    bool    `help:"Give tables upstreams, with raw s3 files as non-primary units."`
	Processed  bool    `help:"Run the crawl through the status, tag and browse path processors."`

	Log mdk.Logger `flag:"-"`
}

// NewMain gets a new Main with default values.
func NewMain() *Main {
	return &Main{
		Out:      "crawl.json",
		Platform: "bigquery",
		Env:      "PROD",
		Projects: 2,
		Datasets: 2,
		Tables:   3,
		Log:      mdk.NopLogger{},
	}
}

// Run writes the crawl.
func (m *Main) Run() error {
	src := NewSource(
		OptPlatform(m.Platform),
		OptEnv(m.Env),
		OptShape(m.Projects, m.Datasets, m.Tables),
		OptSeed(m.Seed),
		OptSkipTables(m.SkipTables),
		OptLineage(m.Lineage),
	)
	var opts []file.SinkOption
	if m.Lines {
		opts = append(opts, file.OptSinkLines())
	}
	sink, err := file.NewSink(m.Out, opts...)
	if err != nil {
		return errors.Wrap(err, "opening output")
	}
	var procs []mdk.Processor
	if m.Processed {
		procs = mdk.DefaultProcessors(mdk.ProcessorConfig{BrowsePathsV2: true})
	}
	ing := mdk.NewIngester(src, sink, procs...)
	ing.Log = m.Log
	if err := ing.Run(context.Background()); err != nil {
		return errors.Wrap(err, "writing crawl")
	}
	m.Log.Printf("wrote crawl to %s", m.Out)
	return nil
}
