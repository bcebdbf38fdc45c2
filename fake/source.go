// Package fake crawls a synthetic warehouse. The crawl is a pure function of
// its options: projects become containers, each holding dataset containers,
// each holding tables.
package fake

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/catalogkit/mdk"
	"github.com/catalogkit/mdk/fake/gen"
)

// Tags tables are tagged with. Tier tags are drawn skewed towards the first.
var (
	TierTags = []string{"Tier1", "Tier2", "Tier3"}
	PIITag   = "PII"
)

var tableWords = []string{"orders", "customers", "payments", "sessions", "events", "invoices", "shipments", "products", "refunds", "clicks", "accounts", "inventory"}

var epoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// Source is an mdk.Source which generates a warehouse crawl.
type Source struct {
	platform string
	env      string
	projects int
	datasets int
	tables   int
	seed     int64
	skip     float64
	lineage  bool

	g       *gen.Generator
	p, d, t int
	pending []interface{}
}

// Option configures a Source.
type Option func(s *Source)

// OptPlatform sets the data platform, "bigquery" by default.
func OptPlatform(platform string) Option {
	return func(s *Source) {
		s.platform = platform
	}
}

// OptEnv sets the environment of the dataset urns, "PROD" by default.
func OptEnv(env string) Option {
	return func(s *Source) {
		s.env = env
	}
}

// OptShape sets how many projects there are, how many datasets each project
// has and how many tables each dataset has.
func OptShape(projects, datasets, tables int) Option {
	return func(s *Source) {
		s.projects, s.datasets, s.tables = projects, datasets, tables
	}
}

// OptSeed sets the seed the table properties are drawn with.
func OptSeed(seed int64) Option {
	return func(s *Source) {
		s.seed = seed
	}
}

// OptSkipTables leaves out roughly fraction of the tables, as if they had been
// dropped since an earlier crawl. Which tables depends on the seed.
func OptSkipTables(fraction float64) Option {
	return func(s *Source) {
		s.skip = fraction
	}
}

// OptLineage gives every table an upstream: the table before it in its
// dataset, or for the first table a raw file on s3. The s3 files are emitted
// as units this crawl is not the primary source of.
func OptLineage(lineage bool) Option {
	return func(s *Source) {
		s.lineage = lineage
	}
}

// NewSource returns a Source with the options applied.
func NewSource(opts ...Option) *Source {
	s := &Source{
		platform: "bigquery",
		env:      "PROD",
		projects: 2,
		datasets: 2,
		tables:   3,
		d:        -1,
		t:        -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.g = gen.NewGenerator(s.seed)
	return s
}

// Record implements mdk.Source.
func (s *Source) Record() (interface{}, error) {
	for len(s.pending) == 0 {
		if !s.advance() {
			return nil, io.EOF
		}
	}
	rec := s.pending[0]
	s.pending = s.pending[1:]
	return rec, nil
}

// advance moves the crawl one step, queueing whatever that step emits.
func (s *Source) advance() bool {
	switch {
	case s.p >= s.projects:
		return false
	case s.d == -1:
		s.emitProject()
		s.d = 0
	case s.d >= s.datasets:
		s.p++
		s.d = -1
	case s.t == -1:
		s.emitDataset()
		s.t = 0
	case s.t >= s.tables:
		s.d++
		s.t = -1
	default:
		// always draw, so the skip decision does not shift later draws
		if s.g.Float64() >= s.skip {
			s.emitTable()
		}
		s.t++
	}
	return true
}

func (s *Source) projectName() string { return fmt.Sprintf("project-%d", s.p) }

func (s *Source) datasetName() string { return fmt.Sprintf("dataset_%d", s.d) }

func (s *Source) tableName(t int) string {
	return fmt.Sprintf("%s_%d", tableWords[(s.p*7+s.d*3+t)%len(tableWords)], t)
}

// ProjectURN is the urn of a project container.
func (s *Source) ProjectURN(project string) string {
	return mdk.MakeContainerURN(s.platform + "." + project)
}

// DatasetContainerURN is the urn of a dataset container.
func (s *Source) DatasetContainerURN(project, dataset string) string {
	return mdk.MakeContainerURN(s.platform + "." + project + "." + dataset)
}

// TableURN is the urn of a table.
func (s *Source) TableURN(project, dataset, table string) string {
	return mdk.MakeDatasetURN(s.platform, strings.Join([]string{project, dataset, table}, "."), s.env)
}

func (s *Source) containerProps() map[string]string {
	return map[string]string{"platform": mdk.MakeDataPlatformURN(s.platform), "env": s.env}
}

func (s *Source) emitProject() {
	urn := s.ProjectURN(s.projectName())
	s.pending = append(s.pending,
		mdk.NewProposal(urn, &mdk.ContainerProperties{Name: s.projectName(), CustomProperties: s.containerProps()}),
		mdk.NewProposal(urn, &mdk.SubTypes{TypeNames: []string{"Project"}}),
	)
}

func (s *Source) emitDataset() {
	urn := s.DatasetContainerURN(s.projectName(), s.datasetName())
	s.pending = append(s.pending,
		mdk.NewProposal(urn, &mdk.ContainerProperties{Name: s.datasetName(), CustomProperties: s.containerProps()}),
		mdk.NewProposal(urn, &mdk.SubTypes{TypeNames: []string{"Dataset"}}),
		mdk.NewProposal(urn, &mdk.Container{Container: s.ProjectURN(s.projectName())}),
	)
}

func (s *Source) emitTable() {
	proj, ds, table := s.projectName(), s.datasetName(), s.tableName(s.t)
	urn := s.TableURN(proj, ds, table)
	tags := []mdk.TagAssociation{{Tag: mdk.MakeTagURN(TierTags[s.g.Uint64(len(TierTags))])}}
	if s.g.Uint64(4) == 0 {
		tags = append(tags, mdk.TagAssociation{Tag: mdk.MakeTagURN(PIITag)})
	}
	aspects := []mdk.Aspect{
		&mdk.DatasetProperties{Name: table, CustomProperties: map[string]string{
			"row_count":     strconv.FormatUint(s.g.Uint64(1000000), 10),
			"last_modified": s.g.Time(epoch, 24*time.Hour).Format(time.RFC3339),
			"owner_team":    strings.ToLower(s.g.String(6, 20)),
		}},
		&mdk.SubTypes{TypeNames: []string{"Table"}},
		&mdk.GlobalTags{Tags: tags},
		&mdk.BrowsePaths{Paths: []string{"/" + strings.ToLower(s.env) + "/" + s.platform + "/" + proj + "/" + ds}},
		&mdk.Container{Container: s.DatasetContainerURN(proj, ds)},
	}
	if !s.lineage {
		s.pending = append(s.pending, mdk.NewChangeEvent(urn, aspects...))
		return
	}
	if s.t == 0 {
		raw := mdk.MakeDatasetURN("s3", fmt.Sprintf("raw/%s/%s/%s", proj, ds, table), s.env)
		aspects = append(aspects, &mdk.UpstreamLineage{Upstreams: []mdk.Upstream{{Dataset: raw, Type: "COPY"}}})
		wu := mdk.NewProposal(raw, &mdk.DatasetProperties{Name: table}).WorkUnit()
		wu.IsPrimarySource = false
		s.pending = append(s.pending, mdk.NewChangeEvent(urn, aspects...), wu)
		return
	}
	up := s.TableURN(proj, ds, s.tableName(s.t-1))
	aspects = append(aspects, &mdk.UpstreamLineage{Upstreams: []mdk.Upstream{{Dataset: up, Type: "TRANSFORMED"}}})
	s.pending = append(s.pending, mdk.NewChangeEvent(urn, aspects...))
}
