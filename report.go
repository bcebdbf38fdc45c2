package mdk

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Reporter is told about every unit that leaves the processing chain.
type Reporter interface {
	ReportWorkUnit(wu *WorkUnit)
}

// ReporterProcessor returns AutoWorkUnitReporter as a Processor.
func ReporterProcessor(r Reporter) Processor {
	return func(s Stream) Stream {
		return AutoWorkUnitReporter(r, s)
	}
}

// AutoWorkUnitReporter passes s through unchanged, reporting every unit to r
// before yielding it.
func AutoWorkUnitReporter(r Reporter, s Stream) Stream {
	return &passThrough{
		upstream: s,
		observe: func(wu *WorkUnit) error {
			r.ReportWorkUnit(wu)
			return nil
		},
	}
}

// maxReportedIDs bounds how many work unit ids a SourceReport keeps.
const maxReportedIDs = 20

// SourceReport accumulates what a run produced. Counts are also forwarded to
// its Statter.
type SourceReport struct {
	mu sync.Mutex

	EventsProduced int
	WorkUnitIDs    []string
	EntityCounts   map[string]int
	AspectCounts   map[string]int
	SoftDeleted    []string
	Warnings       map[string][]string
	Failures       map[string][]string

	stats Statter
}

// NewSourceReport returns an empty report which forwards counts to stats. A
// nil stats discards them.
func NewSourceReport(stats Statter) *SourceReport {
	if stats == nil {
		stats = NopStatter{}
	}
	return &SourceReport{
		EntityCounts: make(map[string]int),
		AspectCounts: make(map[string]int),
		Warnings:     make(map[string][]string),
		Failures:     make(map[string][]string),
		stats:        stats,
	}
}

// ReportWorkUnit implements Reporter.
func (r *SourceReport) ReportWorkUnit(wu *WorkUnit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.EventsProduced++
	if len(r.WorkUnitIDs) < maxReportedIDs {
		r.WorkUnitIDs = append(r.WorkUnitIDs, wu.ID)
	}
	typ := EntityType(wu.URN())
	r.EntityCounts[typ]++
	r.stats.Count("workunits", 1, 1.0, "entity_type:"+typ)
	aspects, err := wu.Aspects()
	if err != nil {
		// still a unit, but its aspects go uncounted
		r.Failures["aspects"] = append(r.Failures["aspects"], err.Error())
		r.stats.Count("failures", 1, 1.0)
	}
	for _, a := range aspects {
		r.AspectCounts[a.AspectName()]++
		r.stats.Count("aspects", 1, 1.0, "aspect:"+a.AspectName())
	}
}

// ReportSoftDeleted records that urn was marked removed.
func (r *SourceReport) ReportSoftDeleted(urn string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.SoftDeleted = append(r.SoftDeleted, urn)
	r.stats.Count("soft_deleted", 1, 1.0)
}

// ReportWarning records a warning under key.
func (r *SourceReport) ReportWarning(key, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Warnings[key] = append(r.Warnings[key], reason)
	r.stats.Count("warnings", 1, 1.0)
}

// ReportFailure records a failure under key.
func (r *SourceReport) ReportFailure(key, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failures[key] = append(r.Failures[key], reason)
	r.stats.Count("failures", 1, 1.0)
}

// String summarizes the report.
func (r *SourceReport) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := &strings.Builder{}
	fmt.Fprintf(b, "events produced: %d\n", r.EventsProduced)
	for _, k := range sortedKeys(r.EntityCounts) {
		fmt.Fprintf(b, "  %s: %d\n", k, r.EntityCounts[k])
	}
	fmt.Fprintf(b, "soft deleted: %d\n", len(r.SoftDeleted))
	fmt.Fprintf(b, "warnings: %d\n", len(r.Warnings))
	for _, k := range sortedKeys(r.Failures) {
		fmt.Fprintf(b, "failure %s: %s\n", k, strings.Join(r.Failures[k], "; "))
	}
	return b.String()
}

func sortedKeys(m interface{}) []string {
	var keys []string
	switch m := m.(type) {
	case map[string]int:
		for k := range m {
			keys = append(keys, k)
		}
	case map[string][]string:
		for k := range m {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
