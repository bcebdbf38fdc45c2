package mdk_test

import (
	"strings"
	"testing"

	"github.com/catalogkit/mdk"
	"github.com/catalogkit/mdk/mock"
	"github.com/catalogkit/mdk/test"
)

func TestAutoWorkUnitReporter(t *testing.T) {
	stats := &mock.RecordingStatter{}
	r := mdk.NewSourceReport(stats)
	in := test.Collect(t, mdk.AutoWorkUnit(&mock.Source{Records: baseRecords()}))
	out := test.Collect(t, mdk.AutoWorkUnitReporter(r, mdk.SliceStream(in...)))
	test.MustBe(t, in, out)

	test.MustBe(t, 4, r.EventsProduced)
	test.MustBe(t, test.IDs(in), r.WorkUnitIDs)
	test.MustBe(t, map[string]int{"container": 2, "dataset": 2}, r.EntityCounts)
	test.MustBe(t, 2, r.AspectCounts[mdk.StatusAspectName])
	test.MustBe(t, int64(4), stats.Counts["aspects"])

	r.ReportWarning("lineage", "could not resolve upstream")
	r.ReportFailure("auth", "token expired")
	s := r.String()
	for _, want := range []string{"events produced: 4", "warnings: 1", "failure auth: token expired"} {
		if !strings.Contains(s, want) {
			t.Fatalf("report summary missing %q:\n%s", want, s)
		}
	}
}

func TestSourceReportUndecodableAspects(t *testing.T) {
	stats := &mock.RecordingStatter{}
	r := mdk.NewSourceReport(stats)
	ds := mdk.MakeDatasetURN("hive", "db.t", "PROD")
	r.ReportWorkUnit(mdk.NewWorkUnit("empty", nil))
	r.ReportWorkUnit(mdk.NewProposal(ds, &mdk.Status{}).WorkUnit())

	test.MustBe(t, 2, r.EventsProduced)
	test.MustBe(t, 1, r.AspectCounts[mdk.StatusAspectName])
	if len(r.Failures["aspects"]) != 1 || !strings.Contains(r.Failures["aspects"][0], "empty") {
		t.Fatalf("expected one aspects failure naming the unit, got %v", r.Failures)
	}
	test.MustBe(t, int64(1), stats.Counts["failures"])
}
