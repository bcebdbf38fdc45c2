package mdk_test

import (
	"context"
	"testing"

	"github.com/catalogkit/mdk"
	"github.com/catalogkit/mdk/mock"
	"github.com/catalogkit/mdk/test"
	"github.com/pkg/errors"
)

type countingCommitter struct{ n int }

func (c *countingCommitter) Commit() error { c.n++; return nil }

func TestIngesterRun(t *testing.T) {
	stats := &mock.RecordingStatter{}
	report := mdk.NewSourceReport(stats)
	sink := &mock.Sink{}
	committer := &countingCommitter{}

	n := mdk.NewIngester(&mock.Source{Records: baseRecords()}, sink,
		mdk.DefaultProcessors(mdk.ProcessorConfig{BrowsePathsV2: true, Reporter: report})...)
	n.Committers = append(n.Committers, committer)
	test.ErrNil(t, n.Run(context.Background()), "Run")

	// 4 inputs, 2 statuses, a browse path for each of the 2 root containers
	test.MustBe(t, 8, len(sink.WorkUnits))
	test.MustBe(t, true, sink.Closed)
	test.MustBe(t, 1, committer.n)
	test.MustBe(t, 8, report.EventsProduced, "reporter sees synthesized units")
	test.MustBe(t, int64(8), stats.Counts["workunits"])
	test.MustBe(t, int64(5), stats.Tagged["workunits|entity_type:container"])
}

func TestIngesterSinkFailureSkipsCommit(t *testing.T) {
	boom := errors.New("disk full")
	sink := &mock.Sink{FailAfter: 2, Err: boom}
	committer := &countingCommitter{}
	n := mdk.NewIngester(&mock.Source{Records: baseRecords()}, sink, mdk.AutoStatusAspect)
	n.Committers = append(n.Committers, committer)

	err := n.Run(context.Background())
	if errors.Cause(err) != boom {
		t.Fatalf("expected sink error, got %v", err)
	}
	test.MustBe(t, 0, committer.n)
	test.MustBe(t, true, sink.Closed)
}

func TestIngesterCancelledSkipsCommit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	committer := &countingCommitter{}
	sink := &mock.Sink{}
	n := mdk.NewIngester(&mock.Source{Records: baseRecords()}, sink)
	n.Committers = append(n.Committers, committer)

	if err := n.Run(ctx); errors.Cause(err) != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	test.MustBe(t, 0, committer.n)
	test.MustBe(t, 0, len(sink.WorkUnits))
}

func TestIngesterStaleRemovalAcrossRuns(t *testing.T) {
	p := mdk.NewMapStateProvider()
	run := func(records ...interface{}) []*mdk.WorkUnit {
		h, err := mdk.NewStaleEntityRemovalHandler(enabledConfig(), "pipe", mdk.OptHandlerStateProvider(p))
		test.ErrNil(t, err, "handler")
		sink := &mock.Sink{}
		n := mdk.NewIngester(&mock.Source{Records: records}, sink,
			mdk.DefaultProcessors(mdk.ProcessorConfig{StaleEntities: h})...)
		n.Committers = append(n.Committers, h)
		test.ErrNil(t, n.Run(context.Background()), "Run")
		return sink.WorkUnits
	}

	first := run(mdk.NewChangeEvent(dsX, &mdk.Status{}), mdk.NewChangeEvent(dsY, &mdk.Status{}))
	test.MustBe(t, 2, len(first))

	second := run(mdk.NewChangeEvent(dsX, &mdk.Status{}))
	test.MustBe(t, 2, len(second))
	test.MustBe(t, []mdk.Aspect{&mdk.Status{Removed: true}}, test.AspectsOf(t, second, dsY, mdk.StatusAspectName))
}
