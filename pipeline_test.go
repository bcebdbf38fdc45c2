package mdk_test

import (
	"io"
	"testing"

	"github.com/catalogkit/mdk"
	"github.com/catalogkit/mdk/mock"
	"github.com/catalogkit/mdk/test"
	"github.com/pkg/errors"
)

func TestAutoWorkUnit(t *testing.T) {
	wus := test.Collect(t, mdk.AutoWorkUnit(&mock.Source{Records: baseRecords()}))
	test.MustBe(t, []string{
		"urn:li:container:008e111aa1d250dd52e0fd5d4b307b1a-containerProperties",
		"urn:li:container:108e111aa1d250dd52e0fd5d4b307b12-status",
		staffingURN + "/mce",
		bedsURN + "/mce",
	}, test.IDs(wus))
	for _, wu := range wus {
		if !wu.IsPrimarySource {
			t.Fatalf("%s should default to primary source", wu.ID)
		}
	}
}

func TestAutoWorkUnitErrors(t *testing.T) {
	s := mdk.AutoWorkUnit(&mock.Source{Records: []interface{}{"not metadata"}})
	_, err := s.Next()
	if errors.Cause(err) != mdk.ErrUnknownMetadata {
		t.Fatalf("expected ErrUnknownMetadata, got %v", err)
	}

	srcErr := errors.New("connection reset")
	s = mdk.AutoWorkUnit(&mock.Source{Err: srcErr})
	_, err = s.Next()
	if errors.Cause(err) != srcErr {
		t.Fatalf("expected source error, got %v", err)
	}
}

func TestChainSkipsNil(t *testing.T) {
	var calls []string
	tag := func(name string) mdk.Processor {
		return func(s mdk.Stream) mdk.Stream {
			calls = append(calls, name)
			return s
		}
	}
	wu := mdk.NewProposal(mdk.MakeContainerURN("a"), &mdk.Status{}).WorkUnit()
	s := mdk.Chain(mdk.SliceStream(wu), tag("first"), nil, tag("second"), nil)
	test.MustBe(t, []string{"first", "second"}, calls)
	test.MustBe(t, []*mdk.WorkUnit{wu}, test.Collect(t, s))
}

type failingStream struct {
	wus []*mdk.WorkUnit
	err error
}

func (f *failingStream) Next() (*mdk.WorkUnit, error) {
	if len(f.wus) == 0 {
		return nil, f.err
	}
	wu := f.wus[0]
	f.wus = f.wus[1:]
	return wu, nil
}

func TestUpstreamErrorIsFatal(t *testing.T) {
	boom := errors.New("boom")
	wu := mdk.NewProposal(mdk.MakeContainerURN("a"), &mdk.ContainerProperties{Name: "a"}).WorkUnit()
	s := mdk.AutoStatusAspect(&failingStream{wus: []*mdk.WorkUnit{wu}, err: boom})

	got, err := s.Next()
	test.ErrNil(t, err, "first unit")
	test.MustBe(t, wu, got)
	for i := 0; i < 2; i++ {
		// no synthesized status may follow a failed upstream
		if _, err := s.Next(); err != boom {
			t.Fatalf("call %d: expected upstream error, got %v", i, err)
		}
	}
}

func TestEmptyStream(t *testing.T) {
	s := mdk.Chain(mdk.SliceStream(), mdk.DefaultProcessors(mdk.ProcessorConfig{BrowsePathsV2: true})...)
	if _, err := s.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestEndToEndContainerChain(t *testing.T) {
	p, c1, c2 := mdk.MakeContainerURN("P"), mdk.MakeContainerURN("C1"), mdk.MakeContainerURN("C2")
	in := []*mdk.WorkUnit{
		mdk.NewProposal(p, &mdk.ContainerProperties{Name: "P"}).WorkUnit(),
		mdk.NewProposal(c1, &mdk.Container{Container: p}).WorkUnit(),
		mdk.NewProposal(c2, &mdk.Container{Container: c1}).WorkUnit(),
	}
	out := test.Collect(t, mdk.AutoBrowsePathV2(nil, mdk.SliceStream(in...)))
	if len(out) != 6 {
		t.Fatalf("expected 6 units, got %d: %v", len(out), test.IDs(out))
	}
	test.MustBe(t, in, out[:3], "pass through")
	test.MustBe(t, []string{}, test.BrowsePathIDs(t, out[3:], p))
	test.MustBe(t, []string{p}, test.BrowsePathIDs(t, out[3:], c1))
	test.MustBe(t, []string{p, c1}, test.BrowsePathIDs(t, out[3:], c2))
}
