package file

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/catalogkit/mdk"
)

func TestSinkRoundTrip(t *testing.T) {
	d := mustTempDir(t, "testsink")
	defer os.RemoveAll(d)

	parent := mdk.MakeContainerURN("parent")
	in := []*mdk.WorkUnit{
		mdk.NewChangeEvent(parent, &mdk.ContainerProperties{Name: "parent"}).WorkUnit(),
		mdk.NewProposal(mdk.MakeContainerURN("child"), &mdk.Container{Container: parent}).WorkUnit(),
	}
	for _, opts := range [][]SinkOption{nil, {OptSinkLines()}} {
		name := filepath.Join(d, "out.json")
		sink, err := NewSink(name, opts...)
		if err != nil {
			t.Fatalf("creating sink: %v", err)
		}
		for _, wu := range in {
			if err := sink.Write(context.Background(), wu); err != nil {
				t.Fatalf("writing: %v", err)
			}
		}
		if err := sink.Close(); err != nil {
			t.Fatalf("closing: %v", err)
		}

		data, err := ioutil.ReadFile(name)
		if err != nil {
			t.Fatalf("reading back: %v", err)
		}
		if opts == nil && !strings.HasPrefix(string(data), "[") {
			t.Fatalf("expected a json array, got %s", data)
		}

		src, err := NewSource(OptSrcPath(name))
		if err != nil {
			t.Fatalf("getting source: %v", err)
		}
		out, err := mdk.Collect(mdk.AutoWorkUnit(src))
		if err != nil {
			t.Fatalf("reading back: %v", err)
		}
		if !reflect.DeepEqual(in, out) {
			t.Fatalf("round trip mismatch:\n%v\n%v", in, out)
		}
	}
}
