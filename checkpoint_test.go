package mdk_test

import (
	"testing"

	"github.com/catalogkit/mdk"
	"github.com/catalogkit/mdk/test"
)

func TestCheckpointState(t *testing.T) {
	old := mdk.NewCheckpointState()
	old.Add(mdk.DatasetEntityType, dsX)
	old.Add(mdk.DatasetEntityType, dsY)
	old.Add(mdk.ContainerEntityType, mdk.MakeContainerURN("gone"))
	old.Add(mdk.DatasetEntityType, dsX)

	cur := mdk.NewCheckpointState()
	cur.Add(mdk.DatasetEntityType, dsX)

	test.MustBe(t, 3, old.Len())
	test.MustBe(t, []string{mdk.ContainerEntityType, mdk.DatasetEntityType}, old.EntityTypes())
	test.MustBe(t, []mdk.StaleURN{
		{EntityType: mdk.ContainerEntityType, URN: mdk.MakeContainerURN("gone")},
		{EntityType: mdk.DatasetEntityType, URN: dsY},
	}, old.StaleURNs(cur))
	if pct := old.PercentChanged(cur); pct < 66.6 || pct > 66.7 {
		t.Fatalf("unexpected percent changed %v", pct)
	}
	test.MustBe(t, 0.0, mdk.NewCheckpointState().PercentChanged(cur))
	if !old.Has(dsY) || cur.Has(dsY) {
		t.Fatal("Has disagrees with Add")
	}
}

func TestCheckpointEncoding(t *testing.T) {
	cp := mdk.NewCheckpoint("pipe", "job")
	cp.State.Add(mdk.DatasetEntityType, dsY)
	cp.State.Add(mdk.DatasetEntityType, dsX)

	data, err := cp.Encode()
	test.ErrNil(t, err, "Encode")
	got, err := mdk.DecodeCheckpoint(data)
	test.ErrNil(t, err, "DecodeCheckpoint")
	test.MustBe(t, cp.RunID, got.RunID)
	test.MustBe(t, cp.Timestamp.UnixNano(), got.Timestamp.UnixNano())
	test.MustBe(t, []string{dsX, dsY}, got.State.URNs(mdk.DatasetEntityType))
}

func TestRunIDsAreOrdered(t *testing.T) {
	prev := mdk.NewRunID()
	for i := 0; i < 100; i++ {
		id := mdk.NewRunID()
		if id <= prev {
			t.Fatalf("run id %s not after %s", id, prev)
		}
		prev = id
	}
}

func TestStateProviderRegistry(t *testing.T) {
	p, err := mdk.NewStateProvider(mdk.MemoryStateProvider, nil)
	test.ErrNil(t, err, "NewStateProvider")
	defer p.Close()

	cp, err := p.LatestCheckpoint("nope", "nope")
	test.ErrNil(t, err, "LatestCheckpoint")
	if cp != nil {
		t.Fatalf("expected no checkpoint, got %v", cp)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("registering memory twice should panic")
		}
	}()
	mdk.RegisterStateProvider(mdk.MemoryStateProvider, nil)
}

func TestConfigString(t *testing.T) {
	cfg := map[string]interface{}{"path": "/tmp/state.db", "size": 3}
	s, err := mdk.ConfigString(cfg, "path", "x")
	test.ErrNil(t, err, "path")
	test.MustBe(t, "/tmp/state.db", s)
	s, err = mdk.ConfigString(cfg, "missing", "x")
	test.ErrNil(t, err, "missing")
	test.MustBe(t, "x", s)
	if _, err := mdk.ConfigString(cfg, "size", ""); err == nil {
		t.Fatal("expected error for non-string value")
	}
}
