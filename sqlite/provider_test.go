package sqlite_test

import (
	"testing"
	"time"

	"github.com/catalogkit/mdk"
	"github.com/catalogkit/mdk/sqlite"
	"github.com/stretchr/testify/require"
)

func TestProvider(t *testing.T) {
	p, err := sqlite.NewProvider(":memory:")
	require.NoError(t, err)
	defer p.Close()

	cp, err := p.LatestCheckpoint("pipe", "job")
	require.NoError(t, err)
	require.Nil(t, cp)

	old := mdk.NewCheckpoint("pipe", "job")
	old.Timestamp = time.Now().Add(-48 * time.Hour)
	old.State.Add(mdk.DatasetEntityType, "urn:li:dataset:(urn:li:dataPlatform:hive,db.old,PROD)")
	require.NoError(t, p.Commit(old))

	cur := mdk.NewCheckpoint("pipe", "job")
	cur.State.Add(mdk.DatasetEntityType, "urn:li:dataset:(urn:li:dataPlatform:hive,db.new,PROD)")
	require.NoError(t, p.Commit(cur))

	cp, err = p.LatestCheckpoint("pipe", "job")
	require.NoError(t, err)
	require.Equal(t, cur.RunID, cp.RunID)
	require.Equal(t, cur.State.URNs(mdk.DatasetEntityType), cp.State.URNs(mdk.DatasetEntityType))

	history, err := p.History("pipe", "job")
	require.NoError(t, err)
	require.Len(t, history, 2)

	n, err := p.Prune(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	history, err = p.History("pipe", "job")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, cur.RunID, history[0].RunID)
}

func TestPruneKeepsLatest(t *testing.T) {
	p, err := sqlite.NewProvider(":memory:")
	require.NoError(t, err)
	defer p.Close()

	only := mdk.NewCheckpoint("pipe", "job")
	only.Timestamp = time.Now().Add(-48 * time.Hour)
	require.NoError(t, p.Commit(only))

	n, err := p.Prune(time.Now())
	require.NoError(t, err)
	require.Equal(t, int64(0), n)
}

func TestRegistered(t *testing.T) {
	p, err := mdk.NewStateProvider(sqlite.ProviderName, map[string]interface{}{"path": ":memory:"})
	require.NoError(t, err)
	require.NoError(t, p.Close())
}
