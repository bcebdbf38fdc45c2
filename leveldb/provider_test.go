package leveldb_test

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/catalogkit/mdk"
	"github.com/catalogkit/mdk/leveldb"
	"github.com/stretchr/testify/require"
)

func TestProvider(t *testing.T) {
	d, err := ioutil.TempDir("", "levelprovider")
	require.NoError(t, err)
	defer os.RemoveAll(d)

	p, err := mdk.NewStateProvider(leveldb.ProviderName, map[string]interface{}{"path": d})
	require.NoError(t, err)

	cp, err := p.LatestCheckpoint("pipe", "job")
	require.NoError(t, err)
	require.Nil(t, cp)

	var runs []string
	for _, urn := range []string{"urn:li:container:a", "urn:li:container:b", "urn:li:container:c"} {
		c := mdk.NewCheckpoint("pipe", "job")
		c.State.Add(mdk.ContainerEntityType, urn)
		require.NoError(t, p.Commit(c))
		runs = append(runs, c.RunID)
	}
	// a job whose name extends this one's must not leak into it
	require.NoError(t, p.Commit(mdk.NewCheckpoint("pipe", "job2")))

	cp, err = p.LatestCheckpoint("pipe", "job")
	require.NoError(t, err)
	require.Equal(t, runs[2], cp.RunID)
	require.Equal(t, []string{"urn:li:container:c"}, cp.State.URNs(mdk.ContainerEntityType))

	history, err := p.(mdk.CheckpointHistory).History("pipe", "job")
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, h := range history {
		require.Equal(t, runs[i], h.RunID)
	}
	require.NoError(t, p.Close())
}
