package ingest

import (
	"os"
	"testing"
	"time"

	"github.com/catalogkit/mdk"
	"github.com/stretchr/testify/require"
)

func TestParseRecipeDefaults(t *testing.T) {
	r, err := ParseRecipe([]byte(`
pipeline_name: warehouse
source:
  type: fake
sink:
  type: console
`))
	require.NoError(t, err)
	require.Equal(t, "warehouse", r.PipelineName)
	require.Equal(t, "fake", r.Source.Type)
	require.True(t, r.BrowsePathV2.Enabled)
	require.Equal(t, mdk.NewStatefulIngestionConfig(), r.StatefulIngestion)
	require.NoError(t, r.Validate())
}

func TestParseRecipe(t *testing.T) {
	os.Setenv("MDK_TEST_TOKEN", "sekrit")
	defer os.Unsetenv("MDK_TEST_TOKEN")
	r, err := ParseRecipe([]byte(`
pipeline_name: warehouse
dry_run: true
source:
  type: kafka
  config:
    hosts: ["a:9092", "b:9092"]
    idle_timeout: 5s
sink:
  type: datahub-rest
  config:
    server: http://gms:8080
    token: ${MDK_TEST_TOKEN}
browse_path_v2:
  enabled: false
  drop_dirs: [prod]
stateful_ingestion:
  enabled: true
  fail_safe_threshold: 20
  state_provider:
    type: sqlite
    config:
      path: /tmp/state.sqlite
`))
	require.NoError(t, err)
	require.True(t, r.DryRun)
	require.Equal(t, "sekrit", r.Sink.Config["token"])
	require.Equal(t, BrowsePathConfig{DropDirs: []string{"prod"}}, r.BrowsePathV2)

	si := r.StatefulIngestion
	require.True(t, si.Enabled)
	require.True(t, si.RemoveStaleMetadata, "unset fields keep their defaults")
	require.Equal(t, 20.0, si.FailSafeThreshold)
	require.Equal(t, mdk.DefaultMaxCheckpointStateSize, si.MaxCheckpointStateSize)
	require.Equal(t, "sqlite", si.StateProvider.Type)
	require.Equal(t, "/tmp/state.sqlite", si.StateProvider.Config["path"])

	g := &getter{c: r.Source.Config}
	require.Equal(t, []string{"a:9092", "b:9092"}, g.strings("hosts", nil))
	require.Equal(t, 5*time.Second, g.duration("idle_timeout", 0))
	require.NoError(t, g.err)
}

func TestRecipeValidate(t *testing.T) {
	tests := []struct {
		name   string
		recipe string
	}{
		{name: "no source", recipe: "sink: {type: console}"},
		{name: "no sink", recipe: "source: {type: fake}"},
		{name: "stateful without pipeline name", recipe: "source: {type: fake}\nsink: {type: console}\nstateful_ingestion: {enabled: true}"},
		{name: "bad threshold", recipe: "pipeline_name: p\nsource: {type: fake}\nsink: {type: console}\nstateful_ingestion: {enabled: true, fail_safe_threshold: 120}"},
	}
	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			r, err := ParseRecipe([]byte(tst.recipe))
			require.NoError(t, err)
			require.Error(t, r.Validate())
		})
	}
}

func TestParseRecipeBadYAML(t *testing.T) {
	_, err := ParseRecipe([]byte("source: [unclosed"))
	require.Error(t, err)
}

func TestGetter(t *testing.T) {
	g := &getter{c: map[string]interface{}{
		"n":     3,
		"f":     0.5,
		"b":     true,
		"csv":   "a,b",
		"secs":  2,
		"wrong": []interface{}{1},
	}}
	require.Equal(t, 3, g.integer("n", 0))
	require.Equal(t, 7, g.integer("missing", 7))
	require.Equal(t, 0.5, g.float("f", 0))
	require.Equal(t, true, g.boolean("b", false))
	require.Equal(t, []string{"a", "b"}, g.strings("csv", nil))
	require.Equal(t, 2*time.Second, g.duration("secs", 0))
	require.NoError(t, g.err)

	g.strings("wrong", nil)
	require.Error(t, g.err)
	g.integer("b", 0)
	require.Contains(t, g.err.Error(), "'wrong'", "the first error is kept")
}

func TestUnknownPlugins(t *testing.T) {
	_, err := buildSource(PluginConfig{Type: "carrier-pigeon"}, mdk.NopLogger{})
	require.Error(t, err)
	_, err = buildSink(PluginConfig{Type: "carrier-pigeon"}, NewMain())
	require.Error(t, err)
	require.Contains(t, SourceTypes(), "fake")
	require.Contains(t, SinkTypes(), "datahub-rest")
}

func TestBuildSourceBadConfig(t *testing.T) {
	_, err := buildSource(PluginConfig{Type: "fake", Config: map[string]interface{}{"projects": "many"}}, mdk.NopLogger{})
	require.Error(t, err)
}
