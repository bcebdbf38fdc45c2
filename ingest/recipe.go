package ingest

import (
	"io/ioutil"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/catalogkit/mdk"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// PluginConfig selects a source or sink by type and configures it.
type PluginConfig struct {
	Type   string                 `yaml:"type"`
	Config map[string]interface{} `yaml:"config"`
}

// BrowsePathConfig controls browse path v2 generation.
type BrowsePathConfig struct {
	Enabled  bool     `yaml:"enabled"`
	DropDirs []string `yaml:"drop_dirs"`
}

// Recipe describes one ingestion pipeline.
type Recipe struct {
	PipelineName      string                      `yaml:"pipeline_name"`
	DryRun            bool                        `yaml:"dry_run"`
	Source            PluginConfig                `yaml:"source"`
	Sink              PluginConfig                `yaml:"sink"`
	BrowsePathV2      BrowsePathConfig            `yaml:"browse_path_v2"`
	StatefulIngestion mdk.StatefulIngestionConfig `yaml:"stateful_ingestion"`
}

// ParseRecipe decodes a yaml recipe. ${VAR} references are replaced with the
// environment before decoding. Fields the recipe leaves out keep their
// defaults: browse paths v2 on and stateful ingestion off.
func ParseRecipe(data []byte) (*Recipe, error) {
	r := &Recipe{
		BrowsePathV2:      BrowsePathConfig{Enabled: true},
		StatefulIngestion: mdk.NewStatefulIngestionConfig(),
	}
	expanded := os.Expand(string(data), func(name string) string {
		return os.Getenv(name)
	})
	if err := yaml.Unmarshal([]byte(expanded), r); err != nil {
		return nil, errors.Wrap(err, "decoding recipe")
	}
	if r.StatefulIngestion.StateProvider.Type == "" {
		r.StatefulIngestion.StateProvider.Type = mdk.MemoryStateProvider
	}
	return r, nil
}

// LoadRecipe reads and parses the recipe at path.
func LoadRecipe(path string) (*Recipe, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading recipe")
	}
	r, err := ParseRecipe(data)
	return r, errors.Wrapf(err, "loading %s", path)
}

// Validate checks that the recipe can be run.
func (r *Recipe) Validate() error {
	if r.Source.Type == "" {
		return errors.New("recipe has no source type")
	}
	if r.Sink.Type == "" {
		return errors.New("recipe has no sink type")
	}
	return errors.Wrap(r.StatefulIngestion.Validate(r.PipelineName), "stateful_ingestion")
}

// getter reads typed values out of a plugin config, remembering the first
// error so that a builder can check once.
type getter struct {
	c   map[string]interface{}
	err error
}

func (g *getter) fail(key string, v interface{}, want string) {
	if g.err == nil {
		g.err = errors.Errorf("config key '%s' must be %s, got %T", key, want, v)
	}
}

func (g *getter) str(key, def string) string {
	s, err := mdk.ConfigString(g.c, key, def)
	if err != nil && g.err == nil {
		g.err = err
	}
	return s
}

func (g *getter) integer(key string, def int) int {
	switch v := g.c[key].(type) {
	case nil:
		return def
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			g.fail(key, v, "an integer")
		}
		return n
	default:
		g.fail(key, v, "an integer")
		return def
	}
}

func (g *getter) float(key string, def float64) float64 {
	switch v := g.c[key].(type) {
	case nil:
		return def
	case int:
		return float64(v)
	case float64:
		return v
	default:
		g.fail(key, v, "a number")
		return def
	}
}

func (g *getter) boolean(key string, def bool) bool {
	switch v := g.c[key].(type) {
	case nil:
		return def
	case bool:
		return v
	default:
		g.fail(key, v, "a boolean")
		return def
	}
}

// strings accepts a yaml list or a comma separated string.
func (g *getter) strings(key string, def []string) []string {
	switch v := g.c[key].(type) {
	case nil:
		return def
	case string:
		return strings.Split(v, ",")
	case []interface{}:
		ret := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				g.fail(key, e, "a list of strings")
				return def
			}
			ret = append(ret, s)
		}
		return ret
	default:
		g.fail(key, v, "a list of strings")
		return def
	}
}

// duration accepts a duration string such as "30s", or a number of seconds.
func (g *getter) duration(key string, def time.Duration) time.Duration {
	switch v := g.c[key].(type) {
	case nil:
		return def
	case int:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			g.fail(key, v, "a duration")
		}
		return d
	default:
		g.fail(key, v, "a duration")
		return def
	}
}
