package ingest

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/catalogkit/mdk"
	"github.com/catalogkit/mdk/aws/s3"
	"github.com/catalogkit/mdk/fake"
	"github.com/catalogkit/mdk/file"
	"github.com/catalogkit/mdk/http"
	"github.com/catalogkit/mdk/json"
	"github.com/catalogkit/mdk/kafka"
	"github.com/pkg/errors"
)

// source is a built source plus whatever must be closed to stop it. Closing
// must make a blocked Record return.
type source struct {
	mdk.Source
	closer io.Closer
}

type sourceBuilder func(g *getter, log mdk.Logger) (source, error)

type sinkBuilder func(g *getter, m *Main) (mdk.Sink, error)

var sourceBuilders = map[string]sourceBuilder{
	"file":  fileSource,
	"kafka": kafkaSource,
	"s3":    s3Source,
	"http":  httpSource,
	"fake":  fakeSource,
}

var sinkBuilders = map[string]sinkBuilder{
	"file":         fileSink,
	"kafka":        kafkaSink,
	"datahub-rest": restSink,
	"rest":         restSink,
	"console":      consoleSink,
}

// SourceTypes returns the source types a recipe may name.
func SourceTypes() []string {
	ret := make([]string, 0, len(sourceBuilders))
	for typ := range sourceBuilders {
		ret = append(ret, typ)
	}
	sort.Strings(ret)
	return ret
}

// SinkTypes returns the sink types a recipe may name.
func SinkTypes() []string {
	ret := make([]string, 0, len(sinkBuilders))
	for typ := range sinkBuilders {
		ret = append(ret, typ)
	}
	sort.Strings(ret)
	return ret
}

func buildSource(c PluginConfig, log mdk.Logger) (source, error) {
	b, ok := sourceBuilders[c.Type]
	if !ok {
		return source{}, errors.Errorf("unknown source type '%s' (known: %v)", c.Type, SourceTypes())
	}
	g := &getter{c: c.Config}
	src, err := b(g, log)
	if err == nil {
		err = g.err
	}
	return src, errors.Wrapf(err, "building %s source", c.Type)
}

func buildSink(c PluginConfig, m *Main) (mdk.Sink, error) {
	b, ok := sinkBuilders[c.Type]
	if !ok {
		return nil, errors.Errorf("unknown sink type '%s' (known: %v)", c.Type, SinkTypes())
	}
	g := &getter{c: c.Config}
	sink, err := b(g, m)
	if err == nil && g.err != nil {
		err = g.err
		if sink != nil {
			sink.Close()
		}
	}
	return sink, errors.Wrapf(err, "building %s sink", c.Type)
}

func fileSource(g *getter, log mdk.Logger) (source, error) {
	path := g.str("path", "")
	pattern := g.str("pattern", "")
	if g.err != nil {
		return source{}, g.err
	}
	opts := []file.SrcOption{file.OptSrcPath(path)}
	if pattern != "" {
		opts = append(opts, file.OptSrcPattern(pattern))
	}
	src, err := file.NewSource(opts...)
	return source{Source: src}, err
}

func kafkaSource(g *getter, log mdk.Logger) (source, error) {
	src := kafka.NewSource()
	src.Hosts = g.strings("hosts", src.Hosts)
	src.Topics = g.strings("topics", src.Topics)
	src.Group = g.str("group", src.Group)
	src.Encoding = g.str("encoding", src.Encoding)
	src.RegistryURL = g.str("registry_url", src.RegistryURL)
	src.MaxMsgs = g.integer("max_messages", 0)
	src.IdleTimeout = g.duration("idle_timeout", 30*time.Second)
	src.TLS = kafkaTLS(g)
	src.Log = log
	if g.err != nil {
		return source{}, g.err
	}
	if err := src.Open(); err != nil {
		return source{}, errors.Wrap(err, "opening kafka source")
	}
	return source{Source: src, closer: src}, nil
}

func kafkaTLS(g *getter) kafka.TLSConfig {
	return kafka.TLSConfig{
		CertificatePath:    g.str("tls_certificate", ""),
		CertificateKeyPath: g.str("tls_key", ""),
		CACertPath:         g.str("tls_ca_certificate", ""),
		SkipVerify:         g.boolean("tls_skip_verify", false),
	}
}

func s3Source(g *getter, log mdk.Logger) (source, error) {
	opts := []s3.SrcOption{
		s3.OptSrcBucket(g.str("bucket", "")),
		s3.OptSrcPrefix(g.str("prefix", "")),
		s3.OptSrcSuffix(g.str("suffix", "")),
		s3.OptSrcRegion(g.str("region", "us-east-1")),
	}
	if endpoint := g.str("endpoint", ""); endpoint != "" {
		opts = append(opts, s3.OptSrcEndpoint(endpoint))
	}
	if g.err != nil {
		return source{}, g.err
	}
	src, err := s3.NewSource(opts...)
	return source{Source: src}, err
}

func httpSource(g *getter, log mdk.Logger) (source, error) {
	addr := g.str("bind", ":12121")
	buf := g.integer("buffer", 100)
	if g.err != nil {
		return source{}, g.err
	}
	src, err := http.NewJSONSource(http.WithAddr(addr), http.WithBuffer(buf), http.WithLogger(log))
	if err != nil {
		return source{}, errors.Wrap(err, "starting json listener")
	}
	log.Printf("listening for metadata on %s", src.Addr())
	return source{Source: src, closer: src}, nil
}

func fakeSource(g *getter, log mdk.Logger) (source, error) {
	src := fake.NewSource(
		fake.OptPlatform(g.str("platform", "bigquery")),
		fake.OptEnv(g.str("env", "PROD")),
		fake.OptShape(g.integer("projects", 2), g.integer("datasets", 2), g.integer("tables", 3)),
		fake.OptSeed(int64(g.integer("seed", 0))),
		fake.OptSkipTables(g.float("skip_tables", 0)),
		fake.OptLineage(g.boolean("lineage", false)),
	)
	return source{Source: src}, g.err
}

func fileSink(g *getter, m *Main) (mdk.Sink, error) {
	filename := g.str("filename", "")
	lines := g.boolean("lines", false)
	if g.err != nil {
		return nil, g.err
	}
	if filename == "" {
		return nil, errors.New("file sink needs a filename")
	}
	var opts []file.SinkOption
	if lines {
		opts = append(opts, file.OptSinkLines())
	}
	return file.NewSink(filename, opts...)
}

func kafkaSink(g *getter, m *Main) (mdk.Sink, error) {
	hosts := g.strings("hosts", []string{"localhost:9092"})
	opts := []kafka.SinkOption{
		kafka.OptSinkTopics(g.str("proposal_topic", kafka.DefaultProposalTopic), g.str("event_topic", kafka.DefaultEventTopic)),
		kafka.OptSinkEncoding(g.str("encoding", kafka.EncodingJSON)),
		kafka.OptSinkSchemaID(g.integer("schema_id", 1)),
	}
	if tlsConf := kafkaTLS(g); tlsConf.Enabled() {
		opts = append(opts, kafka.OptSinkTLS(&tlsConf))
	}
	if g.err != nil {
		return nil, g.err
	}
	return kafka.NewSink(hosts, opts...)
}

func restSink(g *getter, m *Main) (mdk.Sink, error) {
	server := g.str("server", "http://localhost:8080")
	opts := []http.RestSinkOption{
		http.OptRestTimeout(g.duration("timeout", 30*time.Second)),
		http.OptRestRetries(g.integer("retries", 2), g.duration("retry_backoff", time.Second)),
		http.OptRestLogger(m.log),
	}
	if token := g.str("token", ""); token != "" {
		opts = append(opts, http.OptRestToken(token))
	}
	return http.NewRestSink(server, opts...), nil
}

// writerSink writes work unit payloads to an io.Writer, one per line.
type writerSink struct {
	w *json.Writer
}

func consoleSink(g *getter, m *Main) (mdk.Sink, error) {
	return &writerSink{w: json.NewLineWriter(m.Stdout)}, nil
}

func (s *writerSink) Write(ctx context.Context, wu *mdk.WorkUnit) error { return s.w.Write(wu) }

func (s *writerSink) Close() error { return s.w.Close() }
