package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/catalogkit/mdk"
	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
)

// IngestProposalPath is where the metadata service accepts proposals.
const IngestProposalPath = "/aspects?action=ingestProposal"

// RestSink posts every work unit, exploded into change proposals, to a
// metadata service.
type RestSink struct {
	server  string
	token   string
	client  *retryablehttp.Client
	headers map[string]string
	log     mdk.Logger

	posted int
}

// RestSinkOption configures a RestSink.
type RestSinkOption func(s *RestSink)

// OptRestToken sends token as a bearer token.
func OptRestToken(token string) RestSinkOption {
	return func(s *RestSink) {
		s.token = token
	}
}

// OptRestTimeout sets the timeout of each request.
func OptRestTimeout(d time.Duration) RestSinkOption {
	return func(s *RestSink) {
		s.client.HTTPClient.Timeout = d
	}
}

// OptRestHeader adds a header to every request.
func OptRestHeader(key, value string) RestSinkOption {
	return func(s *RestSink) {
		s.headers[key] = value
	}
}

// OptRestRetries retries requests that failed with a server error or never
// got a response up to n times, sleeping backoff, doubled each time, in
// between.
func OptRestRetries(n int, backoff time.Duration) RestSinkOption {
	return func(s *RestSink) {
		s.client.RetryMax = n
		s.client.RetryWaitMin = backoff
		s.client.RetryWaitMax = backoff << uint(n)
	}
}

// OptRestLogger sets the sink's logger.
func OptRestLogger(l mdk.Logger) RestSinkOption {
	return func(s *RestSink) {
		s.log = l
	}
}

// NewRestSink returns a sink posting to server, e.g. http://localhost:8080.
func NewRestSink(server string, opts ...RestSinkOption) *RestSink {
	if !strings.HasPrefix(server, "http://") && !strings.HasPrefix(server, "https://") {
		server = "http://" + server
	}
	client := retryablehttp.NewClient()
	client.HTTPClient.Timeout = 30 * time.Second
	client.RetryMax = 0
	client.RetryWaitMin = time.Second
	client.CheckRetry = retryServerErrors
	// hand back the last response so its status and body end up in the error
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	s := &RestSink{
		server:  strings.TrimSuffix(server, "/"),
		client:  client,
		headers: map[string]string{"X-RestLi-Protocol-Version": "2.0.0"},
		log:     mdk.NopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	client.Logger = leveledLogger{s.log}
	return s
}

// retryServerErrors retries transport errors and 5xx responses until ctx is
// done.
func retryServerErrors(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	return resp.StatusCode >= 500, nil
}

// leveledLogger sends the retry client's request logs to Debugf and its
// warnings and errors to Printf.
type leveledLogger struct {
	log mdk.Logger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.log.Printf("%s %v", msg, kv) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.log.Printf("%s %v", msg, kv) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.log.Debugf("%s %v", msg, kv) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.log.Debugf("%s %v", msg, kv) }

// Write implements mdk.Sink.
func (s *RestSink) Write(ctx context.Context, wu *mdk.WorkUnit) error {
	props, err := wu.Proposals()
	if err != nil {
		return err
	}
	for _, p := range props {
		mcp, err := p.MarshalJSON()
		if err != nil {
			return errors.Wrapf(err, "encoding proposal of '%s'", wu.ID)
		}
		body, err := json.Marshal(map[string]json.RawMessage{"proposal": mcp})
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		if err := s.post(ctx, body); err != nil {
			return errors.Wrapf(err, "posting %s of '%s'", p.AspectName(), p.EntityURN)
		}
		s.posted++
	}
	return nil
}

func (s *RestSink) post(ctx context.Context, body []byte) error {
	req, err := retryablehttp.NewRequest(http.MethodPost, s.server+IngestProposalPath, body)
	if err != nil {
		return errors.Wrap(err, "creating request")
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	if s.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.token))
	}
	resp, err := s.client.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return errors.Wrap(err, "doing request")
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	respBody, _ := ioutil.ReadAll(resp.Body)
	return errors.Errorf("unexpected status: %v, body: %s", resp.StatusCode, respBody)
}

// Posted returns the number of proposals accepted by the server.
func (s *RestSink) Posted() int { return s.posted }

// Close does nothing.
func (s *RestSink) Close() error { return nil }
