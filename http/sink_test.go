package http_test

import (
	"context"
	"encoding/json"
	"io/ioutil"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/catalogkit/mdk"
	"github.com/catalogkit/mdk/http"
	"github.com/catalogkit/mdk/test"
)

type fakeGMS struct {
	mu        sync.Mutex
	failFirst int
	calls     int
	headers   []nethttp.Header
	proposals []*mdk.ChangeProposalWrapper
}

func (f *fakeGMS) ServeHTTP(w nethttp.ResponseWriter, r *nethttp.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failFirst {
		nethttp.Error(w, "try again", nethttp.StatusServiceUnavailable)
		return
	}
	if r.URL.Path != "/aspects" || r.URL.Query().Get("action") != "ingestProposal" {
		nethttp.Error(w, "not found", nethttp.StatusNotFound)
		return
	}
	body, _ := ioutil.ReadAll(r.Body)
	var env struct {
		Proposal json.RawMessage `json:"proposal"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		nethttp.Error(w, err.Error(), nethttp.StatusBadRequest)
		return
	}
	p := &mdk.ChangeProposalWrapper{}
	if err := p.UnmarshalJSON(env.Proposal); err != nil {
		nethttp.Error(w, err.Error(), nethttp.StatusBadRequest)
		return
	}
	f.headers = append(f.headers, r.Header)
	f.proposals = append(f.proposals, p)
}

func TestRestSink(t *testing.T) {
	gms := &fakeGMS{}
	srv := httptest.NewServer(gms)
	defer srv.Close()

	urn := mdk.MakeDatasetURN("hive", "db.t", "PROD")
	s := http.NewRestSink(srv.URL, http.OptRestToken("sekrit"))
	ev := mdk.NewChangeEvent(urn, &mdk.DatasetProperties{Name: "t"}, &mdk.Status{})
	test.ErrNil(t, s.Write(context.Background(), ev.WorkUnit()), "Write")
	test.ErrNil(t, s.Close(), "Close")

	test.MustBe(t, 2, s.Posted())
	test.MustBe(t, []*mdk.ChangeProposalWrapper{
		mdk.NewProposal(urn, &mdk.DatasetProperties{Name: "t"}),
		mdk.NewProposal(urn, &mdk.Status{}),
	}, gms.proposals)
	test.MustBe(t, "Bearer sekrit", gms.headers[0].Get("Authorization"))
	test.MustBe(t, "2.0.0", gms.headers[0].Get("X-RestLi-Protocol-Version"))
}

func TestRestSinkRetries(t *testing.T) {
	gms := &fakeGMS{failFirst: 2}
	srv := httptest.NewServer(gms)
	defer srv.Close()

	wu := mdk.NewProposal(mdk.MakeTagURN("pii"), &mdk.TagKey{Name: "pii"}).WorkUnit()
	s := http.NewRestSink(srv.URL, http.OptRestRetries(2, time.Millisecond))
	test.ErrNil(t, s.Write(context.Background(), wu), "Write")
	test.MustBe(t, 3, gms.calls)

	gms.calls = 0
	s = http.NewRestSink(srv.URL, http.OptRestRetries(1, time.Millisecond))
	err := s.Write(context.Background(), wu)
	if err == nil || !strings.Contains(err.Error(), "503") || !strings.Contains(err.Error(), "try again") {
		t.Fatalf("expected the last status and body once retries ran out, got %v", err)
	}
	test.MustBe(t, 2, gms.calls)
	test.MustBe(t, 0, s.Posted())
}

func TestRestSinkClientErrorNotRetried(t *testing.T) {
	gms := &fakeGMS{}
	srv := httptest.NewServer(gms)
	defer srv.Close()

	wu := mdk.NewProposal(mdk.MakeTagURN("pii"), &mdk.TagKey{Name: "pii"}).WorkUnit()
	s := http.NewRestSink(srv.URL+"/elsewhere", http.OptRestRetries(3, time.Millisecond))
	err := s.Write(context.Background(), wu)
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected a 404, got %v", err)
	}
	test.MustBe(t, 1, gms.calls)
}

func TestRestSinkCanceled(t *testing.T) {
	gms := &fakeGMS{failFirst: 100}
	srv := httptest.NewServer(gms)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	wu := mdk.NewProposal(mdk.MakeTagURN("pii"), &mdk.TagKey{Name: "pii"}).WorkUnit()
	s := http.NewRestSink(srv.URL, http.OptRestRetries(5, time.Hour))
	if err := s.Write(ctx, wu); err == nil {
		t.Fatal("expected an error from a canceled context")
	}
}
