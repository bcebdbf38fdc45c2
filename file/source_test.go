package file

import (
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/catalogkit/mdk"
)

func mustTempDir(t *testing.T, prefix string) string {
	t.Helper()
	d, err := ioutil.TempDir("", prefix)
	if err != nil {
		t.Fatal("getting temp dir")
	}
	return d
}

func mustFile(t *testing.T, dir, contents string) (name string) {
	t.Helper()
	f, err := ioutil.TempFile(dir, "")
	if err != nil {
		t.Fatalf("getting temp file: %v", err)
	}

	_, err = io.WriteString(f, contents)
	if err != nil {
		t.Fatalf("writing contents: %v", err)
	}

	return f.Name()
}

func TestRawSource(t *testing.T) {
	d := mustTempDir(t, "testrawsource")
	defer func() {
		os.RemoveAll(d)
	}()

	names := make([]string, 0, 2)
	names = append(names, filepath.Base(mustFile(t, d, `blah blah blah`)))
	names = append(names, filepath.Base(mustFile(t, d, `hahahahahahahaha`)))

	rs, err := NewRawSource(d, "")
	if err != nil {
		t.Fatalf("getting raw source: %v", err)
	}

	gotNames := make([]string, 0, 2)
	var reader mdk.NamedReadCloser
	for reader, err = rs.NextReader(); err == nil; reader, err = rs.NextReader() {
		gotNames = append(gotNames, reader.Name())
		buf, err := ioutil.ReadAll(reader)
		if err != nil {
			t.Fatalf("reading file: %v", err)
		}
		t.Logf("%s\n", buf)
	}
	if !reflect.DeepEqual(gotNames, names) {
		names[0], names[1] = names[1], names[0]
		if !reflect.DeepEqual(gotNames, names) {
			t.Fatalf("different file names: %v", gotNames)
		}
	}
	if err != io.EOF {
		t.Fatalf("unexpected NextReader error: %v", err)
	}

}

func TestSource(t *testing.T) {
	d := mustTempDir(t, "testsource")
	defer func() {
		os.RemoveAll(d)
	}()

	mustFile(t, d, `
{"proposedSnapshot": {"urn": "urn:li:container:one", "aspects": [{"status": {"removed": false}}]}}
{"entityType": "container", "entityUrn": "urn:li:container:two", "changeType": "UPSERT",
 "aspectName": "container", "aspect": {"value": "{\"container\": \"urn:li:container:one\"}", "contentType": "application/json"}}
`)
	mustFile(t, d, `[{"proposedSnapshot": {"urn": "urn:li:container:three", "aspects": []}}]`)

	s, err := NewSource(OptSrcPath(d))
	if err != nil {
		t.Fatalf("getting source: %v", err)
	}

	urns := make(map[string]struct{})
	var rec interface{}
	for rec, err = s.Record(); err == nil; rec, err = s.Record() {
		md, ok := rec.(mdk.Metadata)
		if !ok {
			t.Fatalf("expected metadata but got %T", rec)
		}
		urns[md.URN()] = struct{}{}
	}
	if err != io.EOF {
		t.Fatalf("unexpected Record error: %v", err)
	}
	if len(urns) != 3 {
		t.Fatalf("wrong urns: %v", urns)
	}
}

func TestSourcePattern(t *testing.T) {
	d := mustTempDir(t, "testsourcepattern")
	defer func() {
		os.RemoveAll(d)
	}()
	json := `{"proposedSnapshot": {"urn": "urn:li:container:one", "aspects": []}}`
	if err := ioutil.WriteFile(filepath.Join(d, "a.json"), []byte(json), 0644); err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(filepath.Join(d, "README"), []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}
	s, err := NewSource(OptSrcPath(d), OptSrcPattern("*.json"))
	if err != nil {
		t.Fatalf("getting source: %v", err)
	}
	if _, err := s.Record(); err != nil {
		t.Fatalf("reading record: %v", err)
	}
	if _, err := s.Record(); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}

	if _, err := NewSource(OptSrcPattern("[")); err == nil {
		t.Fatal("expected bad pattern error")
	}
}
