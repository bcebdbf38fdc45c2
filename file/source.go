package file

import (
	"io"
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync/atomic"

	"github.com/catalogkit/mdk"
	"github.com/catalogkit/mdk/json"
	"github.com/pkg/errors"
)

// Source is a mdk.Source which reads serialized metadata from json files on
// disk, such as those the file Sink writes.
type Source struct {
	path    string
	pattern string
	src     mdk.Source
}

// SrcOption is a functional option for the file Source.
type SrcOption func(s *Source) error

// OptSrcPath sets the path name for the file or directory to use for source
// data.
func OptSrcPath(pathname string) SrcOption {
	return func(s *Source) error {
		s.path = pathname
		return nil
	}
}

// OptSrcPattern restricts a directory source to the file names matching the
// given filepath.Match pattern.
func OptSrcPattern(pattern string) SrcOption {
	return func(s *Source) error {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return errors.Wrapf(err, "bad pattern '%s'", pattern)
		}
		s.pattern = pattern
		return nil
	}
}

// NewSource gets a new file source which will read json data from a file or
// all files in a directory.
func NewSource(opts ...SrcOption) (*Source, error) {
	s := &Source{}
	for _, opt := range opts {
		err := opt(s)
		if err != nil {
			return nil, err
		}
	}
	rs, err := NewRawSource(s.path, s.pattern)
	if err != nil {
		return nil, errors.Wrap(err, "getting raw source")
	}
	s.src = json.NewSourceFromRawSource(rs)
	return s, nil
}

// Record implements mdk.Source.
func (s *Source) Record() (interface{}, error) {
	return s.src.Record()
}

// RawSource is a mdk.RawSource over a file or the files of a directory, in
// name order.
type RawSource struct {
	files   []string
	fileIdx *uint64
}

// NewRawSource lists pathname. A non-empty pattern filters directory entries
// by name.
func NewRawSource(pathname, pattern string) (*RawSource, error) {
	fileIdx := uint64(0)
	s := &RawSource{
		fileIdx: &fileIdx,
	}
	info, err := os.Stat(pathname)
	if err != nil {
		return nil, errors.Wrap(err, "statting path")
	}
	if info.IsDir() {
		infos, err := ioutil.ReadDir(pathname)
		if err != nil {
			return nil, errors.Wrap(err, "reading directory")
		}
		s.files = make([]string, 0, len(infos))
		for _, info = range infos {
			if info.IsDir() {
				continue
			}
			if pattern != "" {
				if ok, _ := filepath.Match(pattern, info.Name()); !ok {
					continue
				}
			}
			s.files = append(s.files, path.Join(pathname, info.Name()))
		}
		sort.Strings(s.files)
	} else {
		s.files = []string{pathname}
	}
	return s, nil
}

type metaFile struct {
	*os.File
}

func (m *metaFile) Name() string {
	return filepath.Base(m.File.Name())
}

func (m *metaFile) Meta() map[string]interface{} { return nil }

// NextReader implements mdk.RawSource.
func (s *RawSource) NextReader() (mdk.NamedReadCloser, error) {
	idx := atomic.AddUint64(s.fileIdx, 1) - 1
	if int(idx) >= len(s.files) {
		return nil, io.EOF
	}

	file, err := os.Open(s.files[idx])
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", s.files[idx])
	}

	mf := metaFile{file}
	return &mf, nil
}
