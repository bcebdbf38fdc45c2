package json

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/catalogkit/mdk"
	"github.com/pkg/errors"
)

// Source is a mdk.Source for reading metadata serialized as json. The input
// may be a stream of objects, a json array of objects as the file sink
// writes, or any mix of the two.
type Source struct {
	dec     *json.Decoder
	pending []json.RawMessage
}

// NewSource gets a new json source which will decode from the given reader.
func NewSource(r io.Reader) *Source {
	return &Source{
		dec: json.NewDecoder(r),
	}
}

// Record implements mdk.Source. It returns a *mdk.ChangeEvent or a
// *mdk.ChangeProposalWrapper for each object.
func (s *Source) Record() (interface{}, error) {
	for len(s.pending) == 0 {
		var raw json.RawMessage
		if err := s.dec.Decode(&raw); err != nil {
			return nil, err
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '[' {
			if err := json.Unmarshal(raw, &s.pending); err != nil {
				return nil, errors.Wrap(err, "decoding array")
			}
			continue
		}
		s.pending = append(s.pending, raw)
	}
	raw := s.pending[0]
	s.pending = s.pending[1:]
	rec, err := mdk.DecodeRecord(raw)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

type rawSourceSource struct {
	rs mdk.RawSource

	cur mdk.NamedReadCloser
	s   *Source
}

// NewSourceFromRawSource decodes every reader of rs in turn.
func NewSourceFromRawSource(rs mdk.RawSource) mdk.Source {
	return &rawSourceSource{rs: rs}
}

func (r *rawSourceSource) Record() (rec interface{}, err error) {
	for {
		if r.s == nil {
			reader, err := r.rs.NextReader()
			if err == io.EOF {
				return nil, err
			} else if err != nil {
				return nil, errors.Wrap(err, "getting next reader")
			}
			r.cur, r.s = reader, NewSource(reader)
		}
		rec, err = r.s.Record()
		if err == io.EOF {
			r.cur.Close()
			r.cur, r.s = nil, nil
			continue
		} else if err != nil {
			return nil, errors.Wrapf(err, "decoding %s", r.cur.Name())
		}
		return rec, nil
	}
}
