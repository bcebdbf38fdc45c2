package mdk

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// The JSON forms below are the ones the file sink, the REST emitter and the
// Kafka JSON topics use: snapshots nest each aspect under its name, and
// proposals carry the aspect as a serialized string.

type snapshotJSON struct {
	URN     string                       `json:"urn"`
	Aspects []map[string]json.RawMessage `json:"aspects"`
}

type changeEventJSON struct {
	ProposedSnapshot snapshotJSON `json:"proposedSnapshot"`
}

type genericAspectJSON struct {
	Value       string `json:"value"`
	ContentType string `json:"contentType"`
}

type proposalJSON struct {
	EntityType string             `json:"entityType"`
	EntityURN  string             `json:"entityUrn"`
	ChangeType ChangeType         `json:"changeType"`
	AspectName string             `json:"aspectName,omitempty"`
	Aspect     *genericAspectJSON `json:"aspect,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (e *ChangeEvent) MarshalJSON() ([]byte, error) {
	snap := snapshotJSON{URN: e.ProposedSnapshot.URN, Aspects: make([]map[string]json.RawMessage, 0, len(e.ProposedSnapshot.Aspects))}
	for _, a := range e.ProposedSnapshot.Aspects {
		val, err := json.Marshal(a)
		if err != nil {
			return nil, errors.Wrapf(err, "marshaling %s aspect", a.AspectName())
		}
		snap.Aspects = append(snap.Aspects, map[string]json.RawMessage{a.AspectName(): val})
	}
	return json.Marshal(changeEventJSON{ProposedSnapshot: snap})
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *ChangeEvent) UnmarshalJSON(data []byte) error {
	var ev changeEventJSON
	if err := json.Unmarshal(data, &ev); err != nil {
		return errors.Wrap(err, "decoding change event")
	}
	if ev.ProposedSnapshot.URN == "" {
		return errors.New("change event has no snapshot urn")
	}
	e.ProposedSnapshot = Snapshot{URN: ev.ProposedSnapshot.URN}
	for _, m := range ev.ProposedSnapshot.Aspects {
		if len(m) != 1 {
			return errors.Errorf("snapshot aspect of '%s' must have exactly one key, got %d", ev.ProposedSnapshot.URN, len(m))
		}
		for name, val := range m {
			a, err := DecodeAspect(name, val)
			if err != nil {
				return errors.Wrapf(err, "decoding snapshot of '%s'", ev.ProposedSnapshot.URN)
			}
			e.ProposedSnapshot.Aspects = append(e.ProposedSnapshot.Aspects, a)
		}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (w *ChangeProposalWrapper) MarshalJSON() ([]byte, error) {
	p := proposalJSON{EntityType: w.EntityType, EntityURN: w.EntityURN, ChangeType: w.ChangeType, AspectName: w.AspectName()}
	if w.Aspect != nil {
		val, err := json.Marshal(w.Aspect)
		if err != nil {
			return nil, errors.Wrapf(err, "marshaling %s aspect", w.AspectName())
		}
		p.Aspect = &genericAspectJSON{Value: string(val), ContentType: ContentTypeJSON}
	}
	return json.Marshal(p)
}

// UnmarshalJSON implements json.Unmarshaler.
func (w *ChangeProposalWrapper) UnmarshalJSON(data []byte) error {
	var p ChangeProposal
	if err := p.UnmarshalJSON(data); err != nil {
		return err
	}
	a, err := p.DecodeAspect()
	if err != nil {
		return errors.Wrapf(err, "decoding proposal for '%s'", p.EntityURN)
	}
	*w = ChangeProposalWrapper{EntityType: p.EntityType, EntityURN: p.EntityURN, ChangeType: p.ChangeType, Aspect: a}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p *ChangeProposal) MarshalJSON() ([]byte, error) {
	pj := proposalJSON{EntityType: p.EntityType, EntityURN: p.EntityURN, ChangeType: p.ChangeType, AspectName: p.AspectName}
	if p.Aspect != nil {
		pj.Aspect = &genericAspectJSON{Value: string(p.Aspect.Value), ContentType: p.Aspect.ContentType}
	}
	return json.Marshal(pj)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *ChangeProposal) UnmarshalJSON(data []byte) error {
	var pj proposalJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return errors.Wrap(err, "decoding change proposal")
	}
	if pj.EntityURN == "" {
		return errors.New("change proposal has no entity urn")
	}
	if pj.EntityType == "" {
		pj.EntityType = EntityType(pj.EntityURN)
	}
	if pj.ChangeType == "" {
		pj.ChangeType = ChangeTypeUpsert
	}
	*p = ChangeProposal{EntityType: pj.EntityType, EntityURN: pj.EntityURN, ChangeType: pj.ChangeType, AspectName: pj.AspectName}
	if pj.Aspect != nil {
		p.Aspect = &GenericAspect{Value: []byte(pj.Aspect.Value), ContentType: pj.Aspect.ContentType}
	}
	return nil
}

// DecodeRecord decodes one JSON object into the record shape a Source hands
// to AutoWorkUnit: a *ChangeEvent if it has a proposedSnapshot, otherwise a
// *ChangeProposalWrapper.
func DecodeRecord(data []byte) (interface{}, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, errors.Wrap(err, "decoding record")
	}
	if _, ok := probe["proposedSnapshot"]; ok {
		ev := &ChangeEvent{}
		return ev, ev.UnmarshalJSON(data)
	}
	if _, ok := probe["entityUrn"]; ok {
		w := &ChangeProposalWrapper{}
		return w, w.UnmarshalJSON(data)
	}
	return nil, errors.Wrapf(ErrUnknownMetadata, "record is neither a change event nor a proposal: %s", truncate(data, 64))
}

// MarshalMetadata encodes a work unit's payload.
func MarshalMetadata(md Metadata) ([]byte, error) {
	switch md.(type) {
	case *ChangeEvent, *ChangeProposalWrapper, *ChangeProposal:
		return json.Marshal(md)
	default:
		return nil, errors.Wrapf(ErrUnknownMetadata, "cannot marshal %T", md)
	}
}

func truncate(data []byte, n int) []byte {
	data = bytes.TrimSpace(data)
	if len(data) > n {
		return data[:n]
	}
	return data
}
