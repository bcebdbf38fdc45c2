package mdk

import (
	"github.com/pkg/errors"
)

// ChangeType is the kind of write a proposal asks for.
type ChangeType string

// ChangeTypeUpsert is the only change type the processing stages emit.
const ChangeTypeUpsert ChangeType = "UPSERT"

// Metadata is the payload of a WorkUnit. It is one of *ChangeEvent,
// *ChangeProposalWrapper or *ChangeProposal.
type Metadata interface {
	// URN returns the urn of the entity the payload describes.
	URN() string
	isMetadata()
}

// Snapshot is a full bundle of aspects for one entity.
type Snapshot struct {
	URN     string
	Aspects []Aspect
}

// ChangeEvent carries a snapshot of many aspects for one entity.
type ChangeEvent struct {
	ProposedSnapshot Snapshot
}

// NewChangeEvent returns a ChangeEvent for urn with the given aspects.
func NewChangeEvent(urn string, aspects ...Aspect) *ChangeEvent {
	return &ChangeEvent{ProposedSnapshot: Snapshot{URN: urn, Aspects: aspects}}
}

// URN implements Metadata.
func (e *ChangeEvent) URN() string { return e.ProposedSnapshot.URN }

func (*ChangeEvent) isMetadata() {}

// WorkUnit wraps the event with an id of the form <urn>/mce.
func (e *ChangeEvent) WorkUnit() *WorkUnit {
	return NewWorkUnit(e.URN()+"/mce", e)
}

// ChangeProposalWrapper is a change proposal for a single, typed aspect.
type ChangeProposalWrapper struct {
	EntityType string
	EntityURN  string
	ChangeType ChangeType
	Aspect     Aspect
}

// NewProposal returns an UPSERT proposal of aspect for urn.
func NewProposal(urn string, aspect Aspect) *ChangeProposalWrapper {
	return &ChangeProposalWrapper{
		EntityType: EntityType(urn),
		EntityURN:  urn,
		ChangeType: ChangeTypeUpsert,
		Aspect:     aspect,
	}
}

// URN implements Metadata.
func (w *ChangeProposalWrapper) URN() string { return w.EntityURN }

func (*ChangeProposalWrapper) isMetadata() {}

// AspectName returns the name of the wrapped aspect, or the empty string if
// there is none.
func (w *ChangeProposalWrapper) AspectName() string {
	if w.Aspect == nil {
		return ""
	}
	return w.Aspect.AspectName()
}

// WorkUnit wraps the proposal with an id of the form <urn>-<aspectName>.
func (w *ChangeProposalWrapper) WorkUnit() *WorkUnit {
	return NewWorkUnit(w.EntityURN+"-"+w.AspectName(), w)
}

// GenericAspect is a serialized aspect value.
type GenericAspect struct {
	Value       []byte
	ContentType string
}

// ContentTypeJSON is the content type of JSON serialized aspects.
const ContentTypeJSON = "application/json"

// ChangeProposal is a change proposal whose aspect is still serialized.
type ChangeProposal struct {
	EntityType string
	EntityURN  string
	ChangeType ChangeType
	AspectName string
	Aspect     *GenericAspect
}

// URN implements Metadata.
func (p *ChangeProposal) URN() string { return p.EntityURN }

func (*ChangeProposal) isMetadata() {}

// DecodeAspect deserializes the proposal's aspect. It returns nil if the
// proposal has no aspect or the aspect is not JSON.
func (p *ChangeProposal) DecodeAspect() (Aspect, error) {
	if p.Aspect == nil || p.Aspect.ContentType != ContentTypeJSON {
		return nil, nil
	}
	return DecodeAspect(p.AspectName, p.Aspect.Value)
}

// WorkUnit is the unit of ingestion output: an id, a metadata payload and a
// flag saying whether this run is the authoritative producer of the entity.
type WorkUnit struct {
	ID       string
	Metadata Metadata

	// IsPrimarySource is false for units describing entities which some other
	// ingestion owns, so they must never be considered stale by this one.
	IsPrimarySource bool
}

// NewWorkUnit returns a primary source WorkUnit.
func NewWorkUnit(id string, md Metadata) *WorkUnit {
	return &WorkUnit{ID: id, Metadata: md, IsPrimarySource: true}
}

// URN returns the urn of the entity the unit describes.
func (wu *WorkUnit) URN() string {
	if wu.Metadata == nil {
		return ""
	}
	return wu.Metadata.URN()
}

// Aspects returns every decodable aspect in the unit's payload.
func (wu *WorkUnit) Aspects() ([]Aspect, error) {
	switch md := wu.Metadata.(type) {
	case *ChangeEvent:
		return md.ProposedSnapshot.Aspects, nil
	case *ChangeProposalWrapper:
		if md.Aspect == nil {
			return nil, nil
		}
		return []Aspect{md.Aspect}, nil
	case *ChangeProposal:
		a, err := md.DecodeAspect()
		if err != nil || a == nil {
			return nil, err
		}
		return []Aspect{a}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownMetadata, "work unit '%s' has metadata of type %T", wu.ID, wu.Metadata)
	}
}

// AspectsOfType returns the aspects called name.
func (wu *WorkUnit) AspectsOfType(name string) ([]Aspect, error) {
	aspects, err := wu.Aspects()
	if err != nil {
		return nil, err
	}
	var ret []Aspect
	for _, a := range aspects {
		if a.AspectName() == name {
			ret = append(ret, a)
		}
	}
	return ret, nil
}

// HasAspect reports whether the unit carries an aspect called name. For a
// serialized proposal only the declared aspect name is checked.
func (wu *WorkUnit) HasAspect(name string) (bool, error) {
	switch md := wu.Metadata.(type) {
	case *ChangeEvent:
		for _, a := range md.ProposedSnapshot.Aspects {
			if a.AspectName() == name {
				return true, nil
			}
		}
		return false, nil
	case *ChangeProposalWrapper:
		return md.Aspect != nil && md.AspectName() == name, nil
	case *ChangeProposal:
		return md.AspectName == name, nil
	default:
		return false, errors.Wrapf(ErrUnknownMetadata, "work unit '%s' has metadata of type %T", wu.ID, wu.Metadata)
	}
}

// Proposals explodes the unit's payload into one typed proposal per aspect.
// Aspects of a serialized proposal that cannot be decoded are kept raw.
func (wu *WorkUnit) Proposals() ([]*ChangeProposalWrapper, error) {
	switch md := wu.Metadata.(type) {
	case *ChangeEvent:
		ret := make([]*ChangeProposalWrapper, 0, len(md.ProposedSnapshot.Aspects))
		for _, a := range md.ProposedSnapshot.Aspects {
			ret = append(ret, NewProposal(md.URN(), a))
		}
		return ret, nil
	case *ChangeProposalWrapper:
		return []*ChangeProposalWrapper{md}, nil
	case *ChangeProposal:
		a, err := md.DecodeAspect()
		if err != nil {
			return nil, errors.Wrapf(err, "decoding aspect of '%s'", wu.ID)
		}
		if a == nil && md.Aspect != nil {
			a = &RawAspect{Name: md.AspectName, Value: md.Aspect.Value}
		}
		return []*ChangeProposalWrapper{{
			EntityType: md.EntityType,
			EntityURN:  md.EntityURN,
			ChangeType: md.ChangeType,
			Aspect:     a,
		}}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownMetadata, "work unit '%s' has metadata of type %T", wu.ID, wu.Metadata)
	}
}
