package mdk

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// WalkURNs calls "call" with every urn shaped string found anywhere in md,
// including the subject urn and those inside aspect values. Serialized JSON
// aspect values are decoded and walked as well, and urns nested in a tuple id
// are visited after the urn holding them.
func WalkURNs(md Metadata, call func(urn string) error) error {
	root, err := genericValue(md)
	if err != nil {
		return errors.Wrap(err, "walking metadata")
	}
	return walkValue(root, call)
}

// walkNested visits the urns inside the tuple id of urn, at any depth. A
// string which only looks like a urn has nothing nested.
func walkNested(urn string, call func(urn string) error) error {
	u, err := ParseURN(urn)
	if err != nil || len(u.EntityIDs) < 2 {
		return nil
	}
	for _, id := range u.EntityIDs {
		if err := walkValue(id, call); err != nil {
			return err
		}
	}
	return nil
}

// ListURNs returns every urn WalkURNs would visit. Order is unspecified.
func ListURNs(md Metadata) ([]string, error) {
	var urns []string
	err := WalkURNs(md, func(urn string) error {
		urns = append(urns, urn)
		return nil
	})
	return urns, err
}

// genericValue turns the payload into the plain maps, slices and strings that
// encoding/json produces, with aspect values inlined rather than serialized.
func genericValue(md Metadata) (interface{}, error) {
	switch m := md.(type) {
	case *ChangeEvent:
		aspects := make([]interface{}, 0, len(m.ProposedSnapshot.Aspects))
		for _, a := range m.ProposedSnapshot.Aspects {
			v, err := toGeneric(a)
			if err != nil {
				return nil, err
			}
			aspects = append(aspects, map[string]interface{}{a.AspectName(): v})
		}
		return map[string]interface{}{"urn": m.ProposedSnapshot.URN, "aspects": aspects}, nil
	case *ChangeProposalWrapper:
		ret := map[string]interface{}{"entityUrn": m.EntityURN}
		if m.Aspect != nil {
			v, err := toGeneric(m.Aspect)
			if err != nil {
				return nil, err
			}
			ret["aspect"] = v
		}
		return ret, nil
	case *ChangeProposal:
		ret := map[string]interface{}{"entityUrn": m.EntityURN}
		if m.Aspect != nil && m.Aspect.ContentType == ContentTypeJSON {
			var v interface{}
			if err := json.Unmarshal(m.Aspect.Value, &v); err != nil {
				return nil, errors.Wrapf(err, "decoding %s aspect", m.AspectName)
			}
			ret["aspect"] = v
		}
		return ret, nil
	default:
		return nil, errors.Wrapf(ErrUnknownMetadata, "cannot walk %T", md)
	}
}

func toGeneric(a Aspect) (interface{}, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, errors.Wrapf(err, "marshaling %s aspect", a.AspectName())
	}
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, errors.Wrapf(err, "unmarshaling %s aspect", a.AspectName())
	}
	return v, nil
}

func walkValue(val interface{}, call func(urn string) error) error {
	switch v := val.(type) {
	case map[string]interface{}:
		for _, child := range v {
			if err := walkValue(child, call); err != nil {
				return err
			}
		}
		return nil
	case []interface{}:
		for _, child := range v {
			if err := walkValue(child, call); err != nil {
				return err
			}
		}
		return nil
	case string:
		if !strings.HasPrefix(v, urnPrefix) {
			return nil
		}
		if err := call(v); err != nil {
			return err
		}
		return walkNested(v, call)
	case nil, bool, float64:
		return nil
	}
	panic(fmt.Sprintf("%#v of type %T should be a map, slice or JSON scalar... getting here should be impossible", val, val))
}
