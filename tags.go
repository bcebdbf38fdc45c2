package mdk

import (
	"sort"

	"github.com/pkg/errors"
)

// AutoMaterializeReferencedTags passes s through and then emits a TagKey
// proposal, in urn order, for every tag urn referenced anywhere in a payload
// which no unit had as its subject.
func AutoMaterializeReferencedTags(s Stream) Stream {
	referenced := make(map[string]struct{})
	present := make(map[string]struct{})
	return &passThrough{
		upstream: s,
		observe: func(wu *WorkUnit) error {
			err := WalkURNs(wu.Metadata, func(urn string) error {
				if EntityType(urn) == TagEntityType {
					referenced[urn] = struct{}{}
				}
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "scanning '%s' for tags", wu.ID)
			}
			if urn := wu.URN(); EntityType(urn) == TagEntityType {
				present[urn] = struct{}{}
			}
			return nil
		},
		finish: func() (Stream, error) {
			urns := make([]string, 0, len(referenced))
			for urn := range referenced {
				if _, ok := present[urn]; !ok {
					urns = append(urns, urn)
				}
			}
			sort.Strings(urns)
			wus := make([]*WorkUnit, 0, len(urns))
			for _, urn := range urns {
				name, err := TagName(urn)
				if err != nil {
					return nil, errors.Wrap(err, "materializing tag")
				}
				wus = append(wus, NewProposal(urn, &TagKey{Name: name}).WorkUnit())
			}
			return SliceStream(wus...), nil
		},
	}
}
