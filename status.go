package mdk

import (
	"sort"

	"github.com/pkg/errors"
)

// AutoStatusAspect passes s through and then emits a Status{Removed: false}
// proposal, in urn order, for every entity which was seen without a status
// aspect. Entities from non-primary units are never given one.
func AutoStatusAspect(s Stream) Stream {
	all := make(map[string]struct{})
	withStatus := make(map[string]struct{})
	return &passThrough{
		upstream: s,
		observe: func(wu *WorkUnit) error {
			urn := wu.URN()
			all[urn] = struct{}{}
			if !wu.IsPrimarySource {
				withStatus[urn] = struct{}{}
				return nil
			}
			has, err := wu.HasAspect(StatusAspectName)
			if err != nil {
				return errors.Wrap(err, "checking for status aspect")
			}
			if has {
				withStatus[urn] = struct{}{}
			}
			return nil
		},
		finish: func() (Stream, error) {
			urns := make([]string, 0, len(all)-len(withStatus))
			for urn := range all {
				if _, ok := withStatus[urn]; !ok {
					urns = append(urns, urn)
				}
			}
			sort.Strings(urns)
			wus := make([]*WorkUnit, len(urns))
			for i, urn := range urns {
				wus[i] = NewProposal(urn, &Status{Removed: false}).WorkUnit()
			}
			return SliceStream(wus...), nil
		},
	}
}
