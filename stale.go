package mdk

// StaleEntityHandler tracks which entities a run emitted so that the ones a
// previous run emitted but this one did not can be soft deleted.
type StaleEntityHandler interface {
	// AddEntityToState records urn as emitted by this run.
	AddEntityToState(entityType, urn string)
	// AddURNToSkip protects urn from removal without claiming it.
	AddURNToSkip(urn string)
	// RemovedEntityWorkUnits returns the soft delete units for entities
	// which have gone stale. It is called once, after the stream ends.
	RemovedEntityWorkUnits() (Stream, error)
}

// EntityTypeFunc returns the entity type a unit should be recorded under, or
// the empty string if it should not be recorded at all.
type EntityTypeFunc func(wu *WorkUnit) string

// URNEntityType is the default EntityTypeFunc. It takes the type from the
// unit's urn.
func URNEntityType(wu *WorkUnit) string {
	return EntityType(wu.URN())
}

// StaleEntityRemovalProcessor returns AutoStaleEntityRemoval as a Processor.
func StaleEntityRemovalProcessor(h StaleEntityHandler, typeFn EntityTypeFunc) Processor {
	return func(s Stream) Stream {
		return AutoStaleEntityRemoval(h, s, typeFn)
	}
}

// AutoStaleEntityRemoval passes s through, recording every primary unit's
// entity in h and marking the urns of non-primary units to be skipped. Once
// s ends, the handler's removal units follow. A nil typeFn means
// URNEntityType.
func AutoStaleEntityRemoval(h StaleEntityHandler, s Stream, typeFn EntityTypeFunc) Stream {
	if typeFn == nil {
		typeFn = URNEntityType
	}
	return &passThrough{
		upstream: s,
		observe: func(wu *WorkUnit) error {
			urn := wu.URN()
			if !wu.IsPrimarySource {
				h.AddURNToSkip(urn)
				return nil
			}
			if typ := typeFn(wu); typ != "" {
				h.AddEntityToState(typ, urn)
			}
			return nil
		},
		finish: h.RemovedEntityWorkUnits,
	}
}
