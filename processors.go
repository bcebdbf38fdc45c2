package mdk

// ProcessorConfig selects the stages DefaultProcessors returns.
type ProcessorConfig struct {
	// BrowsePathsV2 enables AutoBrowsePathV2 with DropDirs.
	BrowsePathsV2 bool
	DropDirs      []string

	// StaleEntities enables AutoStaleEntityRemoval if non-nil.
	StaleEntities StaleEntityHandler
	EntityType    EntityTypeFunc

	// Reporter enables AutoWorkUnitReporter if non-nil.
	Reporter Reporter
}

// DefaultProcessors returns the usual chain: status, referenced tags, browse
// paths, stale entity removal and finally the reporter, so that the report
// counts synthesized units too. Disabled stages are nil.
func DefaultProcessors(c ProcessorConfig) []Processor {
	procs := []Processor{
		AutoStatusAspect,
		AutoMaterializeReferencedTags,
		nil,
		nil,
		nil,
	}
	if c.BrowsePathsV2 {
		procs[2] = BrowsePathV2Processor(c.DropDirs)
	}
	if c.StaleEntities != nil {
		procs[3] = StaleEntityRemovalProcessor(c.StaleEntities, c.EntityType)
	}
	if c.Reporter != nil {
		procs[4] = ReporterProcessor(c.Reporter)
	}
	return procs
}
