package mdk

import (
	"fmt"

	"github.com/pkg/errors"
)

// DefaultStaleEntityRemovalJob is the job name stale entity removal state is
// committed under.
const DefaultStaleEntityRemovalJob = "stale_entity_removal"

// Defaults for StatefulIngestionConfig.
const (
	DefaultFailSafeThreshold      = 75.0
	DefaultMaxCheckpointStateSize = 16 << 20
)

// StateProviderConfig names a registered StateProvider and its config.
type StateProviderConfig struct {
	Type   string                 `yaml:"type"`
	Config map[string]interface{} `yaml:"config"`
}

// StatefulIngestionConfig controls checkpointing and stale entity removal.
type StatefulIngestionConfig struct {
	Enabled bool `yaml:"enabled"`
	// RemoveStaleMetadata turns emitting soft deletes on or off. The state is
	// still tracked and committed when it is off.
	RemoveStaleMetadata bool `yaml:"remove_stale_metadata"`
	// FailSafeThreshold is the percentage of the previous state which may go
	// stale in one run. Above it nothing is removed and nothing is committed.
	FailSafeThreshold float64 `yaml:"fail_safe_threshold"`
	// IgnoreOldState starts from an empty previous state.
	IgnoreOldState bool `yaml:"ignore_old_state"`
	// IgnoreNewState never commits.
	IgnoreNewState bool `yaml:"ignore_new_state"`
	// MaxCheckpointStateSize is the largest encoded checkpoint, in bytes,
	// which will be committed.
	MaxCheckpointStateSize int                 `yaml:"max_checkpoint_state_size"`
	StateProvider          StateProviderConfig `yaml:"state_provider"`
}

// NewStatefulIngestionConfig returns a disabled config with every other field
// at its default.
func NewStatefulIngestionConfig() StatefulIngestionConfig {
	return StatefulIngestionConfig{
		RemoveStaleMetadata:    true,
		FailSafeThreshold:      DefaultFailSafeThreshold,
		MaxCheckpointStateSize: DefaultMaxCheckpointStateSize,
		StateProvider:          StateProviderConfig{Type: MemoryStateProvider},
	}
}

// Validate checks the config for a pipeline called pipelineName.
func (c StatefulIngestionConfig) Validate(pipelineName string) error {
	if !c.Enabled {
		return nil
	}
	if pipelineName == "" {
		return ErrMissingPipelineName
	}
	if c.FailSafeThreshold < 0 || c.FailSafeThreshold > 100 {
		return errors.Errorf("fail_safe_threshold must be between 0 and 100, got %v", c.FailSafeThreshold)
	}
	if c.MaxCheckpointStateSize <= 0 {
		return errors.Errorf("max_checkpoint_state_size must be positive, got %d", c.MaxCheckpointStateSize)
	}
	return nil
}

// StaleEntityRemovalHandler is the checkpoint backed StaleEntityHandler. It
// loads the previous checkpoint when created, collects this run's state while
// the stream runs, and writes it back on Commit.
type StaleEntityRemovalHandler struct {
	config       StatefulIngestionConfig
	pipelineName string
	jobName      string
	dryRun       bool
	report       *SourceReport
	log          Logger

	provider StateProvider
	last     *Checkpoint
	current  *Checkpoint
	skip     map[string]struct{}
	// blocked is set when the fail-safe tripped, and stops Commit.
	blocked bool
}

// HandlerOption configures a StaleEntityRemovalHandler.
type HandlerOption func(h *StaleEntityRemovalHandler)

// OptHandlerJobName overrides DefaultStaleEntityRemovalJob.
func OptHandlerJobName(name string) HandlerOption {
	return func(h *StaleEntityRemovalHandler) {
		h.jobName = name
	}
}

// OptHandlerDryRun stops Commit from writing anything.
func OptHandlerDryRun(dryRun bool) HandlerOption {
	return func(h *StaleEntityRemovalHandler) {
		h.dryRun = dryRun
	}
}

// OptHandlerReport sets where soft deletes and warnings are reported.
func OptHandlerReport(r *SourceReport) HandlerOption {
	return func(h *StaleEntityRemovalHandler) {
		h.report = r
	}
}

// OptHandlerLogger sets the handler's logger.
func OptHandlerLogger(l Logger) HandlerOption {
	return func(h *StaleEntityRemovalHandler) {
		h.log = l
	}
}

// OptHandlerStateProvider uses p instead of opening the provider the config
// names. The handler still closes it.
func OptHandlerStateProvider(p StateProvider) HandlerOption {
	return func(h *StaleEntityRemovalHandler) {
		h.provider = p
	}
}

// NewStaleEntityRemovalHandler validates config and, if it is enabled, opens
// the state provider and loads the previous checkpoint.
func NewStaleEntityRemovalHandler(config StatefulIngestionConfig, pipelineName string, opts ...HandlerOption) (*StaleEntityRemovalHandler, error) {
	if err := config.Validate(pipelineName); err != nil {
		return nil, errors.Wrap(err, "validating stateful ingestion config")
	}
	h := &StaleEntityRemovalHandler{
		config:       config,
		pipelineName: pipelineName,
		jobName:      DefaultStaleEntityRemovalJob,
		log:          NopLogger{},
		skip:         make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.report == nil {
		h.report = NewSourceReport(nil)
	}
	h.current = NewCheckpoint(pipelineName, h.jobName)
	if !config.Enabled {
		return h, nil
	}
	if h.provider == nil {
		p, err := NewStateProvider(config.StateProvider.Type, config.StateProvider.Config)
		if err != nil {
			return nil, err
		}
		h.provider = p
	}
	if config.IgnoreOldState {
		h.log.Printf("ignoring old state of %s/%s", pipelineName, h.jobName)
		return h, nil
	}
	last, err := h.provider.LatestCheckpoint(pipelineName, h.jobName)
	if err != nil {
		h.provider.Close()
		return nil, errors.Wrap(err, "loading last checkpoint")
	}
	if last != nil {
		h.log.Printf("loaded checkpoint of run %s with %d entities", last.RunID, last.State.Len())
	}
	h.last = last
	return h, nil
}

// Enabled reports whether the handler tracks state at all.
func (h *StaleEntityRemovalHandler) Enabled() bool { return h.config.Enabled }

// RunID returns the id of the checkpoint this run will commit.
func (h *StaleEntityRemovalHandler) RunID() string { return h.current.RunID }

// Processor returns the handler's stage, or nil if the handler is disabled.
func (h *StaleEntityRemovalHandler) Processor(typeFn EntityTypeFunc) Processor {
	if !h.Enabled() {
		return nil
	}
	return StaleEntityRemovalProcessor(h, typeFn)
}

// AddEntityToState implements StaleEntityHandler.
func (h *StaleEntityRemovalHandler) AddEntityToState(entityType, urn string) {
	h.current.State.Add(entityType, urn)
}

// AddURNToSkip implements StaleEntityHandler.
func (h *StaleEntityRemovalHandler) AddURNToSkip(urn string) {
	h.skip[urn] = struct{}{}
}

// RemovedEntityWorkUnits implements StaleEntityHandler. Skipped urns from the
// previous state are carried into the new one rather than removed.
func (h *StaleEntityRemovalHandler) RemovedEntityWorkUnits() (Stream, error) {
	if !h.Enabled() || h.last == nil {
		return SliceStream(), nil
	}
	// StaleURNs is ordered by urn, so a urn recorded under several entity
	// types comes out adjacent and is removed once. A urn seen this run under
	// another type is not stale.
	var removals []string
	for _, s := range h.last.State.StaleURNs(h.current.State) {
		if _, ok := h.skip[s.URN]; ok {
			h.log.Debugf("carrying skipped %s into new state", s.URN)
			h.current.State.Add(s.EntityType, s.URN)
			continue
		}
		if h.current.State.Has(s.URN) {
			continue
		}
		if n := len(removals); n > 0 && removals[n-1] == s.URN {
			continue
		}
		removals = append(removals, s.URN)
	}
	if !h.config.RemoveStaleMetadata || len(removals) == 0 {
		return SliceStream(), nil
	}
	total := h.last.State.DistinctURNs()
	pct := 100 * float64(len(removals)) / float64(total)
	if pct > h.config.FailSafeThreshold {
		h.blocked = true
		msg := fmt.Sprintf("%.1f%% of %d entities would be removed, over the %.1f%% fail-safe threshold; not removing or committing state",
			pct, total, h.config.FailSafeThreshold)
		h.log.Printf("%s", msg)
		h.report.ReportWarning("stale-entity-removal", msg)
		return SliceStream(), nil
	}
	wus := make([]*WorkUnit, len(removals))
	for i, urn := range removals {
		wus[i] = NewProposal(urn, &Status{Removed: true}).WorkUnit()
		h.report.ReportSoftDeleted(urn)
	}
	h.log.Printf("soft deleting %d stale entities", len(wus))
	return SliceStream(wus...), nil
}

// Commit writes this run's state unless the handler is disabled, ignoring new
// state, in dry run mode, tripped its fail-safe, or the state is too large.
// It must only be called after a run completed.
func (h *StaleEntityRemovalHandler) Commit() error {
	switch {
	case !h.Enabled():
		return nil
	case h.config.IgnoreNewState:
		h.log.Printf("ignore_new_state set, not committing checkpoint")
		return nil
	case h.dryRun:
		h.log.Printf("dry run, not committing checkpoint")
		return nil
	case h.blocked:
		h.log.Printf("fail-safe tripped, not committing checkpoint")
		return nil
	}
	data, err := h.current.Encode()
	if err != nil {
		return err
	}
	if len(data) > h.config.MaxCheckpointStateSize {
		msg := fmt.Sprintf("checkpoint of %d bytes exceeds max_checkpoint_state_size %d; not committing",
			len(data), h.config.MaxCheckpointStateSize)
		h.log.Printf("%s", msg)
		h.report.ReportFailure("stale-entity-removal", msg)
		return nil
	}
	if err := h.provider.Commit(h.current); err != nil {
		return errors.Wrap(err, "committing checkpoint")
	}
	h.log.Printf("committed checkpoint of run %s with %d entities", h.current.RunID, h.current.State.Len())
	return nil
}

// Close closes the state provider.
func (h *StaleEntityRemovalHandler) Close() error {
	if h.provider == nil {
		return nil
	}
	return errors.Wrap(h.provider.Close(), "closing state provider")
}
