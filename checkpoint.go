package mdk

import (
	"crypto/rand"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
)

// CheckpointState is the set of entity urns a run emitted, grouped by entity
// type.
type CheckpointState struct {
	urns map[string]map[string]struct{}
}

// NewCheckpointState returns an empty state.
func NewCheckpointState() *CheckpointState {
	return &CheckpointState{urns: make(map[string]map[string]struct{})}
}

// Add records urn under entityType.
func (s *CheckpointState) Add(entityType, urn string) {
	set, ok := s.urns[entityType]
	if !ok {
		set = make(map[string]struct{})
		s.urns[entityType] = set
	}
	set[urn] = struct{}{}
}

// Has reports whether urn is recorded under any entity type.
func (s *CheckpointState) Has(urn string) bool {
	for _, set := range s.urns {
		if _, ok := set[urn]; ok {
			return true
		}
	}
	return false
}

// EntityTypes returns the recorded entity types in order.
func (s *CheckpointState) EntityTypes() []string {
	types := make([]string, 0, len(s.urns))
	for typ := range s.urns {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

// URNs returns the urns recorded under entityType in order.
func (s *CheckpointState) URNs(entityType string) []string {
	urns := make([]string, 0, len(s.urns[entityType]))
	for urn := range s.urns[entityType] {
		urns = append(urns, urn)
	}
	sort.Strings(urns)
	return urns
}

// Len returns the number of recorded urns.
func (s *CheckpointState) Len() int {
	n := 0
	for _, set := range s.urns {
		n += len(set)
	}
	return n
}

// DistinctURNs returns the number of different urns recorded, counting a urn
// held under several entity types once.
func (s *CheckpointState) DistinctURNs() int {
	seen := make(map[string]struct{})
	for _, set := range s.urns {
		for urn := range set {
			seen[urn] = struct{}{}
		}
	}
	return len(seen)
}

// StaleURN is an entity recorded in an old state but missing from a new one.
type StaleURN struct {
	EntityType string
	URN        string
}

// StaleURNs returns the urns in s which current does not have, ordered by
// urn.
func (s *CheckpointState) StaleURNs(current *CheckpointState) []StaleURN {
	var stale []StaleURN
	for typ, set := range s.urns {
		for urn := range set {
			if _, ok := current.urns[typ][urn]; !ok {
				stale = append(stale, StaleURN{EntityType: typ, URN: urn})
			}
		}
	}
	sort.Slice(stale, func(i, j int) bool {
		if stale[i].URN == stale[j].URN {
			return stale[i].EntityType < stale[j].EntityType
		}
		return stale[i].URN < stale[j].URN
	})
	return stale
}

// PercentChanged returns what percentage of s is not in current.
func (s *CheckpointState) PercentChanged(current *CheckpointState) float64 {
	n := s.Len()
	if n == 0 {
		return 0
	}
	return 100 * float64(len(s.StaleURNs(current))) / float64(n)
}

// MarshalJSON writes the state as {"urns": {"<type>": [sorted urns]}}.
func (s *CheckpointState) MarshalJSON() ([]byte, error) {
	out := make(map[string][]string, len(s.urns))
	for typ := range s.urns {
		out[typ] = s.URNs(typ)
	}
	return json.Marshal(struct {
		URNs map[string][]string `json:"urns"`
	}{out})
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *CheckpointState) UnmarshalJSON(data []byte) error {
	var in struct {
		URNs map[string][]string `json:"urns"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return errors.Wrap(err, "decoding checkpoint state")
	}
	s.urns = make(map[string]map[string]struct{}, len(in.URNs))
	for typ, urns := range in.URNs {
		for _, urn := range urns {
			s.Add(typ, urn)
		}
	}
	return nil
}

// Checkpoint is the committed state of one job of one pipeline.
type Checkpoint struct {
	PipelineName string           `json:"pipelineName"`
	JobName      string           `json:"jobName"`
	RunID        string           `json:"runId"`
	Timestamp    time.Time        `json:"timestamp"`
	State        *CheckpointState `json:"state"`
}

// NewCheckpoint returns a checkpoint with an empty state, a fresh run id and
// the current time.
func NewCheckpoint(pipelineName, jobName string) *Checkpoint {
	return &Checkpoint{
		PipelineName: pipelineName,
		JobName:      jobName,
		RunID:        NewRunID(),
		Timestamp:    time.Now().UTC(),
		State:        NewCheckpointState(),
	}
}

// Encode serializes the checkpoint.
func (c *Checkpoint) Encode() ([]byte, error) {
	data, err := json.Marshal(c)
	return data, errors.Wrap(err, "encoding checkpoint")
}

// DecodeCheckpoint is the inverse of Encode.
func DecodeCheckpoint(data []byte) (*Checkpoint, error) {
	c := &Checkpoint{}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, errors.Wrap(err, "decoding checkpoint")
	}
	if c.State == nil {
		c.State = NewCheckpointState()
	}
	return c, nil
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewRunID returns a lexically sortable, unique run id.
func NewRunID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Now(), entropy).String()
}
