package mdk

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Aspect names.
const (
	StatusAspectName              = "status"
	ContainerAspectName           = "container"
	ContainerPropertiesAspectName = "containerProperties"
	BrowsePathsAspectName         = "browsePaths"
	BrowsePathsV2AspectName       = "browsePathsV2"
	TagKeyAspectName              = "tagKey"
	GlobalTagsAspectName          = "globalTags"
	DatasetPropertiesAspectName   = "datasetProperties"
	SubTypesAspectName            = "subTypes"
	UpstreamLineageAspectName     = "upstreamLineage"
)

// Aspect is one named facet of an entity's metadata.
type Aspect interface {
	AspectName() string
}

// Status marks whether an entity is soft deleted.
type Status struct {
	Removed bool `json:"removed"`
}

// Container points an entity at its parent container.
type Container struct {
	Container string `json:"container"`
}

// ContainerProperties describes a container.
type ContainerProperties struct {
	Name             string            `json:"name"`
	Description      string            `json:"description,omitempty"`
	CustomProperties map[string]string `json:"customProperties,omitempty"`
}

// BrowsePaths is the legacy slash separated browse path aspect.
type BrowsePaths struct {
	Paths []string `json:"paths"`
}

// BrowsePathEntry is a single step of a BrowsePathsV2. URN is set when the
// step is an entity rather than a plain folder name.
type BrowsePathEntry struct {
	ID  string `json:"id"`
	URN string `json:"urn,omitempty"`
}

// BrowsePathsV2 is the structured browse path aspect, root first.
type BrowsePathsV2 struct {
	Path []BrowsePathEntry `json:"path"`
}

// TagKey is the key aspect of a tag entity.
type TagKey struct {
	Name string `json:"name"`
}

// TagAssociation references a tag by urn.
type TagAssociation struct {
	Tag string `json:"tag"`
}

// GlobalTags attaches tags to an entity.
type GlobalTags struct {
	Tags []TagAssociation `json:"tags"`
}

// DatasetProperties describes a dataset.
type DatasetProperties struct {
	Name             string            `json:"name,omitempty"`
	Description      string            `json:"description,omitempty"`
	CustomProperties map[string]string `json:"customProperties,omitempty"`
}

// SubTypes refines an entity's type, e.g. "Project" or "Table".
type SubTypes struct {
	TypeNames []string `json:"typeNames"`
}

// Upstream is one lineage edge.
type Upstream struct {
	Dataset string `json:"dataset"`
	Type    string `json:"type"`
}

// UpstreamLineage lists the datasets an entity was derived from.
type UpstreamLineage struct {
	Upstreams []Upstream `json:"upstreams"`
}

// RawAspect carries an aspect this package has no type for. Its value is kept
// as the JSON it arrived in.
type RawAspect struct {
	Name  string
	Value json.RawMessage
}

func (*Status) AspectName() string              { return StatusAspectName }
func (*Container) AspectName() string           { return ContainerAspectName }
func (*ContainerProperties) AspectName() string { return ContainerPropertiesAspectName }
func (*BrowsePaths) AspectName() string         { return BrowsePathsAspectName }
func (*BrowsePathsV2) AspectName() string       { return BrowsePathsV2AspectName }
func (*TagKey) AspectName() string              { return TagKeyAspectName }
func (*GlobalTags) AspectName() string          { return GlobalTagsAspectName }
func (*DatasetProperties) AspectName() string   { return DatasetPropertiesAspectName }
func (*SubTypes) AspectName() string            { return SubTypesAspectName }
func (*UpstreamLineage) AspectName() string     { return UpstreamLineageAspectName }
func (a *RawAspect) AspectName() string         { return a.Name }

// MarshalJSON writes the aspect value unchanged.
func (a *RawAspect) MarshalJSON() ([]byte, error) {
	if len(a.Value) == 0 {
		return []byte("null"), nil
	}
	return a.Value, nil
}

var aspectTypes = map[string]func() Aspect{
	StatusAspectName:              func() Aspect { return &Status{} },
	ContainerAspectName:           func() Aspect { return &Container{} },
	ContainerPropertiesAspectName: func() Aspect { return &ContainerProperties{} },
	BrowsePathsAspectName:         func() Aspect { return &BrowsePaths{} },
	BrowsePathsV2AspectName:       func() Aspect { return &BrowsePathsV2{} },
	TagKeyAspectName:              func() Aspect { return &TagKey{} },
	GlobalTagsAspectName:          func() Aspect { return &GlobalTags{} },
	DatasetPropertiesAspectName:   func() Aspect { return &DatasetProperties{} },
	SubTypesAspectName:            func() Aspect { return &SubTypes{} },
	UpstreamLineageAspectName:     func() Aspect { return &UpstreamLineage{} },
}

// DecodeAspect decodes the JSON value of the aspect called name. Names with no
// registered type decode to a *RawAspect.
func DecodeAspect(name string, value []byte) (Aspect, error) {
	newAspect, ok := aspectTypes[name]
	if !ok {
		raw := make(json.RawMessage, len(value))
		copy(raw, value)
		return &RawAspect{Name: name, Value: raw}, nil
	}
	a := newAspect()
	if err := json.Unmarshal(value, a); err != nil {
		return nil, errors.Wrapf(err, "decoding %s aspect", name)
	}
	return a, nil
}
