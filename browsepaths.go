package mdk

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// BrowsePathV2Processor returns AutoBrowsePathV2 as a Processor.
func BrowsePathV2Processor(dropDirs []string) Processor {
	return func(s Stream) Stream {
		return AutoBrowsePathV2(dropDirs, s)
	}
}

// AutoBrowsePathV2 passes s through and then emits a BrowsePathsV2 proposal
// for every entity which did not already carry one. Entities inside the
// container hierarchy get the chain of their ancestors, root first. Others
// which carried a legacy BrowsePaths get its first path split into plain
// folder entries, minus any folder named in dropDirs.
//
// A container hierarchy with a cycle makes the stream fail with
// ErrContainerCycle.
func AutoBrowsePathV2(dropDirs []string, s Stream) Stream {
	b := &browsePathState{
		dropDirs:   make(map[string]struct{}, len(dropDirs)),
		ignore:     make(map[string]struct{}),
		legacy:     make(map[string][]string),
		containers: make(map[string]struct{}),
		parents:    make(map[string]string),
		children:   make(map[string][]string),
	}
	for _, d := range dropDirs {
		b.dropDirs[d] = struct{}{}
	}
	return &passThrough{upstream: s, observe: b.observe, finish: b.finish}
}

type browsePathState struct {
	dropDirs map[string]struct{}

	// ignore holds entities which brought their own BrowsePathsV2.
	ignore map[string]struct{}
	// legacy holds the cleaned first legacy path of each entity.
	legacy     map[string][]string
	containers map[string]struct{}
	parents    map[string]string
	children   map[string][]string
}

func (b *browsePathState) observe(wu *WorkUnit) error {
	urn := wu.URN()
	if EntityType(urn) == ContainerEntityType {
		b.containers[urn] = struct{}{}
	}
	aspects, err := wu.Aspects()
	if err != nil {
		return errors.Wrap(err, "getting aspects for browse paths")
	}
	for _, a := range aspects {
		switch a := a.(type) {
		case *Container:
			b.parents[urn] = a.Container
			b.children[a.Container] = append(b.children[a.Container], urn)
		case *BrowsePaths:
			if len(a.Paths) > 0 {
				b.legacy[urn] = b.cleanPath(a.Paths[0])
			}
		case *BrowsePathsV2:
			b.ignore[urn] = struct{}{}
		}
	}
	return nil
}

func (b *browsePathState) cleanPath(path string) []string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	ret := make([]string, 0, len(segments))
	for _, seg := range segments {
		if _, drop := b.dropDirs[strings.TrimSpace(seg)]; drop {
			continue
		}
		ret = append(ret, seg)
	}
	return ret
}

func (b *browsePathState) finish() (Stream, error) {
	var wus []*WorkUnit
	paths := make(map[string][]string)
	processed := make(map[string]struct{})

	queue := make([]string, 0, len(b.containers))
	for urn := range b.containers {
		if _, hasParent := b.parents[urn]; !hasParent {
			queue = append(queue, urn)
		}
	}
	sort.Strings(queue)
	queued := make(map[string]struct{}, len(b.parents))
	for _, urn := range queue {
		queued[urn] = struct{}{}
	}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if parent, ok := b.parents[node]; ok {
			path := make([]string, 0, len(paths[parent])+1)
			paths[node] = append(append(path, paths[parent]...), parent)
		} else {
			paths[node] = []string{}
		}
		for _, child := range b.children[node] {
			// a later container aspect may have moved the child elsewhere
			if b.parents[child] != node {
				continue
			}
			if _, ok := queued[child]; ok {
				continue
			}
			queued[child] = struct{}{}
			queue = append(queue, child)
		}
		if _, ok := b.ignore[node]; ok {
			continue
		}
		entries := make([]BrowsePathEntry, len(paths[node]))
		for i, p := range paths[node] {
			entries[i] = BrowsePathEntry{ID: p, URN: p}
		}
		wus = append(wus, NewProposal(node, &BrowsePathsV2{Path: entries}).WorkUnit())
		processed[node] = struct{}{}
	}

	if err := b.checkCycles(paths); err != nil {
		return nil, err
	}

	legacy := make([]string, 0, len(b.legacy))
	for urn := range b.legacy {
		if _, ok := processed[urn]; ok {
			continue
		}
		if _, ok := b.ignore[urn]; ok {
			continue
		}
		legacy = append(legacy, urn)
	}
	sort.Strings(legacy)
	for _, urn := range legacy {
		entries := make([]BrowsePathEntry, len(b.legacy[urn]))
		for i, p := range b.legacy[urn] {
			entries[i] = BrowsePathEntry{ID: p}
		}
		wus = append(wus, NewProposal(urn, &BrowsePathsV2{Path: entries}).WorkUnit())
	}
	return SliceStream(wus...), nil
}

// checkCycles follows the parent chain of every child which the traversal
// never reached. Such a chain either ends at a parent which was never seen
// as a container root, which is fine, or loops back on itself.
func (b *browsePathState) checkCycles(reached map[string][]string) error {
	unreached := make([]string, 0)
	for urn := range b.parents {
		if _, ok := reached[urn]; !ok {
			unreached = append(unreached, urn)
		}
	}
	sort.Strings(unreached)
	acyclic := make(map[string]struct{})
	for _, urn := range unreached {
		seen := make(map[string]struct{})
		for node := urn; ; {
			if _, ok := acyclic[node]; ok {
				break
			}
			if _, ok := seen[node]; ok {
				return errors.Wrapf(ErrContainerCycle, "'%s' is its own ancestor", node)
			}
			seen[node] = struct{}{}
			parent, ok := b.parents[node]
			if !ok {
				break
			}
			node = parent
		}
		for node := range seen {
			acyclic[node] = struct{}{}
		}
	}
	return nil
}
