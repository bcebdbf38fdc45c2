package mdk_test

import (
	"sort"

	"github.com/catalogkit/mdk"
)

// tree describes a container hierarchy. Values are either a nested tree or a
// []string of leaf container names.
type tree map[string]interface{}

// containerWorkUnits yields, for each container in t, a status proposal and a
// container proposal for each of its children, parents before children.
func containerWorkUnits(t tree) []*mdk.WorkUnit {
	var wus []*mdk.WorkUnit
	for _, k := range sortedNames(t) {
		urn := mdk.MakeContainerURN(k)
		wus = append(wus, mdk.NewProposal(urn, &mdk.Status{Removed: false}).WorkUnit())
		var children []string
		switch v := t[k].(type) {
		case tree:
			children = sortedNames(v)
		case []string:
			children = v
		}
		for _, child := range children {
			wus = append(wus, mdk.NewProposal(mdk.MakeContainerURN(child), &mdk.Container{Container: urn}).WorkUnit())
		}
		if sub, ok := t[k].(tree); ok {
			wus = append(wus, containerWorkUnits(sub)...)
		}
	}
	return wus
}

func sortedNames(t tree) []string {
	names := make([]string, 0, len(t))
	for k := range t {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func containerURNs(names ...string) []string {
	urns := make([]string, len(names))
	for i, n := range names {
		urns[i] = mdk.MakeContainerURN(n)
	}
	return urns
}

const (
	staffingURN = "urn:li:dataset:(urn:li:dataPlatform:bigquery,bigquery-public-data.covid19_aha.staffing,PROD)"
	bedsURN     = "urn:li:dataset:(urn:li:dataPlatform:bigquery,bigquery-public-data.covid19_aha.hospital_beds,PROD)"
)

func baseRecords() []interface{} {
	return []interface{}{
		mdk.NewProposal("urn:li:container:008e111aa1d250dd52e0fd5d4b307b1a", &mdk.ContainerProperties{Name: "test"}),
		mdk.NewProposal("urn:li:container:108e111aa1d250dd52e0fd5d4b307b12", &mdk.Status{Removed: true}),
		mdk.NewChangeEvent(staffingURN, &mdk.DatasetProperties{CustomProperties: map[string]string{"key": "value"}}),
		mdk.NewChangeEvent(bedsURN, &mdk.Status{Removed: true}),
	}
}
