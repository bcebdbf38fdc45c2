package test

import (
	"reflect"
	"testing"

	"github.com/catalogkit/mdk"
)

// MustBe uses reflect.DeepEqual to assert that thing1 and thing2 are equal, and
// fails otherwise.
func MustBe(t *testing.T, thing1, thing2 interface{}, context ...string) {
	t.Helper()
	var ctx string
	if len(context) == 0 {
		ctx = ""
	} else {
		ctx = context[0] + ": "
	}
	if !reflect.DeepEqual(thing1, thing2) {
		t.Fatalf("%v'%#v' != '%#v'", ctx, thing1, thing2)
	}
}

// ErrNil asserts that the err is nil and fails otherwise.
func ErrNil(t *testing.T, err error, ctx string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%v: %v", ctx, err)
	}
}

// Collect drains s and fails on error.
func Collect(t *testing.T, s mdk.Stream) []*mdk.WorkUnit {
	t.Helper()
	wus, err := mdk.Collect(s)
	ErrNil(t, err, "collecting stream")
	return wus
}

// IDs returns the ids of wus in order.
func IDs(wus []*mdk.WorkUnit) []string {
	ids := make([]string, len(wus))
	for i, wu := range wus {
		ids[i] = wu.ID
	}
	return ids
}

// AspectsOf returns every aspect called name among the units for urn, in
// stream order.
func AspectsOf(t *testing.T, wus []*mdk.WorkUnit, urn, name string) []mdk.Aspect {
	t.Helper()
	var ret []mdk.Aspect
	for _, wu := range wus {
		if wu.URN() != urn {
			continue
		}
		as, err := wu.AspectsOfType(name)
		ErrNil(t, err, "getting aspects of "+wu.ID)
		ret = append(ret, as...)
	}
	return ret
}

// BrowsePathIDs returns the entry ids of the single BrowsePathsV2 emitted for
// urn, and fails if there is not exactly one.
func BrowsePathIDs(t *testing.T, wus []*mdk.WorkUnit, urn string) []string {
	t.Helper()
	as := AspectsOf(t, wus, urn, mdk.BrowsePathsV2AspectName)
	if len(as) != 1 {
		t.Fatalf("expected 1 browsePathsV2 for %s, got %d", urn, len(as))
	}
	path := as[0].(*mdk.BrowsePathsV2).Path
	ids := make([]string, len(path))
	for i, e := range path {
		ids[i] = e.ID
	}
	return ids
}

// CountAspect returns how many units carry an aspect called name.
func CountAspect(t *testing.T, wus []*mdk.WorkUnit, name string) int {
	t.Helper()
	n := 0
	for _, wu := range wus {
		has, err := wu.HasAspect(name)
		ErrNil(t, err, "checking "+wu.ID)
		if has {
			n++
		}
	}
	return n
}
