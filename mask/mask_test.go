package mask_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nginfra/movici-simulation-core-sub002/mask"
)

func TestOverlapFullLeafMatchesSubtree(t *testing.T) {
	a := mask.Tree{"ds": {"eg": nil}}
	b := mask.Tree{"ds": {"eg": {"x": nil}}}
	assert.True(t, mask.Overlap(a, b))
	assert.True(t, mask.Overlap(b, a))
}

func TestOverlapDisjoint(t *testing.T) {
	a := mask.Tree{"ds": {"eg1": nil}}
	b := mask.Tree{"ds": {"eg2": nil}}
	assert.False(t, mask.Overlap(a, b))
}

func TestMasksOverlapNilSides(t *testing.T) {
	assert.False(t, mask.MasksOverlap(nil, &mask.DataMask{}))
	assert.False(t, mask.MasksOverlap(&mask.DataMask{Pub: mask.Tree{"a": nil}}, &mask.DataMask{}))
}

func TestFilterNilMaskKeepsEverything(t *testing.T) {
	data := map[string]any{"ds": map[string]any{"eg": map[string]any{"x": 1.0, "y": 2.0}}}
	out := mask.Filter(data, nil)
	assert.Equal(t, data, out)
}

func TestFilterRetainsOnlyMaskedLeaves(t *testing.T) {
	data := map[string]any{"ds": map[string]any{"eg": map[string]any{"x": 1.0, "y": 2.0}}}
	m := mask.Tree{"ds": {"eg": {"x": nil}}}
	out := mask.Filter(data, m)
	want := map[string]any{"ds": map[string]any{"eg": map[string]any{"x": 1.0}}}
	assert.Equal(t, want, out)
}

func TestOverlapPathReturnsSharedLeaf(t *testing.T) {
	a := mask.Tree{"ds": {"eg": nil}}
	b := mask.Tree{"ds": {"eg": {"x": nil}}}
	path, ok := mask.OverlapPath(a, b)
	assert.True(t, ok)
	assert.Equal(t, "ds.eg", path)
}

func TestOverlapPathDisjointReportsNoMatch(t *testing.T) {
	a := mask.Tree{"ds": {"eg1": nil}}
	b := mask.Tree{"ds": {"eg2": nil}}
	_, ok := mask.OverlapPath(a, b)
	assert.False(t, ok)
}

func TestFilterDropsUnmatchedBranches(t *testing.T) {
	data := map[string]any{"ds1": map[string]any{"eg": map[string]any{"x": 1.0}}}
	m := mask.Tree{"ds2": {"eg": nil}}
	out := mask.Filter(data, m)
	assert.Empty(t, out)
}
