package aoi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFindHitPrefersVocabOverContent(t *testing.T) {
	idx := NewIndex()
	require.NoError(t, idx.Add(NewContentAOI("main_text", "content", 0, 0, 200, 200)))
	require.NoError(t, idx.Add(NewVocabAOI("biodiversity", "biodiversity", 50, 50, 100, 20)))

	hit, ok := idx.FindHit(60, 55)
	require.True(t, ok)
	require.Equal(t, "biodiversity", hit.ID)
}

func TestFindHitContentOverCustom(t *testing.T) {
	idx := NewIndex()
	require.NoError(t, idx.Add(NewCustomAOI("chrome", "chrome", 0, 0, 300, 300)))
	require.NoError(t, idx.Add(NewContentAOI("para", "para", 10, 10, 100, 100)))

	hit, ok := idx.FindHit(20, 20)
	require.True(t, ok)
	require.Equal(t, "para", hit.ID)
}

func TestFindHitMiss(t *testing.T) {
	idx := NewIndex()
	require.NoError(t, idx.Add(NewVocabAOI("word", "word", 0, 0, 10, 10)))
	_, ok := idx.FindHit(500, 500)
	require.False(t, ok)
}

func TestContainsIsHalfOpen(t *testing.T) {
	a := NewVocabAOI("w", "w", 0, 0, 10, 10)
	require.True(t, a.Contains(0, 0))
	require.True(t, a.Contains(9.999, 9.999))
	require.False(t, a.Contains(10, 10))
	require.False(t, a.Contains(-0.001, 5))
}

func TestPriorityBreaksTieWithinTier(t *testing.T) {
	idx := NewIndex()
	require.NoError(t, idx.Add(AOI{ID: "low", Tier: TierVocab, X: 0, Y: 0, Width: 100, Height: 100, Priority: 1}))
	require.NoError(t, idx.Add(AOI{ID: "high", Tier: TierVocab, X: 0, Y: 0, Width: 100, Height: 100, Priority: 5}))

	hit, ok := idx.FindHit(50, 50)
	require.True(t, ok)
	require.Equal(t, "high", hit.ID)
}

func TestMostRecentInsertionBreaksRemainingTie(t *testing.T) {
	idx := NewIndex()
	require.NoError(t, idx.Add(NewVocabAOI("first", "first", 0, 0, 100, 100)))
	require.NoError(t, idx.Add(NewVocabAOI("second", "second", 0, 0, 100, 100)))

	hit, ok := idx.FindHit(50, 50)
	require.True(t, ok)
	require.Equal(t, "second", hit.ID)
}

func TestAddRejectsNonPositiveDimensions(t *testing.T) {
	idx := NewIndex()
	err := idx.Add(NewVocabAOI("bad", "bad", 0, 0, 0, 10))
	require.Error(t, err)
}

func TestRemoveDeletesAndPreservesOrder(t *testing.T) {
	idx := NewIndex()
	require.NoError(t, idx.Add(NewVocabAOI("a", "a", 0, 0, 10, 10)))
	require.NoError(t, idx.Add(NewVocabAOI("b", "b", 0, 0, 10, 10)))
	idx.Remove("a")

	_, ok := idx.Get("a")
	require.False(t, ok)
	list := idx.List()
	require.Len(t, list, 1)
	require.Equal(t, "b", list[0].ID)
}

func TestListOrdersByTier(t *testing.T) {
	idx := NewIndex()
	require.NoError(t, idx.Add(NewCustomAOI("c", "c", 0, 0, 10, 10)))
	require.NoError(t, idx.Add(NewContentAOI("b", "b", 0, 0, 10, 10)))
	require.NoError(t, idx.Add(NewVocabAOI("a", "a", 0, 0, 10, 10)))

	list := idx.List()
	require.Equal(t, []string{"a", "b", "c"}, []string{list[0].ID, list[1].ID, list[2].ID})
}
