package achievements

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUpdateVocabularyProgressUnlocksOnceAtThreshold(t *testing.T) {
	tr := New(DefaultCatalogue())

	unlocked := tr.UpdateVocabularyProgress(1, 1000)
	require.Len(t, unlocked, 1)
	require.Equal(t, "first_word", unlocked[0].Definition.ID)

	// Same value again: already unlocked, must not re-fire.
	unlocked = tr.UpdateVocabularyProgress(1, 2000)
	require.Empty(t, unlocked)
}

func TestUpdateVocabularyProgressUnlocksMultipleTiersAtOnce(t *testing.T) {
	tr := New(DefaultCatalogue())
	unlocked := tr.UpdateVocabularyProgress(5, 1000)
	ids := map[string]bool{}
	for _, p := range unlocked {
		ids[p.Definition.ID] = true
	}
	require.True(t, ids["first_word"])
	require.True(t, ids["vocab_explorer"])
}

func TestProgressPercentageClampsAtHundred(t *testing.T) {
	tr := New(DefaultCatalogue())
	tr.UpdateVocabularyProgress(100, 1000)
	for _, p := range tr.All() {
		if p.Definition.ID == "first_word" {
			require.Equal(t, 100.0, p.ProgressPercentage())
		}
	}
}

func TestRecentUnlocksIsBoundedToThree(t *testing.T) {
	tr := New(DefaultCatalogue())
	tr.UpdateVocabularyProgress(1, 1000)
	tr.UpdateVocabularyProgress(5, 2000)
	tr.UpdateVocabularyProgress(10, 3000)
	tr.UpdateVocabularyProgress(20, 4000)

	recent := tr.RecentUnlocks()
	require.Len(t, recent, recentUnlocksLimit)
	require.Equal(t, "vocab_genius", recent[len(recent)-1].Definition.ID)
}

func TestTotalPointsSumsOnlyUnlocked(t *testing.T) {
	tr := New(DefaultCatalogue())
	require.Equal(t, 0, tr.TotalPoints())
	tr.UpdateVocabularyProgress(1, 1000)
	require.Equal(t, 5, tr.TotalPoints())
}

func TestUpdateReadingProgressSessionCompleteRequiresNinetyPercent(t *testing.T) {
	tr := New(DefaultCatalogue())
	unlocked := tr.UpdateReadingProgress(50, 50, 1000)
	for _, p := range unlocked {
		require.NotEqual(t, "session_complete", p.Definition.ID)
	}

	unlocked = tr.UpdateReadingProgress(50, 95, 2000)
	found := false
	for _, p := range unlocked {
		if p.Definition.ID == "session_complete" {
			found = true
		}
	}
	require.True(t, found)
}
