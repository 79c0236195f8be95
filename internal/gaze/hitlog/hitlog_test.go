package hitlog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ganzin/gazeengine/internal/gaze/aoi"
)

func TestRecordUpdatesAggregateAndQuality(t *testing.T) {
	l := New()
	word := aoi.NewVocabAOI("biodiversity", "biodiversity", 100, 100, 100, 20)

	hit := l.Record(1_000_000, word, 150, 110, 0.9, 1200)
	require.Equal(t, QualityExcellent, hit.Quality())

	stats := l.Stats()["biodiversity"]
	require.Equal(t, 1, stats.HitCount)
	require.InDelta(t, 1200, stats.TotalDwellMs, 0.001)
	require.Equal(t, 1, stats.QualityHistogram[QualityExcellent])
}

func TestMeanConfidenceAccumulatesAcrossHits(t *testing.T) {
	l := New()
	word := aoi.NewVocabAOI("word", "word", 0, 0, 100, 20)

	l.Record(1, word, 10, 10, 1.0, 300)
	l.Record(2, word, 10, 10, 0.0, 300)

	stats := l.Stats()["word"]
	require.InDelta(t, 0.5, stats.MeanConfidence, 0.0001)
}

func TestVocabularyHitsOnlyIncludesVocabTier(t *testing.T) {
	l := New()
	vocab := aoi.NewVocabAOI("w", "w", 0, 0, 10, 10)
	content := aoi.NewContentAOI("c", "c", 0, 0, 10, 10)

	l.Record(1, vocab, 5, 5, 0.9, 300)
	l.Record(2, content, 5, 5, 0.9, 300)

	vocabHits := l.VocabularyHits()
	require.Len(t, vocabHits, 1)
	require.Equal(t, "w", vocabHits[0].AOIID)

	all := l.All()
	require.Len(t, all, 2)
}

func TestVocabularyRingIsBoundedAndMostRecentFirst(t *testing.T) {
	l := New()
	vocab := aoi.NewVocabAOI("w", "w", 0, 0, 10, 10)
	for i := 0; i < vocabularyRingSize+10; i++ {
		l.Record(int64(i), vocab, 5, 5, 0.9, 300)
	}
	ring := l.VocabularyHits()
	require.Len(t, ring, vocabularyRingSize)
	require.Equal(t, vocabularyRingSize+10, ring[0].SequenceNumber)
}

func TestVocabularyDiscoveriesDedupeByAOIAndPreserveFirstSeenOrder(t *testing.T) {
	l := New()
	hello := aoi.NewVocabAOI("hello", "hello", 0, 0, 10, 10)
	world := aoi.NewVocabAOI("world", "world", 20, 0, 10, 10)

	l.Record(1, hello, 5, 5, 0.9, 300)
	l.Record(2, world, 25, 5, 0.9, 300)
	l.Record(3, hello, 5, 5, 0.9, 300) // re-fixation: must not add a second discovery
	l.Record(4, hello, 5, 5, 0.9, 300)

	discoveries := l.VocabularyDiscoveries()
	require.Len(t, discoveries, 2)
	require.Equal(t, "hello", discoveries[0].AOIID)
	require.Equal(t, "world", discoveries[1].AOIID)

	// The raw per-hit feed still reports every fixation, unlike the
	// deduplicated discovery set.
	require.Len(t, l.VocabularyHits(), 4)
}

func TestQualityThresholds(t *testing.T) {
	cases := []struct {
		name       string
		confidence float64
		distance   float64
		durationMs float64
		want       Quality
	}{
		{"excellent", 0.9, 5, 1500, QualityExcellent},
		{"good", 0.7, 20, 600, QualityGood},
		{"fair", 0.5, 30, 100, QualityFair},
		{"poor", 0.1, 100, 0, QualityPoor},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := Hit{
				Confidence: tc.confidence,
				FixationMs: tc.durationMs,
				GazeX:      tc.distance,
				GazeY:      0,
				AOICenterX: 0,
				AOICenterY: 0,
			}
			require.Equal(t, tc.want, h.Quality())
		})
	}
}
