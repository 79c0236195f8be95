// Package hitlog implements C5 Hit Logging: an append-only record of
// every fixation that lands inside an AOI, plus running per-AOI
// aggregates. Grounded on
// original_source/backend/models/hit_log.py's HitLog/HitLogManager
// (distance-from-center, hit-quality classification, the aoi_statistics
// running aggregate) and on the teacher's history-slice idiom in
// tracking.go's TrackedObject.History for the bounded vocabulary
// discovery ring.
package hitlog

import (
	"math"
	"sync"

	"github.com/ganzin/gazeengine/internal/gaze/aoi"
)

// Quality classifies a hit's precision, ported from the Python
// reference's get_hit_quality thresholds.
type Quality string

const (
	QualityExcellent Quality = "excellent"
	QualityGood      Quality = "good"
	QualityFair      Quality = "fair"
	QualityPoor      Quality = "poor"
)

// vocabularyRingSize bounds the live in-memory ring of vocabulary hits;
// every hit stays in the full log (exported by C10), only the most
// recent vocabulary hits are kept hot for the status endpoints.
const vocabularyRingSize = 50

// Hit is one fixation landing inside an AOI.
type Hit struct {
	SequenceNumber int
	TsNs           int64
	AOIID          string
	AOIText        string
	AOICenterX     float64
	AOICenterY     float64
	GazeX          float64
	GazeY          float64
	Confidence     float64
	FixationMs     float64
	IsVocabulary   bool
}

// DistanceFromCenter returns the pixel distance between the gaze
// position and the AOI's center, the basis for hit-quality
// classification.
func (h Hit) DistanceFromCenter() float64 {
	dx := h.GazeX - h.AOICenterX
	dy := h.GazeY - h.AOICenterY
	return math.Hypot(dx, dy)
}

// Quality classifies the hit using the same tiered confidence/distance/
// duration thresholds as the Python reference's get_hit_quality.
func (h Hit) Quality() Quality {
	d := h.DistanceFromCenter()
	switch {
	case h.Confidence >= 0.8 && d <= 15.0 && h.FixationMs >= 1000:
		return QualityExcellent
	case h.Confidence >= 0.6 && d <= 25.0 && h.FixationMs >= 500:
		return QualityGood
	case h.Confidence >= 0.4 && d <= 40.0:
		return QualityFair
	default:
		return QualityPoor
	}
}

// AOIStats is the running aggregate kept for one AOI.
type AOIStats struct {
	AOIID            string
	Text             string
	IsVocabulary     bool
	HitCount         int
	TotalDwellMs     float64
	MeanConfidence   float64
	QualityHistogram map[Quality]int
}

// Log is the append-only hit log for one session.
type Log struct {
	mu sync.Mutex

	hits  []Hit
	seq   int
	stats map[string]*AOIStats

	vocabRing []Hit // bounded, most recent vocabulary hits first, one entry per hit

	vocabDiscovered  map[string]bool // AOI IDs already counted as a discovery
	vocabDiscoveries []Hit           // first hit per distinct vocab AOI, in first-discovery order
}

// New creates an empty Log.
func New() *Log {
	return &Log{stats: make(map[string]*AOIStats), vocabDiscovered: make(map[string]bool)}
}

// Record appends a hit derived from a completed fixation landing inside
// aoiHit, updating the AOI's running aggregate and, if the AOI is a
// vocabulary target, the bounded vocabulary-hit ring and the discovery
// set.
func (l *Log) Record(tsNs int64, a aoi.AOI, gazeX, gazeY, confidence, fixationMs float64) Hit {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	isVocab := a.Tier == aoi.TierVocab
	hit := Hit{
		SequenceNumber: l.seq,
		TsNs:           tsNs,
		AOIID:          a.ID,
		AOIText:        a.Text,
		AOICenterX:     a.CenterX(),
		AOICenterY:     a.CenterY(),
		GazeX:          gazeX,
		GazeY:          gazeY,
		Confidence:     confidence,
		FixationMs:     fixationMs,
		IsVocabulary:   isVocab,
	}
	l.hits = append(l.hits, hit)

	stats, ok := l.stats[a.ID]
	if !ok {
		stats = &AOIStats{AOIID: a.ID, Text: a.Text, IsVocabulary: isVocab, QualityHistogram: make(map[Quality]int)}
		l.stats[a.ID] = stats
	}
	stats.HitCount++
	stats.TotalDwellMs += fixationMs
	// Running mean, not sum/count at read time, matching the Python
	// reference's incremental average_confidence accumulation.
	stats.MeanConfidence += (confidence - stats.MeanConfidence) / float64(stats.HitCount)
	stats.QualityHistogram[hit.Quality()]++

	if isVocab {
		l.vocabRing = append([]Hit{hit}, l.vocabRing...)
		if len(l.vocabRing) > vocabularyRingSize {
			l.vocabRing = l.vocabRing[:vocabularyRingSize]
		}
		if !l.vocabDiscovered[a.ID] {
			l.vocabDiscovered[a.ID] = true
			l.vocabDiscoveries = append(l.vocabDiscoveries, hit)
		}
	}

	return hit
}

// All returns every recorded hit, in recording order.
func (l *Log) All() []Hit {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Hit, len(l.hits))
	copy(out, l.hits)
	return out
}

// VocabularyHits returns every hit recorded against vocabulary-tier
// AOIs, most recent first, bounded to vocabularyRingSize — one entry
// per hit, including repeat fixations on the same word. This is the
// raw feed behind /api/text/vocabulary-hits.
func (l *Log) VocabularyHits() []Hit {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Hit, len(l.vocabRing))
	copy(out, l.vocabRing)
	return out
}

// VocabularyDiscoveries returns the set of distinct vocabulary AOIs
// that have had any qualifying fixation, one entry per AOI (its first
// hit), ordered by first-discovery time (spec.md §3/§4.5). Re-fixating
// an already-discovered word does not add another entry here, unlike
// VocabularyHits.
func (l *Log) VocabularyDiscoveries() []Hit {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Hit, len(l.vocabDiscoveries))
	copy(out, l.vocabDiscoveries)
	return out
}

// Stats returns a snapshot of every AOI's running aggregate.
func (l *Log) Stats() map[string]AOIStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]AOIStats, len(l.stats))
	for id, s := range l.stats {
		histCopy := make(map[Quality]int, len(s.QualityHistogram))
		for q, n := range s.QualityHistogram {
			histCopy[q] = n
		}
		out[id] = AOIStats{
			AOIID:            s.AOIID,
			Text:             s.Text,
			IsVocabulary:     s.IsVocabulary,
			HitCount:         s.HitCount,
			TotalDwellMs:     s.TotalDwellMs,
			MeanConfidence:   s.MeanConfidence,
			QualityHistogram: histCopy,
		}
	}
	return out
}
