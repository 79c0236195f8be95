// Package cogload implements C6 Cognitive Load Scoring: a rolling
// dispersion/velocity metric over the most recent raw samples, combined
// into a 0-100 score and bucketed into LOW/MEDIUM/HIGH. Ported directly
// from original_source/backend/manager/gaze_manager.py's
// _update_cognitive_load — same window size, same normalization
// constants, same 0.6/0.4 weighting and bucket thresholds — generalized
// from a Python dict into a typed Score and a bounded history, in the
// teacher's TrackedObject.speedHistory idiom.
package cogload

import (
	"math"

	"github.com/ganzin/gazeengine/internal/gaze"
)

// windowSize is how many of the most recent samples feed one score
// computation.
const windowSize = 10

// historySize bounds the retained trend, matching the Python
// reference's 20-entry cognitive_load_history.
const historySize = 20

// Level buckets a Score for display.
type Level string

const (
	LevelLow    Level = "LOW"
	LevelMedium Level = "MEDIUM"
	LevelHigh   Level = "HIGH"
)

// Score is one cognitive-load computation.
type Score struct {
	Value          float64
	Level          Level
	TsNs           int64
	GazeDispersion float64
	AvgVelocity    float64
	SampleCount    int
}

// levelFor buckets a combined score using the reference's thresholds:
// <30 LOW, <70 MEDIUM, else HIGH.
func levelFor(score float64) Level {
	switch {
	case score < 30:
		return LevelLow
	case score < 70:
		return LevelMedium
	default:
		return LevelHigh
	}
}

// Tracker maintains the rolling sample window and bounded score history
// for one session. Not safe for concurrent use; driven by the session's
// single logic worker like the rest of the pipeline (spec.md §5).
type Tracker struct {
	window  []gaze.CalibratedSample
	history []Score
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{}
}

// Feed appends a sample to the rolling window and recomputes the score
// once at least 5 samples are available, matching the reference's
// len(gaze_trail) < 5 guard. Returns the new score and true whenever one
// was computed.
func (t *Tracker) Feed(s gaze.CalibratedSample) (Score, bool) {
	t.window = append(t.window, s)
	if len(t.window) > windowSize {
		t.window = t.window[len(t.window)-windowSize:]
	}
	if len(t.window) < 5 {
		return Score{}, false
	}

	score := compute(t.window)
	t.history = append(t.history, score)
	if len(t.history) > historySize {
		t.history = t.history[len(t.history)-historySize:]
	}
	return score, true
}

// History returns the bounded trend of recent scores, oldest first.
func (t *Tracker) History() []Score {
	out := make([]Score, len(t.history))
	copy(out, t.history)
	return out
}

// compute derives one Score from the current window, following the
// reference's dispersion/velocity normalization and combine weights.
func compute(window []gaze.CalibratedSample) Score {
	minX, maxX := window[0].ScreenX, window[0].ScreenX
	minY, maxY := window[0].ScreenY, window[0].ScreenY
	for _, s := range window {
		minX = math.Min(minX, s.ScreenX)
		maxX = math.Max(maxX, s.ScreenX)
		minY = math.Min(minY, s.ScreenY)
		maxY = math.Max(maxY, s.ScreenY)
	}
	dispersion := ((maxX - minX) + (maxY - minY)) / 2

	var velocities []float64
	for i := 1; i < len(window); i++ {
		dx := window[i].ScreenX - window[i-1].ScreenX
		dy := window[i].ScreenY - window[i-1].ScreenY
		dtSeconds := float64(window[i].TsNs-window[i-1].TsNs) / 1e9
		if dtSeconds > 0 {
			velocities = append(velocities, math.Hypot(dx, dy)/dtSeconds)
		}
	}
	var avgVelocity float64
	if len(velocities) > 0 {
		var sum float64
		for _, v := range velocities {
			sum += v
		}
		avgVelocity = sum / float64(len(velocities))
	}

	dispersionScore := math.Min(100, dispersion/5)
	velocityScore := math.Min(100, avgVelocity/100)
	combined := dispersionScore*0.6 + velocityScore*0.4

	return Score{
		Value:          combined,
		Level:          levelFor(combined),
		TsNs:           window[len(window)-1].TsNs,
		GazeDispersion: dispersion,
		AvgVelocity:    avgVelocity,
		SampleCount:    len(window),
	}
}
