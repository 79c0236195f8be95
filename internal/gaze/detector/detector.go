// Package detector implements C4 Fixation Detection: the
// dispersion-threshold (I-DT) algorithm that turns a stream of
// calibrated samples into Fixation events. Saccades are not reported:
// EventSaccade is defined, but no path in the detector emits it. Modeled as an
// explicit state machine — FixState's tagged Idle/Fixating variants —
// rather than ad-hoc threshold math scattered across the call site, per
// spec.md §9's design note. Grounded on the teacher's tracking.go
// TrackState/TrackedObject shape: a small enum state, an accumulating
// window, and lifecycle counters driving transitions.
package detector

import (
	"math"

	"github.com/ganzin/gazeengine/internal/gaze"
)

// FixState is the detector's tagged state.
type FixState string

const (
	StateIdle     FixState = "idle"
	StateFixating FixState = "fixating"
)

// EventKind distinguishes event types. The detector emits only
// EventFixation.
type EventKind string

const (
	EventFixation EventKind = "fixation"
	EventSaccade  EventKind = "saccade"
)

// Event is a completed fixation, timestamped by its start
// and end within the window of samples that produced it.
type Event struct {
	Kind        EventKind
	StartTsNs   int64
	EndTsNs     int64
	DurationMs  float64
	CentroidX   float64
	CentroidY   float64
	MeanConfidence float64
	SampleCount int
}

// Config bundles the tunable thresholds the I-DT algorithm runs
// against, pulled from config.TuningConfig at session start.
type Config struct {
	WindowMs             float64 // dispersion window, default 100ms
	DispersionThresholdD float64 // degrees, default 1.0
	MinFixationMs        float64 // default 200ms
	PixelsPerDegree      float64 // default 35.0
	ConfidenceThreshold  float64 // default 0.8
}

// Detector runs the I-DT state machine for one session's sample stream.
// Not safe for concurrent use — it is driven exclusively by a session's
// single serialized logic worker (spec.md §5).
type Detector struct {
	cfg Config

	state  FixState
	window []gaze.CalibratedSample

	lowConfidenceRun int
}

// New creates a Detector in StateIdle.
func New(cfg Config) *Detector {
	return &Detector{cfg: cfg, state: StateIdle}
}

// dispersionThresholdPx converts the configured angular dispersion
// threshold into pixels using the session's pixels-per-degree constant.
func (d *Detector) dispersionThresholdPx() float64 {
	return d.cfg.DispersionThresholdD * d.cfg.PixelsPerDegree
}

// highConfidence returns the subset of samples at or above
// ConfidenceThreshold. Dispersion and centroid are computed only over
// this subset; the full window (including low-confidence samples) is
// still used for window-span timing and gap detection (spec.md §4.4:
// "low-confidence samples are rejected from dispersion calculation but
// counted for gap detection").
func (d *Detector) highConfidence(samples []gaze.CalibratedSample) []gaze.CalibratedSample {
	out := make([]gaze.CalibratedSample, 0, len(samples))
	for _, s := range samples {
		if s.Confidence >= d.cfg.ConfidenceThreshold {
			out = append(out, s)
		}
	}
	return out
}

// Feed processes one calibrated sample and returns a completed event if
// this sample closes out a fixation. Most calls return
// (Event{}, false) — the window is still accumulating.
func (d *Detector) Feed(s gaze.CalibratedSample) (Event, bool) {
	if s.Confidence < d.cfg.ConfidenceThreshold {
		d.lowConfidenceRun++
	} else {
		d.lowConfidenceRun = 0
	}

	// Three or more consecutive low-confidence samples end whatever
	// fixation is in progress rather than let it silently absorb noise
	// (spec.md §4.4): the trailing low-confidence samples are dropped, and
	// the rest is emitted only if it still meets the minimum duration.
	if d.lowConfidenceRun >= 3 && d.state == StateFixating {
		for len(d.window) > 0 && d.window[len(d.window)-1].Confidence < d.cfg.ConfidenceThreshold {
			d.window = d.window[:len(d.window)-1]
		}
		ev, ok := d.closeFixation()
		d.window = nil
		d.state = StateIdle
		if ok {
			return ev, true
		}
	}

	switch d.state {
	case StateIdle:
		return d.feedIdle(s)
	default:
		return d.feedFixating(s)
	}
}

func (d *Detector) feedIdle(s gaze.CalibratedSample) (Event, bool) {
	d.window = append(d.window, s)
	if windowSpanMs(d.window) < d.cfg.WindowMs {
		return Event{}, false
	}
	if dispersion(d.highConfidence(d.window)) <= d.dispersionThresholdPx() {
		d.state = StateFixating
		return Event{}, false
	}
	// Dispersion over the full window exceeds the threshold: drop the
	// oldest sample and keep sliding, the standard I-DT behavior when a
	// point never settles into a fixation. No event is emitted here.
	d.window = d.window[1:]
	return Event{}, false
}

func (d *Detector) feedFixating(s gaze.CalibratedSample) (Event, bool) {
	candidate := append(append([]gaze.CalibratedSample{}, d.window...), s)
	if dispersion(d.highConfidence(candidate)) <= d.dispersionThresholdPx() {
		d.window = candidate
		return Event{}, false
	}

	// Dispersion broke: the fixation ends at the last sample still
	// inside the window, and a fresh idle window starts with this one.
	ev, ok := d.closeFixation()
	d.window = []gaze.CalibratedSample{s}
	d.state = StateIdle
	if !ok {
		// Fixation was too short to count (spec.md §4.4 min duration);
		// the samples are discarded and a fresh idle window starts.
		return Event{}, false
	}
	return ev, true
}

// closeFixation finalizes the accumulated window as a Fixation event if
// it meets the minimum duration, discarding it otherwise.
func (d *Detector) closeFixation() (Event, bool) {
	if len(d.window) == 0 {
		return Event{}, false
	}
	durationMs := windowSpanMs(d.window)
	if durationMs < d.cfg.MinFixationMs {
		return Event{}, false
	}
	cx, cy, meanConf := centroid(d.highConfidence(d.window))
	return Event{
		Kind:           EventFixation,
		StartTsNs:      d.window[0].TsNs,
		EndTsNs:        d.window[len(d.window)-1].TsNs,
		DurationMs:     durationMs,
		CentroidX:      cx,
		CentroidY:      cy,
		MeanConfidence: meanConf,
		SampleCount:    len(d.window),
	}, true
}

// Flush closes out whatever fixation is in progress at stream end
// (e.g. session stop), returning it if it met the minimum duration.
func (d *Detector) Flush() (Event, bool) {
	if d.state != StateFixating {
		return Event{}, false
	}
	ev, ok := d.closeFixation()
	d.window = nil
	d.state = StateIdle
	return ev, ok
}

func windowSpanMs(samples []gaze.CalibratedSample) float64 {
	if len(samples) < 2 {
		return 0
	}
	return float64(samples[len(samples)-1].TsNs-samples[0].TsNs) / 1e6
}

// dispersion is the I-DT dispersion metric: (max_x - min_x) + (max_y -
// min_y) across the window, the classic Salvucci & Goldberg formulation.
// An empty sample set (every sample in the window was below confidence
// threshold) reports infinite dispersion rather than a false zero, so
// the caller's threshold comparison never mistakes "no reliable data"
// for "perfectly still."
func dispersion(samples []gaze.CalibratedSample) float64 {
	if len(samples) == 0 {
		return math.Inf(1)
	}
	minX, maxX := samples[0].ScreenX, samples[0].ScreenX
	minY, maxY := samples[0].ScreenY, samples[0].ScreenY
	for _, s := range samples {
		minX = math.Min(minX, s.ScreenX)
		maxX = math.Max(maxX, s.ScreenX)
		minY = math.Min(minY, s.ScreenY)
		maxY = math.Max(maxY, s.ScreenY)
	}
	return (maxX - minX) + (maxY - minY)
}

// centroid averages screen position and confidence across samples. An
// empty set (no high-confidence samples in the closing window) reports
// the zero value rather than dividing by zero.
func centroid(samples []gaze.CalibratedSample) (x, y, meanConfidence float64) {
	if len(samples) == 0 {
		return 0, 0, 0
	}
	n := float64(len(samples))
	for _, s := range samples {
		x += s.ScreenX
		y += s.ScreenY
		meanConfidence += s.Confidence
	}
	return x / n, y / n, meanConfidence / n
}
