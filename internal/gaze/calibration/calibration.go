// Package calibration implements C2 Calibration: capturing device-space
// to screen-space correspondences and computing the transform the rest of
// the pipeline applies to every raw sample. Grounded on the teacher's
// tracking.go Kalman-tracker idiom for the explicit-state-machine shape
// (TrackState-style tagged phases rather than booleans) and on
// gonum.org/v1/gonum/mat for the homography solve, the same module the
// teacher already depends on for internal/db's stat usage.
package calibration

import (
	"fmt"
	"math"
	"sync"

	"github.com/ganzin/gazeengine/internal/gaze"
	"github.com/ganzin/gazeengine/internal/gazeerr"
)

// Phase is the calibration state machine's tagged variant, mirroring the
// teacher's explicit TrackState enum rather than a cluster of booleans.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseCollecting Phase = "collecting"
	PhaseComputing  Phase = "computing"
	PhaseReady      Phase = "ready"
)

// Point is one calibration target: its fixed screen location and the
// device-space reading captured while the subject fixated on it.
type Point struct {
	Index    int
	ScreenX  float64
	ScreenY  float64
	DeviceX  float64
	DeviceY  float64
	Captured bool
}

// Transform maps a device-space coordinate into screen space. Two
// variants exist (spec.md §9): a DLT homography (preferred, handles
// perspective and lens distortion jointly) and a per-axis linear scaling
// (fallback for degenerate or too-few-point configurations).
type Transform interface {
	Apply(deviceX, deviceY float64) (screenX, screenY float64)
	Kind() string
}

// Status is a snapshot of calibration progress for the
// /api/calibration/status endpoint.
type Status struct {
	Phase          Phase
	TotalPoints    int
	CapturedPoints int
	TransformKind  string
	AccuracyPx     float64
}

// Calibration runs one session's calibration state machine and holds the
// resulting Transform once ready.
type Calibration struct {
	mu        sync.Mutex
	phase     Phase
	points    []Point
	transform Transform
	screenW   float64
	screenH   float64
}

// New creates a Calibration bound to the given screen bounds, used to
// clamp every transformed sample (spec.md §3's CalibratedSample
// invariant).
func New(screenWidthPx, screenHeightPx float64) *Calibration {
	return &Calibration{phase: PhaseIdle, screenW: screenWidthPx, screenH: screenHeightPx}
}

// BeginCalibration resets the state machine into Collecting with n empty
// target points laid out by the caller (the UI positions the on-screen
// dots; this package only tracks which have been captured).
func (c *Calibration) BeginCalibration(targets []struct{ X, Y float64 }) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(targets) < 4 {
		return fmt.Errorf("%w: calibration requires at least 4 points, got %d", gazeerr.ErrInsufficientPoints, len(targets))
	}
	points := make([]Point, len(targets))
	for i, t := range targets {
		points[i] = Point{Index: i, ScreenX: t.X, ScreenY: t.Y}
	}
	c.points = points
	c.transform = nil
	c.phase = PhaseCollecting
	return nil
}

// CapturePoint records the device-space reading for target index while
// in Collecting. Capturing the same index twice overwrites it — the UI
// may re-prompt a subject who blinked through a target.
func (c *Calibration) CapturePoint(index int, deviceX, deviceY float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseCollecting {
		return fmt.Errorf("%w: capture_point called in phase %s", gazeerr.ErrInvalidState, c.phase)
	}
	if index < 0 || index >= len(c.points) {
		return fmt.Errorf("%w: point index %d out of range [0,%d)", gazeerr.ErrInvalidSample, index, len(c.points))
	}
	c.points[index].DeviceX = deviceX
	c.points[index].DeviceY = deviceY
	c.points[index].Captured = true
	return nil
}

// SetTarget overrides the screen-space position recorded for target
// index, letting the caller report where it actually rendered the dot
// at capture time rather than relying solely on BeginCalibration's
// original layout. An out-of-range or non-Collecting-phase call is a
// silent no-op — the screen position is advisory, and CapturePoint
// (called alongside this) still enforces the real validity checks.
func (c *Calibration) SetTarget(index int, screenX, screenY float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseCollecting || index < 0 || index >= len(c.points) {
		return
	}
	c.points[index].ScreenX = screenX
	c.points[index].ScreenY = screenY
}

// capturedCount returns how many of the target points have been
// captured. Caller must hold c.mu.
func (c *Calibration) capturedCount() int {
	n := 0
	for _, p := range c.points {
		if p.Captured {
			n++
		}
	}
	return n
}

// ComputeTransform solves the calibration transform from every captured
// point. preferHomography requests the DLT+RANSAC solve; it silently
// falls back to linear per-axis scaling when homography solving is
// infeasible (too few inliers, degenerate geometry, near-singular
// system), per spec.md §9 — calibration never fails outright just
// because the preferred method is unavailable.
func (c *Calibration) ComputeTransform(preferHomography bool) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseCollecting {
		return Status{}, fmt.Errorf("%w: calculate called in phase %s", gazeerr.ErrInvalidState, c.phase)
	}
	captured := make([]Point, 0, len(c.points))
	for _, p := range c.points {
		if p.Captured {
			captured = append(captured, p)
		}
	}
	if len(captured) < 4 {
		return Status{}, fmt.Errorf("%w: only %d of %d points captured", gazeerr.ErrInsufficientPoints, len(captured), len(c.points))
	}

	c.phase = PhaseComputing

	var transform Transform
	if preferHomography {
		if h, err := solveHomographyRANSAC(captured); err == nil {
			transform = h
		}
	}
	if transform == nil {
		transform = solveLinear(captured)
	}

	c.transform = transform
	c.phase = PhaseReady
	return c.statusLocked(), nil
}

// accuracyPxLocked returns the mean reprojection error, in pixels,
// between each captured point's screen target and the transform's
// projection of its device-space reading. Zero before a transform
// exists. Caller must hold c.mu.
func (c *Calibration) accuracyPxLocked() float64 {
	if c.transform == nil {
		return 0
	}
	var sum float64
	n := 0
	for _, p := range c.points {
		if !p.Captured {
			continue
		}
		sx, sy := c.transform.Apply(p.DeviceX, p.DeviceY)
		sum += math.Hypot(sx-p.ScreenX, sy-p.ScreenY)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// GetStatus returns the current phase and progress.
func (c *Calibration) GetStatus() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Calibration) statusLocked() Status {
	kind := "none"
	if c.transform != nil {
		kind = c.transform.Kind()
	}
	return Status{
		Phase:          c.phase,
		TotalPoints:    len(c.points),
		CapturedPoints: c.capturedCount(),
		TransformKind:  kind,
		AccuracyPx:     c.accuracyPxLocked(),
	}
}

// Apply projects a raw sample into screen space using the computed
// transform. Before calibration is Ready, device coordinates pass
// through unchanged, per spec.md §3's CalibratedSample invariant — there
// is no meaningful projection yet, so the identity is the only honest
// answer.
func (c *Calibration) Apply(s gaze.Sample) gaze.CalibratedSample {
	c.mu.Lock()
	transform := c.transform
	phase := c.phase
	w, h := c.screenW, c.screenH
	c.mu.Unlock()

	out := gaze.CalibratedSample{Sample: s}
	if phase != PhaseReady || transform == nil {
		out.ScreenX, out.ScreenY = s.DeviceX, s.DeviceY
	} else {
		out.ScreenX, out.ScreenY = transform.Apply(s.DeviceX, s.DeviceY)
	}
	out.Clamp(w, h)
	return out
}

// Reset returns the state machine to Idle, discarding any points and
// transform. Used when a session restarts calibration from scratch.
func (c *Calibration) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phase = PhaseIdle
	c.points = nil
	c.transform = nil
}
