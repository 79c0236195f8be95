// Package gaze holds the entities shared across every stage of the
// gaze-processing pipeline: the raw and calibrated sample types that flow
// from intake through calibration into the rest of the engine.
package gaze

import "fmt"

// Vec3 is a 3D point or direction in device camera space.
type Vec3 struct {
	X, Y, Z float64
}

// Sample is a single raw gaze reading produced by the device driver or a
// mock source (C1). Immutable once created. tsNs is monotonic and
// session-relative: for any two samples in the same session, a later
// sample's TsNs is strictly greater than an earlier one's.
type Sample struct {
	TsNs       int64
	DeviceX    float64
	DeviceY    float64
	Valid      bool
	Confidence float64

	Position3D  Vec3
	Direction3D Vec3
	Valid3D     bool

	PupilLeftMm  float64
	PupilRightMm float64
}

// Validate checks the structural invariants a sample must satisfy before
// it can enter the pipeline: finite coordinates and confidence in [0,1].
// This is the boundary check backing gazeerr.ErrInvalidSample; it does not
// reject on low confidence — that is a detector/rule-engine concern per
// spec.md §4.1.
func (s Sample) Validate() error {
	if isNaNOrInf(s.DeviceX) || isNaNOrInf(s.DeviceY) {
		return fmt.Errorf("non-finite device coordinates (%f, %f)", s.DeviceX, s.DeviceY)
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("confidence %f out of [0,1]", s.Confidence)
	}
	if s.Valid3D {
		if isNaNOrInf(s.Position3D.X) || isNaNOrInf(s.Position3D.Y) || isNaNOrInf(s.Position3D.Z) {
			return fmt.Errorf("non-finite 3d position")
		}
	}
	return nil
}

func isNaNOrInf(v float64) bool {
	return v != v || v > 1e308 || v < -1e308
}

// CalibratedSample is a Sample plus its screen-space projection. When no
// calibration transform has been computed, ScreenX/ScreenY equal
// DeviceX/DeviceY verbatim (spec.md §3).
type CalibratedSample struct {
	Sample
	ScreenX float64
	ScreenY float64
}

// Clamp bounds ScreenX/ScreenY to [0,w] x [0,h], the configured screen
// bounds. CalibratedSample's invariant (spec.md §3) requires this after
// every transform application.
func (c *CalibratedSample) Clamp(w, h float64) {
	c.ScreenX = clampf(c.ScreenX, 0, w)
	c.ScreenY = clampf(c.ScreenY, 0, h)
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
