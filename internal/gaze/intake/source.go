// Package intake implements C1 Sample Intake: pulling raw gaze samples
// from a device driver or a mock source and handing them to the session's
// bounded sample channel. Grounded on the teacher's serialmux package —
// SampleSource plays the role of serialmux.SerialPorter, and Intake plays
// the role of SerialMux, but intake has exactly one consumer (the
// session's logic worker) rather than a fan-out subscriber set, since
// that fan-out happens downstream of the whole pipeline (spec.md §9: a
// tagged SampleSource variant, not an exception-based fallback).
package intake

import (
	"context"
	"fmt"

	"github.com/ganzin/gazeengine/internal/gaze"
)

// SampleSource produces a stream of raw samples. Implementations: Mock
// (deterministic playback/synthetic generation for tests and --fixture
// runs), Serial (a real head-mounted device on a USB-CDC serial port), and
// Push (samples handed in by the websocket ingest route).
type SampleSource interface {
	// Open prepares the source for reading. Called once before Run.
	Open() error
	// Run reads samples until ctx is done or the source is exhausted,
	// sending each to out. Run must not block indefinitely on a full out;
	// the caller (Intake) is responsible for drain semantics.
	Run(ctx context.Context, out chan<- gaze.Sample) error
	// Close releases any underlying resources (port, file). Idempotent.
	Close() error
	// Kind identifies the source variant for status reporting.
	Kind() string
}

// ErrAlreadyStreaming names the already-streaming condition. Intake.StartStream
// does not return it: a second start reports StatusAlreadyStreaming with a
// nil error.
var ErrAlreadyStreaming = fmt.Errorf("already streaming")

// CameraIntrinsics is the eye-camera's focal length and principal point,
// used by the frontend to reason about gaze geometry outside this
// engine. Ported from original_source/backend's hard-coded camera
// intrinsics constant.
type CameraIntrinsics struct {
	FocalLengthX float64
	FocalLengthY float64
	PrincipalX   float64
	PrincipalY   float64
}

// MockCameraIntrinsics is the fallback the Python reference silently
// used for every session regardless of whether a real device was
// attached (spec.md §9(ii)). This module surfaces the fallback instead
// of hiding it: callers learn whether a value came from a real device
// or this constant via IntrinsicsProvider's ok return.
var MockCameraIntrinsics = CameraIntrinsics{
	FocalLengthX: 1150.0,
	FocalLengthY: 1150.0,
	PrincipalX:   640.0,
	PrincipalY:   360.0,
}

// IntrinsicsProvider is implemented by sources that can report real
// device camera intrinsics. MockSource does not implement it, so
// CameraIntrinsics falls back to MockCameraIntrinsics for fixture and
// synthetic mock runs.
type IntrinsicsProvider interface {
	CameraIntrinsics() CameraIntrinsics
}

// CameraIntrinsics returns the source's reported intrinsics and true, or
// MockCameraIntrinsics and false when the underlying source has none to
// report.
func (in *Intake) CameraIntrinsics() (CameraIntrinsics, bool) {
	if provider, ok := in.source.(IntrinsicsProvider); ok {
		return provider.CameraIntrinsics(), true
	}
	return MockCameraIntrinsics, false
}
