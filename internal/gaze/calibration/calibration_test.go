package calibration

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ganzin/gazeengine/internal/gaze"
)

func targets(coords [][2]float64) []struct{ X, Y float64 } {
	out := make([]struct{ X, Y float64 }, len(coords))
	for i, c := range coords {
		out[i] = struct{ X, Y float64 }{c[0], c[1]}
	}
	return out
}

func TestBeginCalibrationRequiresAtLeastFourPoints(t *testing.T) {
	c := New(1920, 1080)
	err := c.BeginCalibration(targets([][2]float64{{0, 0}, {1, 1}, {2, 2}}))
	require.Error(t, err)
}

func TestCapturePointOutsideCollectingPhaseFails(t *testing.T) {
	c := New(1920, 1080)
	err := c.CapturePoint(0, 10, 10)
	require.Error(t, err)
}

func TestComputeTransformLinearFallbackOnAxisAlignedGrid(t *testing.T) {
	c := New(1920, 1080)
	screenPoints := [][2]float64{{0, 0}, {1920, 0}, {0, 1080}, {1920, 1080}}
	require.NoError(t, c.BeginCalibration(targets(screenPoints)))

	// Device coords are a pure linear scaling of screen coords.
	deviceFor := func(sx, sy float64) (float64, float64) { return sx/1920*100 + 10, sy/1080*100 + 10 }
	for i, sp := range screenPoints {
		dx, dy := deviceFor(sp[0], sp[1])
		require.NoError(t, c.CapturePoint(i, dx, dy))
	}

	status, err := c.ComputeTransform(false)
	require.NoError(t, err)
	require.Equal(t, PhaseReady, status.Phase)
	require.Equal(t, "linear", status.TransformKind)

	dx, dy := deviceFor(960, 540)
	out := c.Apply(gaze.Sample{DeviceX: dx, DeviceY: dy, Confidence: 1})
	require.InDelta(t, 960, out.ScreenX, 1.0)
	require.InDelta(t, 540, out.ScreenY, 1.0)
}

func TestComputeTransformHomographyFitsExactCorrespondences(t *testing.T) {
	c := New(1920, 1080)
	// 4 corners plus three points on the diagonal (the center among them),
	// device coords a clean perspective-free
	// affine map so DLT should recover it with near-zero reprojection error.
	screenPoints := [][2]float64{{0, 0}, {1920, 0}, {0, 1080}, {1920, 1080}, {960, 540}, {480, 270}, {1440, 810}}
	require.NoError(t, c.BeginCalibration(targets(screenPoints)))

	deviceFor := func(sx, sy float64) (float64, float64) { return sx*0.05 + 5, sy*0.05 + 5 }
	for i, sp := range screenPoints {
		dx, dy := deviceFor(sp[0], sp[1])
		require.NoError(t, c.CapturePoint(i, dx, dy))
	}

	status, err := c.ComputeTransform(true)
	require.NoError(t, err)
	require.Equal(t, PhaseReady, status.Phase)
	require.Equal(t, "homography", status.TransformKind)

	dx, dy := deviceFor(960, 540)
	out := c.Apply(gaze.Sample{DeviceX: dx, DeviceY: dy, Confidence: 1})
	require.InDelta(t, 960, out.ScreenX, 5.0)
	require.InDelta(t, 540, out.ScreenY, 5.0)
}

func TestApplyBeforeReadyPassesThroughDeviceCoords(t *testing.T) {
	c := New(1920, 1080)
	out := c.Apply(gaze.Sample{DeviceX: 42, DeviceY: 84, Confidence: 1})
	require.Equal(t, 42.0, out.ScreenX)
	require.Equal(t, 84.0, out.ScreenY)
}

func TestApplyClampsToScreenBounds(t *testing.T) {
	c := New(1920, 1080)
	screenPoints := [][2]float64{{0, 0}, {1920, 0}, {0, 1080}, {1920, 1080}}
	require.NoError(t, c.BeginCalibration(targets(screenPoints)))
	for i, sp := range screenPoints {
		require.NoError(t, c.CapturePoint(i, sp[0], sp[1]))
	}
	_, err := c.ComputeTransform(false)
	require.NoError(t, err)

	out := c.Apply(gaze.Sample{DeviceX: -500, DeviceY: 5000, Confidence: 1})
	require.Equal(t, 0.0, out.ScreenX)
	require.Equal(t, 1080.0, out.ScreenY)
}

func TestResetReturnsToIdle(t *testing.T) {
	c := New(1920, 1080)
	require.NoError(t, c.BeginCalibration(targets([][2]float64{{0, 0}, {1, 0}, {0, 1}, {1, 1}})))
	c.Reset()
	status := c.GetStatus()
	require.Equal(t, PhaseIdle, status.Phase)
	require.Equal(t, 0, status.TotalPoints)
}
