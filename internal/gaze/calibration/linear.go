package calibration

import "math"

// linearTransform maps each axis independently: screenX = scaleX*deviceX
// + offsetX, and likewise for Y. Cheaper and more robust than a
// homography when only a handful of points are captured or the device
// geometry is nearly planar-degenerate on one axis.
type linearTransform struct {
	scaleX, offsetX float64
	scaleY, offsetY float64
}

func (t *linearTransform) Kind() string { return "linear" }

func (t *linearTransform) Apply(deviceX, deviceY float64) (screenX, screenY float64) {
	return t.scaleX*deviceX + t.offsetX, t.scaleY*deviceY + t.offsetY
}

// solveLinear fits scaleX/offsetX and scaleY/offsetY from the device/
// screen extremes on each axis independently. An axis whose device range
// is degenerate (every capture landed at the same device coordinate)
// falls back to the identity on that axis rather than dividing by zero.
func solveLinear(points []Point) *linearTransform {
	minDX, maxDX := points[0].DeviceX, points[0].DeviceX
	minDY, maxDY := points[0].DeviceY, points[0].DeviceY
	minSXatMinDX, maxSXatMaxDX := points[0].ScreenX, points[0].ScreenX
	minSYatMinDY, maxSYatMaxDY := points[0].ScreenY, points[0].ScreenY

	for _, p := range points {
		if p.DeviceX < minDX {
			minDX, minSXatMinDX = p.DeviceX, p.ScreenX
		}
		if p.DeviceX > maxDX {
			maxDX, maxSXatMaxDX = p.DeviceX, p.ScreenX
		}
		if p.DeviceY < minDY {
			minDY, minSYatMinDY = p.DeviceY, p.ScreenY
		}
		if p.DeviceY > maxDY {
			maxDY, maxSYatMaxDY = p.DeviceY, p.ScreenY
		}
	}

	t := &linearTransform{scaleX: 1, scaleY: 1}

	const epsilon = 1e-6
	if math.Abs(maxDX-minDX) > epsilon {
		t.scaleX = (maxSXatMaxDX - minSXatMinDX) / (maxDX - minDX)
		t.offsetX = minSXatMinDX - t.scaleX*minDX
	}
	if math.Abs(maxDY-minDY) > epsilon {
		t.scaleY = (maxSYatMaxDY - minSYatMinDY) / (maxDY - minDY)
		t.offsetY = minSYatMinDY - t.scaleY*minDY
	}
	return t
}
