package calibration

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/ganzin/gazeengine/internal/gazeerr"
)

// reprojectionThresholdPx is the RANSAC inlier tolerance: a candidate
// homography must place a point's reprojection within this many pixels
// of its captured screen target to count as an inlier.
const reprojectionThresholdPx = 5.0

// minInlierRatio is the minimum fraction of points a RANSAC model must
// explain before it's accepted over the linear fallback.
const minInlierRatio = 0.5

const ransacIterations = 200

// homographyTransform is a 3x3 projective transform solved by direct
// linear transform (DLT): [sx, sy, s]^T = H * [dx, dy, 1]^T.
type homographyTransform struct {
	h [9]float64
}

func (t *homographyTransform) Kind() string { return "homography" }

func (t *homographyTransform) Apply(deviceX, deviceY float64) (screenX, screenY float64) {
	h := t.h
	w := h[6]*deviceX + h[7]*deviceY + h[8]
	if math.Abs(w) < 1e-8 {
		// Degenerate point under this projection; treat as a pass-through
		// rather than dividing by ~0 (spec.md §9).
		return deviceX, deviceY
	}
	screenX = (h[0]*deviceX + h[1]*deviceY + h[2]) / w
	screenY = (h[3]*deviceX + h[4]*deviceY + h[5]) / w
	return screenX, screenY
}

// solveHomographyRANSAC fits a homography robust to a handful of bad
// captures: it repeatedly solves DLT on random 4-point subsets, scores
// each by inlier count under reprojectionThresholdPx, then refits DLT on
// the winning subset's full inlier set. Returns an error (triggering the
// linear fallback) if no sample achieves minInlierRatio.
func solveHomographyRANSAC(points []Point) (*homographyTransform, error) {
	if len(points) < 4 {
		return nil, gazeerr.ErrInsufficientPoints
	}

	var best *homographyTransform
	bestInliers := 0
	var bestInlierSet []Point

	n := len(points)
	for iter := 0; iter < ransacIterations; iter++ {
		subset := sampleFour(points, n)
		h, err := solveDLT(subset)
		if err != nil {
			continue
		}
		inliers := inlierSet(h, points)
		if len(inliers) > bestInliers {
			bestInliers = len(inliers)
			best = h
			bestInlierSet = inliers
		}
	}

	if best == nil || float64(bestInliers)/float64(n) < minInlierRatio {
		return nil, fmt.Errorf("%w: best RANSAC model explains %d/%d points", gazeerr.ErrTransformDegenerate, bestInliers, n)
	}

	refit, err := solveDLT(bestInlierSet)
	if err != nil {
		return best, nil
	}
	return refit, nil
}

func sampleFour(points []Point, n int) []Point {
	idx := rand.Perm(n)[:4]
	out := make([]Point, 4)
	for i, j := range idx {
		out[i] = points[j]
	}
	return out
}

func inlierSet(h *homographyTransform, points []Point) []Point {
	inliers := make([]Point, 0, len(points))
	for _, p := range points {
		sx, sy := h.Apply(p.DeviceX, p.DeviceY)
		dx, dy := sx-p.ScreenX, sy-p.ScreenY
		if math.Hypot(dx, dy) <= reprojectionThresholdPx {
			inliers = append(inliers, p)
		}
	}
	return inliers
}

// solveDLT solves the homography via the normal direct linear transform:
// build the 2n x 8 design matrix for [sx,sy] = H(dx,dy)/w with h33
// fixed to 1, and solve the resulting least-squares system.
func solveDLT(points []Point) (*homographyTransform, error) {
	n := len(points)
	if n < 4 {
		return nil, gazeerr.ErrInsufficientPoints
	}

	a := mat.NewDense(2*n, 8, nil)
	b := mat.NewDense(2*n, 1, nil)
	for i, p := range points {
		dx, dy, sx, sy := p.DeviceX, p.DeviceY, p.ScreenX, p.ScreenY
		a.SetRow(2*i, []float64{dx, dy, 1, 0, 0, 0, -dx * sx, -dy * sx})
		b.Set(2*i, 0, sx)
		a.SetRow(2*i+1, []float64{0, 0, 0, dx, dy, 1, -dx * sy, -dy * sy})
		b.Set(2*i+1, 0, sy)
	}

	var x mat.Dense
	if err := x.Solve(a, b); err != nil {
		return nil, fmt.Errorf("%w: %v", gazeerr.ErrSingularSystem, err)
	}

	return &homographyTransform{h: [9]float64{
		x.At(0, 0), x.At(1, 0), x.At(2, 0),
		x.At(3, 0), x.At(4, 0), x.At(5, 0),
		x.At(6, 0), x.At(7, 0), 1,
	}}, nil
}
