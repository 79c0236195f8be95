package api

import (
	"net/http"

	"github.com/ganzin/gazeengine/internal/gaze/calibration"
	"github.com/ganzin/gazeengine/internal/httputil"
)

type calibrationTarget struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type calibrationStartRequest struct {
	Targets []calibrationTarget `json:"targets"`
}

// handleCalibrationStart begins a new calibration pass against the
// active session, laying out the caller-supplied on-screen targets.
func (s *Server) handleCalibrationStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req calibrationStartRequest
	if err := decodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, "invalid request body: "+err.Error())
		return
	}
	sess, err := s.activeSession()
	if err != nil {
		writeError(w, err)
		return
	}
	targets := make([]struct{ X, Y float64 }, len(req.Targets))
	for i, t := range req.Targets {
		targets[i] = struct{ X, Y float64 }{X: t.X, Y: t.Y}
	}
	if err := sess.Calibration.BeginCalibration(targets); err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, statusBody(sess.Calibration.GetStatus()))
}

type calibrationCapturePointRequest struct {
	PointIndex int      `json:"point_index"`
	ScreenX    *float64 `json:"screen_x"`
	ScreenY    *float64 `json:"screen_y"`
}

type calibrationCapturePointResponse struct {
	calibrationStatusBody
	GazeCaptured bool `json:"gaze_captured"`
}

// handleCalibrationCapturePoint captures the active session's current
// device-space gaze reading for the given target index. screen_x/
// screen_y report where the UI actually rendered the target dot at
// capture time, overriding the layout BeginCalibration recorded for
// this index — the caller is the authority on what the subject was
// shown. gaze_captured in the response reports whether a live gaze
// sample had actually streamed in before this call: before the first
// sample arrives, LatestSnapshot returns a zero-value snapshot, and
// without this flag a caller couldn't tell a real (0,0) device reading
// from "no sample yet."
func (s *Server) handleCalibrationCapturePoint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req calibrationCapturePointRequest
	if err := decodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, "invalid request body: "+err.Error())
		return
	}
	sess, err := s.activeSession()
	if err != nil {
		writeError(w, err)
		return
	}
	latest := sess.LatestSnapshot()
	gazeCaptured := latest.TsNs != 0
	if req.ScreenX != nil && req.ScreenY != nil {
		sess.Calibration.SetTarget(req.PointIndex, *req.ScreenX, *req.ScreenY)
	}
	if err := sess.Calibration.CapturePoint(req.PointIndex, latest.DeviceX, latest.DeviceY); err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, calibrationCapturePointResponse{
		calibrationStatusBody: statusBody(sess.Calibration.GetStatus()),
		GazeCaptured:          gazeCaptured,
	})
}

type calibrationCalculateRequest struct {
	Method string `json:"method"`
}

type calibrationCalculateResponse struct {
	Status     string  `json:"status"`
	Method     string  `json:"method"`
	AccuracyPx float64 `json:"accuracy_px"`
}

// handleCalibrationCalculate solves the transform from every captured
// point. No literal transform matrix is ever returned — Transform's
// concrete types (homography/linear) expose no fields to serialize, by
// design: a caller only needs to know which method won and how accurate
// it turned out to be, not its internal parameters.
func (s *Server) handleCalibrationCalculate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req calibrationCalculateRequest
	if err := decodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, "invalid request body: "+err.Error())
		return
	}
	sess, err := s.activeSession()
	if err != nil {
		writeError(w, err)
		return
	}
	preferHomography := req.Method != "linear"
	status, err := sess.Calibration.ComputeTransform(preferHomography)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, calibrationCalculateResponse{
		Status:     string(status.Phase),
		Method:     status.TransformKind,
		AccuracyPx: status.AccuracyPx,
	})
}

// handleCalibrationStatus returns the active session's calibration
// progress and accuracy.
func (s *Server) handleCalibrationStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	sess, err := s.activeSession()
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, statusBody(sess.Calibration.GetStatus()))
}

type calibrationStatusBody struct {
	Phase          string  `json:"phase"`
	TotalPoints    int     `json:"total_points"`
	CapturedPoints int     `json:"captured_points"`
	TransformKind  string  `json:"transform_kind"`
	AccuracyPx     float64 `json:"accuracy_px"`
}

func statusBody(st calibration.Status) calibrationStatusBody {
	return calibrationStatusBody{
		Phase:          string(st.Phase),
		TotalPoints:    st.TotalPoints,
		CapturedPoints: st.CapturedPoints,
		TransformKind:  st.TransformKind,
		AccuracyPx:     st.AccuracyPx,
	}
}

type cameraIntrinsicsResponse struct {
	FocalLengthX float64 `json:"focal_length_x"`
	FocalLengthY float64 `json:"focal_length_y"`
	PrincipalX   float64 `json:"principal_x"`
	PrincipalY   float64 `json:"principal_y"`
	Source       string  `json:"source"`
}

// handleCameraIntrinsics returns the attached device's camera
// intrinsics, or the mock fallback with source: "mock" when no real
// device has reported any (spec.md §9(ii)).
func (s *Server) handleCameraIntrinsics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	sess, err := s.activeSession()
	if err != nil {
		writeError(w, err)
		return
	}
	intr, fromDevice := sess.CameraIntrinsics()
	source := "mock"
	if fromDevice {
		source = "device"
	}
	httputil.WriteJSONOK(w, cameraIntrinsicsResponse{
		FocalLengthX: intr.FocalLengthX,
		FocalLengthY: intr.FocalLengthY,
		PrincipalX:   intr.PrincipalX,
		PrincipalY:   intr.PrincipalY,
		Source:       source,
	})
}
