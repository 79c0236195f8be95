package api

import (
	"fmt"
	"net/http"

	"github.com/ganzin/gazeengine/internal/gaze/session"
	"github.com/ganzin/gazeengine/internal/httputil"
)

// snapshotBody is the wire shape for session.Snapshot.
type snapshotBody struct {
	TsNs         int64   `json:"ts_ns"`
	DeviceX      float64 `json:"device_x"`
	DeviceY      float64 `json:"device_y"`
	ScreenX      float64 `json:"screen_x"`
	ScreenY      float64 `json:"screen_y"`
	Confidence   float64 `json:"confidence"`
	CurrentAOIID string  `json:"current_aoi_id,omitempty"`
	CogLoadScore float64 `json:"cog_load_score"`
	CogLoadLevel string  `json:"cog_load_level"`
}

func snapshotBodyFrom(snap session.Snapshot) snapshotBody {
	return snapshotBody{
		TsNs:         snap.TsNs,
		DeviceX:      snap.DeviceX,
		DeviceY:      snap.DeviceY,
		ScreenX:      snap.ScreenX,
		ScreenY:      snap.ScreenY,
		Confidence:   snap.Confidence,
		CurrentAOIID: snap.CurrentAOIID,
		CogLoadScore: snap.CogLoadScore,
		CogLoadLevel: string(snap.CogLoadLevel),
	}
}

// handleGazeStream serves the live snapshot feed as Server-Sent Events,
// grounded on the teacher's serialmux "tail" SSE handler: ping, then one
// "data: ..." frame per push, flushed immediately, exiting on request
// cancellation or subscriber channel close.
func (s *Server) handleGazeStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	sess, err := s.activeSession()
	if err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.InternalServerError(w, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	subscriberID := newSessionID()
	ch, unsubscribe := sess.Subscribe(subscriberID)
	defer unsubscribe()

	if _, err := w.Write([]byte(": ping\n\n")); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return
			}
			data, err := marshalSSE(snapshotBodyFrom(snap))
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// handleGazeCurrent returns the active session's most recent snapshot
// without subscribing.
func (s *Server) handleGazeCurrent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	sess, err := s.activeSession()
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, snapshotBodyFrom(sess.LatestSnapshot()))
}
