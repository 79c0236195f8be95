package api

import (
	"fmt"
	"net/http"

	"github.com/ganzin/gazeengine/internal/gaze/aoi"
	"github.com/ganzin/gazeengine/internal/gazeerr"
	"github.com/ganzin/gazeengine/internal/httputil"
)

// tierFromKind maps the wire "kind" string to an aoi.Tier constructor,
// matching the three tiers spec.md §4.3 defines.
func tierFromKind(id, kind, text string, x, y, w, h float64) (aoi.AOI, error) {
	switch kind {
	case "vocabulary", "vocab":
		return aoi.NewVocabAOI(id, text, x, y, w, h), nil
	case "content":
		return aoi.NewContentAOI(id, text, x, y, w, h), nil
	case "custom":
		return aoi.NewCustomAOI(id, text, x, y, w, h), nil
	default:
		return aoi.AOI{}, fmt.Errorf("%w: unknown aoi kind %q", gazeerr.ErrInvalidSample, kind)
	}
}

type aoiAddRequest struct {
	ID     string  `json:"id"`
	Kind   string  `json:"kind"`
	Text   string  `json:"text"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// handleAOIAdd adds one area-of-interest rectangle to the active
// session's index.
func (s *Server) handleAOIAdd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req aoiAddRequest
	if err := decodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, "invalid request body: "+err.Error())
		return
	}
	sess, err := s.activeSession()
	if err != nil {
		writeError(w, err)
		return
	}
	a, err := tierFromKind(req.ID, req.Kind, req.Text, req.X, req.Y, req.Width, req.Height)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := sess.AOIs.Add(a); err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, a)
}

// handleAOIList returns every AOI registered on the active session.
func (s *Server) handleAOIList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	sess, err := s.activeSession()
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, sess.AOIs.List())
}

// handleAOIHits returns the active session's full hit log and running
// per-AOI aggregates.
func (s *Server) handleAOIHits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	sess, err := s.activeSession()
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"hits":      sess.HitLog.All(),
		"aoi_stats": sess.HitLog.Stats(),
	})
}
