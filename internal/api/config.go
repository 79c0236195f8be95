package api

import (
	"net/http"

	"github.com/ganzin/gazeengine/internal/config"
	"github.com/ganzin/gazeengine/internal/httputil"
)

// handleConfig serves the live tuning configuration on GET and merges a
// partial patch into it on POST, per spec.md §6's live-tuning contract —
// the same TuningConfig JSON shape both configures the process at
// startup and is queried/patched while running.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, s.cfg.Clone())
	case http.MethodPost:
		patch := config.EmptyTuningConfig()
		if err := decodeJSON(r, patch); err != nil {
			httputil.BadRequest(w, "invalid request body: "+err.Error())
			return
		}
		if err := s.cfg.ApplyPatch(patch); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, s.cfg.Clone())
	default:
		httputil.MethodNotAllowed(w)
	}
}
