package api

import (
	"fmt"
	"net/http"

	"tailscale.com/tsweb"

	"github.com/ganzin/gazeengine/internal/httputil"
)

// attachAdminRoutes wires diagnostic endpoints under /debug/, grounded
// on the teacher's serialmux.AttachAdminRoutes: tsweb.Debugger registers
// a linked index page, HandleFunc entries appear on it, HandleSilentFunc
// entries don't.
func (s *Server) attachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("sessions", "list every registered session and its state", func(w http.ResponseWriter, r *http.Request) {
		ids := s.registry.List()
		out := make([]map[string]interface{}, 0, len(ids))
		for _, id := range ids {
			sess, err := s.registry.Get(id)
			if err != nil {
				continue
			}
			stat := sess.Statistics()
			out = append(out, map[string]interface{}{
				"session_id":      id,
				"state":           stat.State,
				"total_samples":   stat.TotalSamples,
				"dropped_samples": stat.DroppedSamples,
			})
		}
		httputil.WriteJSONOK(w, out)
	})

	debug.HandleFunc("active-session", "show which session id is currently active", func(w http.ResponseWriter, r *http.Request) {
		s.activeMu.RLock()
		id := s.activeID
		s.activeMu.RUnlock()
		fmt.Fprintf(w, "%s\n", id)
	})

	debug.HandleSilentFunc("config", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, s.cfg.Clone())
	})
}
