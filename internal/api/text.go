package api

import (
	"net/http"

	"github.com/ganzin/gazeengine/internal/httputil"
)

type textUploadRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type textUploadResponse struct {
	Title      string `json:"title"`
	WordCount  int    `json:"word_count"`
	CharCount  int    `json:"char_count"`
}

// handleTextUpload accepts reading material metadata. The engine itself
// has no layout/typesetting stage (spec.md's Non-goals exclude a
// rendering pipeline) — this endpoint only records the text's shape so
// the caller's create-aois call can reference word/character counts
// when laying out vocabulary and content AOIs.
func (s *Server) handleTextUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req textUploadRequest
	if err := decodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, "invalid request body: "+err.Error())
		return
	}
	words := 0
	inWord := false
	for _, r := range req.Body {
		if r == ' ' || r == '\n' || r == '\t' {
			inWord = false
			continue
		}
		if !inWord {
			words++
			inWord = true
		}
	}
	httputil.WriteJSONOK(w, textUploadResponse{
		Title:     req.Title,
		WordCount: words,
		CharCount: len([]rune(req.Body)),
	})
}

type aoiSpec struct {
	ID     string  `json:"id"`
	Kind   string  `json:"kind"`
	Text   string  `json:"text"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type textCreateAOIsRequest struct {
	AOIs []aoiSpec `json:"aois"`
}

// handleTextCreateAOIs bulk-registers AOIs on the active session, one
// call replacing the per-rectangle POST /api/aoi/add loop a caller would
// otherwise need for laying out a whole page of vocabulary/content
// regions at once.
func (s *Server) handleTextCreateAOIs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req textCreateAOIsRequest
	if err := decodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, "invalid request body: "+err.Error())
		return
	}
	sess, err := s.activeSession()
	if err != nil {
		writeError(w, err)
		return
	}
	created := make([]interface{}, 0, len(req.AOIs))
	for _, spec := range req.AOIs {
		a, err := tierFromKind(spec.ID, spec.Kind, spec.Text, spec.X, spec.Y, spec.Width, spec.Height)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := sess.AOIs.Add(a); err != nil {
			writeError(w, err)
			return
		}
		created = append(created, a)
	}
	httputil.WriteJSONOK(w, map[string]interface{}{"created": created})
}

// handleVocabularyHits returns the active session's bounded ring of
// recent vocabulary hits (one entry per hit, not the deduplicated
// discoveries).
func (s *Server) handleVocabularyHits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	sess, err := s.activeSession()
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{"vocabulary_hits": sess.HitLog.VocabularyHits()})
}
