package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/ganzin/gazeengine/internal/gaze/persistence"
	"github.com/ganzin/gazeengine/internal/gaze/session"
	"github.com/ganzin/gazeengine/internal/gazeerr"
	"github.com/ganzin/gazeengine/internal/httputil"
)

type sessionStartRequest struct {
	SessionID   string `json:"session_id,omitempty"`
	StudentName string `json:"student_name,omitempty"`
	LessonTitle string `json:"lesson_title,omitempty"`
}

type sessionStartResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// decodeJSON decodes r's body into v, tolerating an empty body (every
// field then keeps its zero value).
func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// handleSessionStart creates (generating an id if omitted) and starts a
// session against the server's configured source factory, records it as
// the active session, and persists its row if a database is wired.
func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req sessionStartRequest
	if err := decodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.SessionID == "" {
		req.SessionID = newSessionID()
	}

	var (
		sess *session.Session
		err  error
	)
	if s.database != nil {
		sess, err = s.registry.CreateWithPersistence(req.SessionID, s.cfg, s.database, s.database, s.database)
	} else {
		sess, err = s.registry.Create(req.SessionID, s.cfg)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	status, err := sess.Start(r.Context(), s.newSource())
	if err != nil {
		writeError(w, err)
		return
	}

	s.setActive(req.SessionID)
	s.putMeta(req.SessionID, sessionMeta{
		StartedAt:   time.Now(),
		StudentName: req.StudentName,
		LessonTitle: req.LessonTitle,
	})

	if s.database != nil {
		if err := s.database.InsertSession(r.Context(), req.SessionID, time.Now().UnixNano(),
			int(s.cfg.GetScreenWidthPx()), int(s.cfg.GetScreenHeightPx())); err != nil {
			httputil.InternalServerError(w, "record session: "+err.Error())
			return
		}
	}

	httputil.WriteJSONOK(w, sessionStartResponse{SessionID: req.SessionID, Status: string(status)})
}

type sessionStopRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

type sessionStopResponse struct {
	SessionID       string                    `json:"session_id"`
	ExportURI       string                    `json:"export_uri,omitempty"`
	FinalStatistics sessionStatisticsBody     `json:"final_statistics"`
	Export          persistence.SessionExport `json:"export"`
}

// handleSessionStop stops the named (or active, if omitted) session,
// builds its export document, writes it to disk if dataDir is
// configured, and returns both the export path and final statistics.
func (s *Server) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req sessionStopRequest
	if err := decodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, "invalid request body: "+err.Error())
		return
	}

	id := req.SessionID
	if id == "" {
		s.activeMu.RLock()
		id = s.activeID
		s.activeMu.RUnlock()
	}
	if id == "" {
		writeError(w, gazeerr.ErrSessionNotFound)
		return
	}

	sess, err := s.registry.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := sess.Stop(); err != nil {
		writeError(w, err)
		return
	}

	if s.database != nil {
		_ = s.database.MarkSessionStopped(context.Background(), id, time.Now().UnixNano())
	}

	export := sess.BuildExport()
	resp := sessionStopResponse{
		SessionID:       id,
		FinalStatistics: statisticsBody(sess.Statistics()),
		Export:          export,
	}
	if s.dataDir != "" {
		path := persistence.ExportPath(s.dataDir, id, time.Now().Unix())
		if err := persistence.Export(path, s.dataDir, export); err != nil {
			httputil.InternalServerError(w, "write session export: "+err.Error())
			return
		}
		resp.ExportURI = path
	}

	s.removeMeta(id)
	httputil.WriteJSONOK(w, resp)
}

// sessionStatisticsBody is the wire shape for session.Statistics — a
// dedicated struct (rather than returning session.Statistics directly)
// so the JSON keys are spec.md's snake_case contract regardless of the
// internal type's Go-exported field names.
type sessionStatisticsBody struct {
	State                 string  `json:"state"`
	TotalSamples          int64   `json:"total_samples"`
	DroppedSamples        int64   `json:"dropped_samples"`
	HitCount              int     `json:"hit_count"`
	VocabularyDiscoveries int     `json:"vocabulary_discoveries"`
	AchievementPoints     int     `json:"achievement_points"`
	CogLoadScore          float64 `json:"cog_load_score"`
	CogLoadLevel          string  `json:"cog_load_level"`
	PersistenceDegraded   bool    `json:"persistence_degraded"`
}

func statisticsBody(stat session.Statistics) sessionStatisticsBody {
	return sessionStatisticsBody{
		State:                 string(stat.State),
		TotalSamples:          stat.TotalSamples,
		DroppedSamples:        stat.DroppedSamples,
		HitCount:              stat.HitCount,
		VocabularyDiscoveries: stat.VocabularyDiscoveries,
		AchievementPoints:     stat.AchievementPoints,
		CogLoadScore:          stat.CogLoadScore,
		CogLoadLevel:          string(stat.CogLoadLevel),
		PersistenceDegraded:   stat.PersistenceDegraded,
	}
}

// handleSessionStatistics returns the active session's live aggregated
// counters.
func (s *Server) handleSessionStatistics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	sess, err := s.activeSession()
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, statisticsBody(sess.Statistics()))
}
