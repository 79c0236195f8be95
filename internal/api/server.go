// Package api implements the engine's external interfaces: the HTTP/SSE
// control-and-telemetry surface and the raw-sample websocket ingestion
// path (spec.md §6). Grounded on the teacher's internal/api.Server — the
// ServeMux lazy-init-and-store pattern, the LoggingMiddleware wrapper,
// and the Start lifecycle are kept nearly verbatim; the route table and
// every handler are this domain's, not the teacher's radar/lidar ones.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ganzin/gazeengine/internal/config"
	"github.com/ganzin/gazeengine/internal/db"
	"github.com/ganzin/gazeengine/internal/gaze/intake"
	"github.com/ganzin/gazeengine/internal/gaze/session"
	"github.com/ganzin/gazeengine/internal/gazeerr"
)

// sessionMeta holds wall-clock/caller-supplied metadata Session itself
// doesn't track (it only knows a monotonic, sample-relative StartedAt).
// Keyed by session ID, populated at /api/session/start time.
type sessionMeta struct {
	StartedAt   time.Time
	StudentName string
	LessonTitle string
}

// Server wires the session registry, optional database, and tuning
// config into the HTTP/WS surface. One Server per process.
type Server struct {
	registry  *session.Registry
	cfg       *config.TuningConfig
	database  *db.DB
	dataDir   string
	newSource func() intake.SampleSource
	debugMode bool

	activeMu sync.RWMutex
	activeID string

	metaMu sync.Mutex
	meta   map[string]sessionMeta

	mux *http.ServeMux
}

// NewServer creates a Server. newSource selects the intake source a
// freshly-started session streams from (a real device, a mock/fixture
// source, or a push source for websocket-fed sessions); database and
// dataDir may be nil/empty to run without persistence.
func NewServer(registry *session.Registry, cfg *config.TuningConfig, database *db.DB, dataDir string, newSource func() intake.SampleSource) *Server {
	return &Server{
		registry:  registry,
		cfg:       cfg,
		database:  database,
		dataDir:   dataDir,
		newSource: newSource,
		meta:      make(map[string]sessionMeta),
	}
}

// setActive records id as the single "active session" the session-less
// endpoints (statistics, gaze stream/current, AOI, calibration) operate
// against, per spec.md §6.
func (s *Server) setActive(id string) {
	s.activeMu.Lock()
	s.activeID = id
	s.activeMu.Unlock()
}

// activeSession resolves the current active session, or
// gazeerr.ErrSessionNotFound if none has been started yet.
func (s *Server) activeSession() (*session.Session, error) {
	s.activeMu.RLock()
	id := s.activeID
	s.activeMu.RUnlock()
	if id == "" {
		return nil, fmt.Errorf("%w: no active session", gazeerr.ErrSessionNotFound)
	}
	return s.registry.Get(id)
}

func (s *Server) putMeta(id string, m sessionMeta) {
	s.metaMu.Lock()
	s.meta[id] = m
	s.metaMu.Unlock()
}

func (s *Server) getMeta(id string) sessionMeta {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	return s.meta[id]
}

func (s *Server) removeMeta(id string) {
	s.metaMu.Lock()
	delete(s.meta, id)
	s.metaMu.Unlock()
}

// newSessionID generates a session id via google/uuid when the caller
// doesn't supply one.
func newSessionID() string {
	return uuid.NewString()
}

// ServeMux returns the Server's http.ServeMux, creating and storing it
// on first call. Callers may fetch it via ServeMux() and register
// additional admin routes before Start — those routes are preserved
// since Start reuses the same stored mux (teacher's server.go pattern).
func (s *Server) ServeMux() *http.ServeMux {
	if s.mux != nil {
		return s.mux
	}
	mux := http.NewServeMux()

	mux.HandleFunc("/api/session/start", s.handleSessionStart)
	mux.HandleFunc("/api/session/stop", s.handleSessionStop)
	mux.HandleFunc("/api/session/statistics", s.handleSessionStatistics)

	mux.HandleFunc("/api/gaze/stream", s.handleGazeStream)
	mux.HandleFunc("/api/gaze/current", s.handleGazeCurrent)

	mux.HandleFunc("/api/aoi/add", s.handleAOIAdd)
	mux.HandleFunc("/api/aoi/list", s.handleAOIList)
	mux.HandleFunc("/api/aoi/hits", s.handleAOIHits)

	mux.HandleFunc("/api/calibration/start", s.handleCalibrationStart)
	mux.HandleFunc("/api/calibration/capture_point", s.handleCalibrationCapturePoint)
	mux.HandleFunc("/api/calibration/calculate", s.handleCalibrationCalculate)
	mux.HandleFunc("/api/calibration/status", s.handleCalibrationStatus)
	mux.HandleFunc("/api/calibration/camera_intrinsics", s.handleCameraIntrinsics)

	mux.HandleFunc("/api/text/upload", s.handleTextUpload)
	mux.HandleFunc("/api/text/create-aois", s.handleTextCreateAOIs)
	mux.HandleFunc("/api/text/vocabulary-hits", s.handleVocabularyHits)

	mux.HandleFunc("/api/config", s.handleConfig)

	mux.HandleFunc("/ws/sessions/", s.handleSessionWS)
	mux.HandleFunc("/ws/time-sync", s.handleTimeSyncWS)

	s.attachMetricsRoute(mux)
	s.attachAdminRoutes(mux)

	s.mux = mux
	return s.mux
}

// Start runs the HTTP server until ctx is cancelled, then shuts it down
// with a bounded grace period. Grounded on the teacher's Start, minus
// the static/SPA file serving this domain has no counterpart for.
func (s *Server) Start(ctx context.Context, listen string, devMode bool) error {
	s.debugMode = devMode
	mux := s.ServeMux()

	server := &http.Server{
		Addr:    listen,
		Handler: LoggingMiddleware(mux),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		log.Println("shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}
		log.Printf("HTTP server routine stopped")
		return nil
	case err := <-errCh:
		return err
	}
}
