package session

import (
	"fmt"
	"sync"

	"github.com/ganzin/gazeengine/internal/config"
	"github.com/ganzin/gazeengine/internal/gaze/persistence"
	"github.com/ganzin/gazeengine/internal/gazeerr"
)

// Registry tracks every live Session by ID. An explicit, owned map —
// not a package-level global — per spec.md §9's design note rejecting
// the teacher's GetAnalysisRunManager-style singleton registry pattern.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Create constructs a new Session and adds it to the registry.
// Returns gazeerr.ErrSessionAlreadyRunning if id is already registered.
func (r *Registry) Create(id string, cfg *config.TuningConfig) (*Session, error) {
	return r.create(id, New(id, cfg))
}

// CreateWithPersistence is Create, additionally wiring the session's raw
// samples and events/hits to the given database sinks.
func (r *Registry) CreateWithPersistence(id string, cfg *config.TuningConfig, rawSink persistence.RawSampleSink, eventSink persistence.EventSink, hitSink persistence.HitSink) (*Session, error) {
	return r.create(id, NewWithPersistence(id, cfg, rawSink, eventSink, hitSink))
}

func (r *Registry) create(id string, s *Session) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[id]; exists {
		return nil, fmt.Errorf("%w: session %s already registered", gazeerr.ErrSessionAlreadyRunning, id)
	}
	r.sessions[id] = s
	return s, nil
}

// Get returns the session with the given ID.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", gazeerr.ErrSessionNotFound, id)
	}
	return s, nil
}

// Remove stops (if needed) and deregisters a session.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: session %s", gazeerr.ErrSessionNotFound, id)
	}
	delete(r.sessions, id)
	r.mu.Unlock()

	return s.Stop()
}

// List returns the IDs of every registered session.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}
