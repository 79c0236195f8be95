package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ganzin/gazeengine/internal/config"
	"github.com/ganzin/gazeengine/internal/gaze/intake"
	"github.com/ganzin/gazeengine/internal/gaze/session"
)

// newStreamingTestServer is like newTestServer but its source actually
// emits samples, for tests exercising live subscriber fan-out.
func newStreamingTestServer(rateHz float64, count int) *Server {
	return NewServer(session.NewRegistry(), config.EmptyTuningConfig(), nil, "", func() intake.SampleSource {
		return intake.NewSyntheticMockSource(rateHz, count)
	})
}

// newTestServer builds a Server with no database, backed by a 60 Hz
// synthetic mock source (no count given, so it produces its default 600
// samples once a session starts) — enough for every handler test in
// this package to start a session without a real device.
func newTestServer() *Server {
	return NewServer(session.NewRegistry(), config.EmptyTuningConfig(), nil, "", func() intake.SampleSource {
		return intake.NewSyntheticMockSource(60, 0)
	})
}

func doJSON(t *testing.T, mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	return w
}

func TestServer_ServeMux_IsStableAcrossCalls(t *testing.T) {
	s := newTestServer()
	require.Same(t, s.ServeMux(), s.ServeMux())
}

func TestServer_ActiveSession_NoneStarted(t *testing.T) {
	s := newTestServer()
	_, err := s.activeSession()
	require.Error(t, err)
}

func TestServer_Meta_RoundTrip(t *testing.T) {
	s := newTestServer()
	now := time.Now()
	s.putMeta("abc", sessionMeta{StartedAt: now, StudentName: "Sam"})
	m := s.getMeta("abc")
	require.Equal(t, "Sam", m.StudentName)
	s.removeMeta("abc")
	require.Zero(t, s.getMeta("abc"))
}
