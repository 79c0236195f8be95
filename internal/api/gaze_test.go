package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHandleGazeCurrent_NoActiveSession(t *testing.T) {
	s := newTestServer()
	w := doJSON(t, s.ServeMux(), http.MethodGet, "/api/gaze/current", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleGazeCurrent_ReturnsLatestSnapshot(t *testing.T) {
	s := newTestServer()
	startSession(t, s, `{"session_id":"sess-gaze"}`)

	w := doJSON(t, s.ServeMux(), http.MethodGet, "/api/gaze/current", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body snapshotBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
}

func TestHandleGazeStream_PingThenData(t *testing.T) {
	s := newStreamingTestServer(200, 50)
	startSession(t, s, `{"session_id":"sess-stream"}`)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	r := httptest.NewRequest(http.MethodGet, "/api/gaze/stream", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	s.ServeMux().ServeHTTP(w, r)

	body := w.Body.String()
	require.True(t, strings.Contains(body, ": ping"), body)
	require.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	require.True(t, strings.Contains(body, "data: "), body)
}
