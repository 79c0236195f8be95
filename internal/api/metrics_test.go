package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetricsRoute_ExposesSessionGauges(t *testing.T) {
	s := newTestServer()
	startSession(t, s, `{"session_id":"sess-metrics"}`)

	w := doJSON(t, s.ServeMux(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, strings.Contains(w.Body.String(), "gazeengine_session_total_samples"), w.Body.String())
	require.True(t, strings.Contains(w.Body.String(), `session_id="sess-metrics"`), w.Body.String())
}

func TestMetricsRoute_EmptyRegistryStillServes(t *testing.T) {
	s := newTestServer()
	w := doJSON(t, s.ServeMux(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
}
