package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdminSessionsRoute_ListsRegisteredSessions(t *testing.T) {
	s := newTestServer()
	startSession(t, s, `{"session_id":"sess-admin"}`)

	w := doJSON(t, s.ServeMux(), http.MethodGet, "/debug/sessions", "")
	require.Equal(t, http.StatusOK, w.Code)

	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	require.Equal(t, "sess-admin", list[0]["session_id"])
}

func TestAdminActiveSessionRoute_ReportsActiveID(t *testing.T) {
	s := newTestServer()
	startSession(t, s, `{"session_id":"sess-active"}`)

	w := doJSON(t, s.ServeMux(), http.MethodGet, "/debug/active-session", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "sess-active")
}
