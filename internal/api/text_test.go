package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleTextUpload_CountsWordsAndChars(t *testing.T) {
	s := newTestServer()
	w := doJSON(t, s.ServeMux(), http.MethodPost, "/api/text/upload",
		`{"title":"Sample Passage","body":"the quick brown fox"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp textUploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 4, resp.WordCount)
	require.Equal(t, len("the quick brown fox"), resp.CharCount)
}

func TestHandleTextCreateAOIs_BulkRegistersAndRejectsBadKind(t *testing.T) {
	s := newTestServer()
	startSession(t, s, `{"session_id":"sess-text-aois"}`)

	w := doJSON(t, s.ServeMux(), http.MethodPost, "/api/text/create-aois", `{"aois":[
		{"id":"v1","kind":"vocabulary","text":"ecosystem","x":0,"y":0,"width":80,"height":20},
		{"id":"c1","kind":"content","x":0,"y":30,"width":400,"height":20}
	]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	listW := doJSON(t, s.ServeMux(), http.MethodGet, "/api/aoi/list", "")
	var list []interface{}
	require.NoError(t, json.Unmarshal(listW.Body.Bytes(), &list))
	require.Len(t, list, 2)

	badW := doJSON(t, s.ServeMux(), http.MethodPost, "/api/text/create-aois",
		`{"aois":[{"id":"bad","kind":"nonsense","x":0,"y":0,"width":1,"height":1}]}`)
	require.Equal(t, http.StatusBadRequest, badW.Code)
}

func TestHandleVocabularyHits_EmptyInitially(t *testing.T) {
	s := newTestServer()
	startSession(t, s, `{"session_id":"sess-vocab-hits"}`)

	w := doJSON(t, s.ServeMux(), http.MethodGet, "/api/text/vocabulary-hits", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string][]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Empty(t, body["vocabulary_hits"])
}
