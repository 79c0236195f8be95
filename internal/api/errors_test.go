package api

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ganzin/gazeengine/internal/gazeerr"
)

func TestWriteError_MapsCodeToStatusAndBody(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, gazeerr.ErrSessionNotFound)

	require.Equal(t, 404, w.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, gazeerr.CodeSessionNotFound, body.Code)
}
