package api

import (
	"encoding/json"
	"net/http"

	"github.com/ganzin/gazeengine/internal/gazeerr"
	"github.com/ganzin/gazeengine/internal/httputil"
)

// errorBody is the response shape for every failed request: a
// human-readable message plus the stable code from spec.md §7's error
// taxonomy, so a caller can branch on code without parsing message text.
type errorBody struct {
	Error string       `json:"error"`
	Code  gazeerr.Code `json:"code"`
}

// writeError maps err to its HTTP status and stable code via gazeerr and
// writes the JSON error body.
func writeError(w http.ResponseWriter, err error) {
	code := gazeerr.CodeFor(err)
	status := gazeerr.HTTPStatus(code)
	httputil.WriteJSON(w, status, errorBody{Error: err.Error(), Code: code})
}

// marshalSSE marshals v compactly for embedding in an SSE "data:" line.
func marshalSSE(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}
