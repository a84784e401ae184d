package handler

import (
	"encoding/json"
	"net/http"

	"github.com/sevigo/reposync/internal/core"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// writeCoreError maps a core.Kind-tagged error to the matching HTTP
// status.
func writeCoreError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch core.KindOf(err) {
	case core.KindValidation, core.KindConfig:
		status = http.StatusBadRequest
	case core.KindNotFound:
		status = http.StatusNotFound
	case core.KindUnauthorized:
		status = http.StatusUnauthorized
	case core.KindForbidden:
		status = http.StatusForbidden
	case core.KindNotReady:
		status = http.StatusConflict
	case core.KindRateLimited:
		status = http.StatusTooManyRequests
	case core.KindTimeout:
		status = http.StatusGatewayTimeout
	case core.KindCancelled:
		status = http.StatusRequestTimeout
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Code: string(core.KindOf(err))})
}
