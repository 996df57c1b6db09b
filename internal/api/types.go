package api

import (
	"encoding/json"
	"net/http"

	"github.com/vantor/bucketscope/internal/errs"
)

type loginRequest struct {
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type acceptedResponse struct {
	Status string `json:"status"`
}

type removedResponse struct {
	Removed int `json:"removed"`
}

type presignResponse struct {
	URL       string `json:"url"`
	ExpiresIn string `json:"expires_in"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps a service-layer error onto a status code. The
// session store already folds its own backend failures into
// not-authenticated, so Unavailable here always means the upstream store.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errs.IsNotAuthenticated(err):
		writeError(w, http.StatusUnauthorized, "not authenticated")
	case errs.IsPermissionDenied(err):
		writeError(w, http.StatusForbidden, "permission denied")
	case errs.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not found")
	case errs.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errs.IsUnavailable(err), errs.IsTimeout(err):
		writeError(w, http.StatusBadGateway, "upstream unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
