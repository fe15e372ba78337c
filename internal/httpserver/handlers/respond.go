package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/teslahub/internal/api"
	"github.com/MrSnakeDoc/teslahub/internal/domain"
	"github.com/MrSnakeDoc/teslahub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/teslahub/internal/logger"
	"github.com/MrSnakeDoc/teslahub/internal/relay"
)

// maxBodyBytes bounds every JSON request body. A full list hand-off is the
// largest payload.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, api.ErrorResponse{
		Error:  err.Error(),
		Reason: relay.Reason(err),
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// backendStatus maps a relay backend error to a status code. Validation
// errors are the caller's fault; anything unknown is the backend's.
func backendStatus(d deps.Deps, err error) int {
	switch {
	case errors.Is(err, relay.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, relay.ErrNotPending):
		return http.StatusGone
	case errors.Is(err, relay.ErrExists):
		return http.StatusConflict
	case errors.Is(err, relay.ErrWrongKind):
		return http.StatusUnprocessableEntity
	case domain.IsValidation(err):
		return http.StatusBadRequest
	default:
		d.Logger.Error("relay backend failure", logger.Error(err))
		return http.StatusBadGateway
	}
}
