package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/chancery/internal/admissions"
	"github.com/starford/chancery/internal/apperr"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// writeServiceError maps service errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	var dup *admissions.DuplicateError
	switch {
	case errors.As(err, &dup):
		writeJSON(w, http.StatusConflict, errorBody(dup.Error()))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrCycleClosed):
		writeJSON(w, http.StatusConflict, errorBody(apperr.ErrCycleClosed.Error()))
	case errors.Is(err, apperr.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrDispatchBusy):
		writeJSON(w, http.StatusConflict, errorBody(apperr.ErrDispatchBusy.Error()))
	case errors.Is(err, apperr.ErrWaitlistEmpty):
		writeJSON(w, http.StatusConflict, errorBody(apperr.ErrWaitlistEmpty.Error()))
	case errors.Is(err, apperr.ErrDispatchFailed):
		writeJSON(w, http.StatusBadGateway, errorBody(apperr.ErrDispatchFailed.Error()))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

