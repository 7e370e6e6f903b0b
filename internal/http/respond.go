package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"fintrack/internal/core"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// validationErrs are the core sentinels surfaced as field-level 400s.
var validationErrs = []error{
	core.ErrInvalidAmount,
	core.ErrMissingDate,
	core.ErrInvalidDate,
	core.ErrMissingCategory,
	core.ErrInvalidTxType,
	core.ErrInvalidPeriod,
	core.ErrMissingUser,
	core.ErrEmptyName,
}

// writeError maps the domain error taxonomy to HTTP statuses. Overlap
// conflicts go out as 400 with the fixed contract message; unknown errors
// become opaque 500s so storage detail never leaks to clients.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrBudgetOverlap):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: core.ErrBudgetOverlap.Error()})
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case isValidationError(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		slog.ErrorContext(ctx, "Request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func isValidationError(err error) bool {
	for _, sentinel := range validationErrs {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// decodeJSON reads a bounded JSON body into dst, rejecting unknown garbage
// early with a 400-worthy error.
func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}
