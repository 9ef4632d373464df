package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT RESPONSE FORMAT:
// Every success wraps its payload in "data", every failure is a single
// human-readable string under "errors":
//
//	{"data": {"username": "test", "name": "test"}}
//	{"errors": "Username or password wrong"}
//
// The client only has to look at one key to know which case it got.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/user-accounts/internal/apperror"
)

// DataResponse is the envelope for every successful response.
type DataResponse struct {
	Data any `json:"data"`
}

// ErrorResponse is the envelope for every failed response.
type ErrorResponse struct {
	Errors string `json:"errors"`
}

const msgInternal = "An internal error occurred"

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status code must be set BEFORE the body is written. Once
// Encode calls w.Write(), the headers are on the wire and later changes are
// silently ignored.
func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// The status line is already sent, so logging is all that's left.
			logger.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeData sends 200 with {"data": payload}.
func writeData(w http.ResponseWriter, logger *slog.Logger, payload any) {
	writeJSON(w, logger, http.StatusOK, DataResponse{Data: payload})
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// ERROR MAPPING:
//
//	apperror.ErrValidation   → 400
//	apperror.ErrConflict     → 400 (a taken username is reported as a bad request)
//	apperror.ErrUnauthorized → 401
//	apperror.ErrNotFound     → 404
//	anything else            → 500, generic message
//
// The service layer never picks status codes; this is the only place that does.
//
// errors.As walks the whole chain, so an AppError wrapped by the service as
// fmt.Errorf("service/user: update: %w", err) is still found.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusBadRequest
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
		}

		if status != http.StatusInternalServerError {
			writeJSON(w, logger, status, ErrorResponse{Errors: appErr.Message})
			return
		}
	}

	// Unknown error: the raw message might contain SQL or file paths, so it
	// goes to the log and the client gets a generic 500.
	logger.Error("request failed", slog.String("error", err.Error()))
	writeJSON(w, logger, http.StatusInternalServerError, ErrorResponse{Errors: msgInternal})
}
