// Package response writes JSON bodies and maps domain errors to HTTP statuses.
package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/chris/stars-ledger/pkg/api"
	"github.com/chris/stars-ledger/pkg/catalog"
	"github.com/chris/stars-ledger/pkg/invoice"
	"github.com/chris/stars-ledger/pkg/settlement"
	"github.com/chris/stars-ledger/pkg/storage"
)

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// BadRequest writes a 400 with message.
func BadRequest(w http.ResponseWriter, message string) {
	JSON(w, http.StatusBadRequest, api.Error{Error: message})
}

// Status returns the HTTP status for err.
func Status(err error) int {
	var paramErr *api.InvalidParamFormatError
	switch {
	case errors.Is(err, storage.ErrAccountNotFound), errors.Is(err, storage.ErrIntentNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrInvalidTransition), errors.Is(err, storage.ErrDuplicateSettlement):
		return http.StatusConflict
	case errors.Is(err, settlement.ErrValidation),
		errors.Is(err, invoice.ErrInvalidRequest),
		errors.Is(err, catalog.ErrUnknownPackage),
		errors.Is(err, storage.ErrInvalidAmount),
		errors.As(err, &paramErr):
		return http.StatusBadRequest
	case errors.Is(err, invoice.ErrAccountBlocked), errors.Is(err, settlement.ErrSimulationDisabled):
		return http.StatusForbidden
	case errors.Is(err, invoice.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Error maps err to a status and writes it. Internal details are logged, not returned.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := Status(err)
	body := api.Error{Error: err.Error()}

	switch status {
	case http.StatusInternalServerError:
		slog.Log(r.Context(), slog.LevelError, "request failed", "path", r.URL.Path, "error", err)
		body.Error = "internal error"
	case http.StatusServiceUnavailable:
		slog.Log(r.Context(), slog.LevelWarn, "payment provider unavailable", "path", r.URL.Path, "error", err)
		body.Error = "payment provider is unavailable, please try again"
		body.Retry = true
	}

	JSON(w, status, body)
}
