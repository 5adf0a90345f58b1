package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/plantcare/internal/docstore"
	"github.com/dukerupert/plantcare/internal/household"
	"github.com/dukerupert/plantcare/internal/identity"
	"github.com/dukerupert/plantcare/internal/plant"
)

// maxBodySize bounds JSON request bodies.
const maxBodySize = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, household.ErrNotMember):
		return http.StatusForbidden
	case errors.Is(err, identity.ErrInvalidCredentials),
		errors.Is(err, identity.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, identity.ErrEmailTaken),
		errors.Is(err, plant.ErrTooEarly):
		return http.StatusConflict
	case errors.Is(err, household.ErrBlankName),
		errors.Is(err, household.ErrInvalidJoinCode),
		errors.Is(err, plant.ErrBlankName),
		errors.Is(err, plant.ErrInvalidWateringDays),
		errors.Is(err, plant.ErrOwnership),
		errors.Is(err, identity.ErrInvalidEmail),
		errors.Is(err, identity.ErrWeakPassword),
		errors.Is(err, identity.ErrBlankUsername):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError writes err with its mapped status. Unexpected errors are
// logged and hidden behind a generic message.
func writeDomainError(w http.ResponseWriter, logger *slog.Logger, action string, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error(action, "error", err)
		writeError(w, status, "failed to "+action)
		return
	}
	writeError(w, status, err.Error())
}

// partialWarning describes a write sequence that stopped part way, or "".
func partialWarning(err error) string {
	if err != nil && errors.Is(err, docstore.ErrPartial) {
		return err.Error()
	}
	return ""
}
