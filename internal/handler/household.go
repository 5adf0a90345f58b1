package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/plantcare/internal/auth"
	"github.com/dukerupert/plantcare/internal/household"
	"github.com/dukerupert/plantcare/internal/model"
	"github.com/dukerupert/plantcare/internal/plant"
)

type HouseholdHandler struct {
	households *household.Manager
	plants     *plant.Manager
	logger     *slog.Logger
}

func NewHouseholdHandler(households *household.Manager, plants *plant.Manager, logger *slog.Logger) *HouseholdHandler {
	return &HouseholdHandler{households: households, plants: plants, logger: logger}
}

type householdResponse struct {
	Household *model.Household `json:"household"`
	Warning   string           `json:"warning,omitempty"`
}

// memberHousehold loads the household in the path and checks the caller
// belongs to it. It writes the error response and returns nil on failure.
func (h *HouseholdHandler) memberHousehold(w http.ResponseWriter, r *http.Request) *model.Household {
	hh, err := h.households.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, h.logger, "load household", err)
		return nil
	}
	if !hh.HasMember(auth.UserID(r.Context())) {
		writeError(w, http.StatusForbidden, household.ErrNotMember.Error())
		return nil
	}
	return hh
}

// List handles GET /api/households
func (h *HouseholdHandler) List(w http.ResponseWriter, r *http.Request) {
	households, err := h.households.ListForUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeDomainError(w, h.logger, "list households", err)
		return
	}
	writeJSON(w, http.StatusOK, households)
}

type createHouseholdRequest struct {
	Name string `json:"name"`
}

// Create handles POST /api/households
func (h *HouseholdHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createHouseholdRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	hh, err := h.households.Create(r.Context(), req.Name, auth.UserID(r.Context()))
	if hh == nil {
		writeDomainError(w, h.logger, "create household", err)
		return
	}
	writeJSON(w, http.StatusCreated, householdResponse{Household: hh, Warning: partialWarning(err)})
}

type joinHouseholdRequest struct {
	Code string `json:"code"`
}

// Join handles POST /api/households/join
func (h *HouseholdHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req joinHouseholdRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	hh, err := h.households.JoinByCode(r.Context(), req.Code, auth.UserID(r.Context()))
	if hh == nil {
		writeDomainError(w, h.logger, "join household", err)
		return
	}
	writeJSON(w, http.StatusOK, householdResponse{Household: hh, Warning: partialWarning(err)})
}

// Get handles GET /api/households/{id}
func (h *HouseholdHandler) Get(w http.ResponseWriter, r *http.Request) {
	hh := h.memberHousehold(w, r)
	if hh == nil {
		return
	}
	writeJSON(w, http.StatusOK, hh)
}

// Leave handles POST /api/households/{id}/leave
func (h *HouseholdHandler) Leave(w http.ResponseWriter, r *http.Request) {
	hh := h.memberHousehold(w, r)
	if hh == nil {
		return
	}

	err := h.households.Leave(r.Context(), hh.ID, auth.UserID(r.Context()))
	if warning := partialWarning(err); warning != "" {
		h.logger.Warn("leave household incomplete", "household_id", hh.ID, "error", err)
		writeJSON(w, http.StatusOK, map[string]string{"warning": warning})
		return
	}
	if err != nil {
		writeDomainError(w, h.logger, "leave household", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /api/households/{id}
func (h *HouseholdHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	err := h.households.Delete(r.Context(), id, auth.UserID(r.Context()))
	if warning := partialWarning(err); warning != "" {
		h.logger.Warn("delete household incomplete", "household_id", id, "error", err)
		writeJSON(w, http.StatusOK, map[string]string{"warning": warning})
		return
	}
	if err != nil {
		writeDomainError(w, h.logger, "delete household", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Activities handles GET /api/households/{id}/activities
func (h *HouseholdHandler) Activities(w http.ResponseWriter, r *http.Request) {
	hh := h.memberHousehold(w, r)
	if hh == nil {
		return
	}

	activities, err := h.plants.Activities(r.Context(), hh.ID)
	if err != nil {
		writeDomainError(w, h.logger, "list activities", err)
		return
	}
	writeJSON(w, http.StatusOK, activities)
}
