package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/plantcare/internal/auth"
	"github.com/dukerupert/plantcare/internal/careinfo"
	"github.com/dukerupert/plantcare/internal/household"
	"github.com/dukerupert/plantcare/internal/model"
	"github.com/dukerupert/plantcare/internal/plant"
)

type PlantHandler struct {
	plants     *plant.Manager
	households *household.Manager
	advisor    *careinfo.Advisor
	logger     *slog.Logger
}

func NewPlantHandler(plants *plant.Manager, households *household.Manager, advisor *careinfo.Advisor, logger *slog.Logger) *PlantHandler {
	return &PlantHandler{plants: plants, households: households, advisor: advisor, logger: logger}
}

// checkMember returns nil when userID belongs to the household.
func (h *PlantHandler) checkMember(ctx context.Context, householdID, userID string) error {
	hh, err := h.households.Get(ctx, householdID)
	if err != nil {
		return err
	}
	if !hh.HasMember(userID) {
		return household.ErrNotMember
	}
	return nil
}

// accessiblePlant loads the plant in the path if the caller may see it: it
// is theirs, or it belongs to one of their households. Anything else is
// reported as not found. It writes the error response and returns nil on
// failure.
func (h *PlantHandler) accessiblePlant(w http.ResponseWriter, r *http.Request) *model.Plant {
	userID := auth.UserID(r.Context())

	p, err := h.plants.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, h.logger, "load plant", err)
		return nil
	}

	switch {
	case p.IsShared():
		err = h.checkMember(r.Context(), *p.HouseholdID, userID)
	case p.OwnerID == nil || *p.OwnerID != userID:
		err = plant.ErrNotFound
	}
	if errors.Is(err, household.ErrNotMember) {
		err = plant.ErrNotFound
	}
	if err != nil {
		writeDomainError(w, h.logger, "load plant", err)
		return nil
	}
	return p
}

// List handles GET /api/plants?household_id=
func (h *PlantHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	householdID := r.URL.Query().Get("household_id")

	if householdID != "" {
		if err := h.checkMember(r.Context(), householdID, userID); err != nil {
			writeDomainError(w, h.logger, "list plants", err)
			return
		}
	}

	plants, err := h.plants.List(r.Context(), userID, householdID)
	if err != nil {
		writeDomainError(w, h.logger, "list plants", err)
		return
	}
	writeJSON(w, http.StatusOK, plants)
}

type createPlantRequest struct {
	Name         string   `json:"name"`
	CommonName   *string  `json:"commonName"`
	Confidence   *float64 `json:"confidence"`
	GbifURL      *string  `json:"gbifUrl"`
	ImageURL     *string  `json:"imageUrl"`
	HouseholdID  *string  `json:"householdId"`
	WateringDays int      `json:"wateringDays"`
}

// wateringDays picks the interval for a new plant: the requested one, else the
// care suggestion, else the default.
func (h *PlantHandler) wateringDays(ctx context.Context, req createPlantRequest) int {
	if req.WateringDays != 0 {
		return req.WateringDays
	}
	var common []string
	if req.CommonName != nil {
		common = append(common, *req.CommonName)
	}
	if h.advisor != nil {
		if s := h.advisor.Suggest(ctx, req.Name, common...); s != nil && s.Info.WateringDays > 0 {
			return s.Info.WateringDays
		}
	}
	return plant.DefaultWateringDays
}

// Create handles POST /api/plants. Without householdId the plant is private
// to the caller.
func (h *PlantHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req createPlantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	np := plant.NewPlant{
		Name:         req.Name,
		CommonName:   req.CommonName,
		Confidence:   req.Confidence,
		GbifURL:      req.GbifURL,
		ImageURL:     req.ImageURL,
		WateringDays: h.wateringDays(r.Context(), req),
	}
	if req.HouseholdID != nil && *req.HouseholdID != "" {
		if err := h.checkMember(r.Context(), *req.HouseholdID, userID); err != nil {
			writeDomainError(w, h.logger, "add plant", err)
			return
		}
		np.HouseholdID = req.HouseholdID
	} else {
		np.OwnerID = &userID
	}

	p, err := h.plants.Add(r.Context(), np)
	if err != nil {
		writeDomainError(w, h.logger, "add plant", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

type updatePlantRequest struct {
	Name         string `json:"name"`
	WateringDays int    `json:"wateringDays"`
}

// Update handles PUT /api/plants/{id}
func (h *PlantHandler) Update(w http.ResponseWriter, r *http.Request) {
	p := h.accessiblePlant(w, r)
	if p == nil {
		return
	}

	var req updatePlantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	updated, err := h.plants.Update(r.Context(), p, req.Name, req.WateringDays)
	if err != nil {
		writeDomainError(w, h.logger, "update plant", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/plants/{id}
func (h *PlantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p := h.accessiblePlant(w, r)
	if p == nil {
		return
	}

	if err := h.plants.Delete(r.Context(), p.ID); err != nil {
		writeDomainError(w, h.logger, "delete plant", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type waterResponse struct {
	Plant   *model.Plant `json:"plant"`
	Warning string       `json:"warning,omitempty"`
}

// Water handles POST /api/plants/{id}/water
func (h *PlantHandler) Water(w http.ResponseWriter, r *http.Request) {
	p := h.accessiblePlant(w, r)
	if p == nil {
		return
	}

	watered, err := h.plants.MarkWatered(r.Context(), p, auth.UserID(r.Context()))
	if errors.Is(err, plant.ErrTooEarly) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":            err.Error(),
			"nextWateringDate": p.NextWateringDate,
			"earliest":         plant.Threshold(p),
		})
		return
	}
	if watered == nil {
		writeDomainError(w, h.logger, "water plant", err)
		return
	}
	if err != nil {
		h.logger.Warn("watering activity not recorded", "plant_id", p.ID, "error", err)
	}
	writeJSON(w, http.StatusOK, waterResponse{Plant: watered, Warning: partialWarning(err)})
}
