package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/plantcare/internal/auth"
	"github.com/dukerupert/plantcare/internal/docstore"
	"github.com/dukerupert/plantcare/internal/model"
	"github.com/dukerupert/plantcare/internal/plant"
)

// PlantFeeds opens live plant lists.
type PlantFeeds interface {
	Subscribe(ctx context.Context, userID, householdID string) (*plant.Feed, error)
}

// Households resolves a household for the membership check.
type Households interface {
	Get(ctx context.Context, id string) (*model.Household, error)
}

// Handler serves GET /ws/plants. Without household_id the connection streams
// the user's private plants; with it, the household's plants.
type Handler struct {
	hub            *Hub
	feeds          PlantFeeds
	households     Households
	originPatterns []string
	logger         *slog.Logger
}

// NewHandler creates the live feed handler. originPatterns limits the
// browser origins allowed to connect; empty allows same-origin only.
func NewHandler(hub *Hub, feeds PlantFeeds, households Households, originPatterns []string, logger *slog.Logger) *Handler {
	return &Handler{
		hub:            hub,
		feeds:          feeds,
		households:     households,
		originPatterns: originPatterns,
		logger:         logger.With("component", "websocket"),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		writeError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	householdID := r.URL.Query().Get("household_id")
	if householdID != "" {
		hh, err := h.households.Get(r.Context(), householdID)
		if errors.Is(err, docstore.ErrNotFound) {
			writeError(w, "household not found", http.StatusNotFound)
			return
		}
		if err != nil {
			h.logger.Error("load household", "household_id", householdID, "error", err)
			writeError(w, "internal error", http.StatusInternalServerError)
			return
		}
		if !hh.HasMember(userID) {
			writeError(w, "not a member of this household", http.StatusForbidden)
			return
		}
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	feed, err := h.feeds.Subscribe(ctx, userID, householdID)
	if err != nil {
		h.logger.Error("subscribe plants", "user_id", userID, "error", err)
		writeError(w, "internal error", http.StatusInternalServerError)
		return
	}

	conn, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		h.logger.Warn("accept", "error", err)
		feed.Close()
		return
	}

	h.logger.Debug("live feed opened", "user_id", userID, "household_id", householdID)
	NewClient(h.hub, conn, feed, householdID).Run(ctx)
	h.logger.Debug("live feed closed", "user_id", userID, "household_id", householdID)
}

func writeError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
