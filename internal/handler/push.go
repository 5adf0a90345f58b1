package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/plantcare/internal/auth"
	"github.com/dukerupert/plantcare/internal/push"
	"github.com/dukerupert/plantcare/internal/store"
)

type PushHandler struct {
	pushStore *store.PushStore
	service   *push.Service
	checker   *push.DueChecker
	logger    *slog.Logger
}

// NewPushHandler creates the push handler. service may be nil when VAPID keys
// are not configured; subscriptions are then refused but the due check still
// reports which plants need water.
func NewPushHandler(ps *store.PushStore, svc *push.Service, checker *push.DueChecker, logger *slog.Logger) *PushHandler {
	return &PushHandler{pushStore: ps, service: svc, checker: checker, logger: logger}
}

type subscribeRequest struct {
	Endpoint   string `json:"endpoint"`
	P256dh     string `json:"p256dh"`
	Auth       string `json:"auth"`
	DeviceName string `json:"device_name"`
}

// Subscribe handles POST /api/push/subscribe
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeError(w, http.StatusServiceUnavailable, "push notifications are not configured")
		return
	}
	userID := auth.UserID(r.Context())

	var req subscribeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if req.Endpoint == "" || req.P256dh == "" || req.Auth == "" {
		writeError(w, http.StatusBadRequest, "endpoint, p256dh, and auth are required")
		return
	}

	sub, err := h.pushStore.CreateSubscription(userID, req.Endpoint, req.P256dh, req.Auth, req.DeviceName)
	if err != nil {
		h.logger.Error("create push subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}

	writeJSON(w, http.StatusCreated, sub)
}

// Unsubscribe handles DELETE /api/push/subscriptions/{id}
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.pushStore.DeleteSubscription(id, userID); err != nil {
		h.logger.Error("delete push subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete subscription")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListSubscriptions handles GET /api/push/subscriptions
func (h *PushHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.pushStore.ListByUser(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}
	if subs == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

// GetVAPIDKey handles GET /api/push/vapid-key
func (h *PushHandler) GetVAPIDKey(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeError(w, http.StatusServiceUnavailable, "push notifications are not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.service.VAPIDPublicKey()})
}

// RunReminders handles POST /api/reminders/run: the due check for the caller,
// on demand.
func (h *PushHandler) RunReminders(w http.ResponseWriter, r *http.Request) {
	res, err := h.checker.RunDueCheck(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("run due check", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check reminders")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
