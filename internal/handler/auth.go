package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/plantcare/internal/auth"
	"github.com/dukerupert/plantcare/internal/docstore"
	"github.com/dukerupert/plantcare/internal/identity"
	"github.com/dukerupert/plantcare/internal/middleware"
	"github.com/dukerupert/plantcare/internal/model"
)

// HouseholdLister lists the households a user belongs to.
type HouseholdLister interface {
	ListForUser(ctx context.Context, userID string) ([]model.Household, error)
}

type AuthHandler struct {
	identity   *identity.Service
	households HouseholdLister
	logger     *slog.Logger
}

func NewAuthHandler(svc *identity.Service, households HouseholdLister, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{identity: svc, households: households, logger: logger}
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Username  string `json:"username"`
	Household string `json:"household"`
}

type sessionResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expiresAt"`
	User      *model.User      `json:"user,omitempty"`
	Household *model.Household `json:"household,omitempty"`
	Warning   string           `json:"warning,omitempty"`
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, sess *model.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	res, err := h.identity.Register(r.Context(), req.Email, req.Password, req.Username, req.Household)
	if res == nil {
		writeDomainError(w, h.logger, "register", err)
		return
	}

	resp := sessionResponse{
		Token:     res.Session.Token,
		ExpiresAt: res.Session.ExpiresAt,
		User:      res.User,
		Household: res.Household,
	}
	if err != nil {
		// The account exists; only joining the household failed.
		h.logger.Warn("register: household step failed", "user_id", res.User.ID, "error", err)
		resp.Warning = err.Error()
	}

	setSessionCookie(w, r, res.Session)
	writeJSON(w, http.StatusCreated, resp)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	sess, err := h.identity.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeDomainError(w, h.logger, "sign in", err)
		return
	}

	setSessionCookie(w, r, sess)
	writeJSON(w, http.StatusOK, sessionResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt})
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.identity.SignOut(r.Context(), auth.Token(r.Context())); err != nil {
		h.logger.Error("sign out", "error", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}

type meResponse struct {
	User       *model.User       `json:"user"`
	Households []model.Household `json:"households"`
}

// Me handles GET /api/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	user, err := h.identity.Profile(r.Context(), userID)
	if errors.Is(err, docstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		writeDomainError(w, h.logger, "load profile", err)
		return
	}

	households, err := h.households.ListForUser(r.Context(), userID)
	if err != nil {
		writeDomainError(w, h.logger, "list households", err)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{User: user, Households: households})
}
