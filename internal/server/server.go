package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/plantcare/internal/careinfo"
	"github.com/dukerupert/plantcare/internal/docstore"
	"github.com/dukerupert/plantcare/internal/handler"
	"github.com/dukerupert/plantcare/internal/household"
	"github.com/dukerupert/plantcare/internal/identity"
	"github.com/dukerupert/plantcare/internal/imagestore"
	"github.com/dukerupert/plantcare/internal/middleware"
	"github.com/dukerupert/plantcare/internal/plant"
	"github.com/dukerupert/plantcare/internal/push"
	"github.com/dukerupert/plantcare/internal/store"
	ws "github.com/dukerupert/plantcare/internal/websocket"
)

// Deps are the collaborators built by main from configuration. Uploader and
// PushService may be nil.
type Deps struct {
	DB               *sql.DB
	Docs             docstore.Store
	Advisor          *careinfo.Advisor
	Identifier       handler.Identifier
	Uploader         imagestore.Uploader
	PushService      *push.Service
	SessionTTL       time.Duration
	ReminderInterval time.Duration
	AllowedOrigins   []string
}

type Server struct {
	hub            *ws.Hub
	authH          *handler.AuthHandler
	householdH     *handler.HouseholdHandler
	plantH         *handler.PlantHandler
	careH          *handler.CareHandler
	identifyH      *handler.IdentifyHandler
	pushH          *handler.PushHandler
	feedH          *ws.Handler
	identity       *identity.Service
	sessionStore   *store.SessionStore
	pushStore      *store.PushStore
	rateLimiter    *middleware.RateLimiter
	pushScheduler  *push.Scheduler
	allowedOrigins []string
	logger         *slog.Logger
}

func New(deps Deps, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger)

	accountStore := store.NewAccountStore(deps.DB)
	sessionStore := store.NewSessionStore(deps.DB, deps.SessionTTL)
	pushSt := store.NewPushStore(deps.DB)

	households := household.NewManager(deps.Docs, logger)
	plants := plant.NewManager(deps.Docs, logger)
	identitySvc := identity.NewService(accountStore, sessionStore, deps.Docs, households, logger)

	// A nil *push.Service must not end up as a non-nil Sender.
	var sender push.Sender
	if deps.PushService != nil {
		sender = deps.PushService
	}
	checker := push.NewDueChecker(plants, pushSt, sender, logger)

	var pushSched *push.Scheduler
	if sender != nil {
		pushSched = push.NewScheduler(checker, pushSt, deps.ReminderInterval, logger)
	}

	return &Server{
		hub:            hub,
		authH:          handler.NewAuthHandler(identitySvc, households, logger.With("component", "auth_handler")),
		householdH:     handler.NewHouseholdHandler(households, plants, logger.With("component", "household_handler")),
		plantH:         handler.NewPlantHandler(plants, households, deps.Advisor, logger.With("component", "plant_handler")),
		careH:          handler.NewCareHandler(deps.Advisor),
		identifyH:      handler.NewIdentifyHandler(deps.Identifier, deps.Uploader, deps.Advisor, logger.With("component", "identify_handler")),
		pushH:          handler.NewPushHandler(pushSt, deps.PushService, checker, logger.With("component", "push_handler")),
		feedH:          ws.NewHandler(hub, plants, households, deps.AllowedOrigins, logger),
		identity:       identitySvc,
		sessionStore:   sessionStore,
		pushStore:      pushSt,
		rateLimiter:    middleware.NewRateLimiter(middleware.DefaultAttemptLimit, middleware.DefaultAttemptWindow),
		pushScheduler:  pushSched,
		allowedOrigins: deps.AllowedOrigins,
		logger:         logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// PushScheduler returns the reminder scheduler, or nil when push is not
// configured.
func (s *Server) PushScheduler() *push.Scheduler {
	return s.pushScheduler
}

// Hub returns the live feed hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	limitAttempts := middleware.LimitAuthAttempts(s.rateLimiter)
	outerMux.Handle("POST /api/auth/register", limitAttempts(http.HandlerFunc(s.authH.Register)))
	outerMux.Handle("POST /api/auth/login", limitAttempts(http.HandlerFunc(s.authH.Login)))

	// Protected routes, wrapped with RequireAuth
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.identity)
	outerMux.Handle("/", authMiddleware(protectedMux))

	var h http.Handler = outerMux
	h = middleware.CORS(s.allowedOrigins)(h)
	return middleware.RequestLogger(s.logger.With("component", "http"))(h)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Session
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/me", s.authH.Me)

	// Households
	mux.HandleFunc("GET /api/households", s.householdH.List)
	mux.HandleFunc("POST /api/households", s.householdH.Create)
	mux.HandleFunc("POST /api/households/join", s.householdH.Join)
	mux.HandleFunc("GET /api/households/{id}", s.householdH.Get)
	mux.HandleFunc("POST /api/households/{id}/leave", s.householdH.Leave)
	mux.HandleFunc("DELETE /api/households/{id}", s.householdH.Delete)
	mux.HandleFunc("GET /api/households/{id}/activities", s.householdH.Activities)

	// Plants
	mux.HandleFunc("GET /api/plants", s.plantH.List)
	mux.HandleFunc("POST /api/plants", s.plantH.Create)
	mux.HandleFunc("POST /api/plants/identify", s.identifyH.Identify)
	mux.HandleFunc("PUT /api/plants/{id}", s.plantH.Update)
	mux.HandleFunc("DELETE /api/plants/{id}", s.plantH.Delete)
	mux.HandleFunc("POST /api/plants/{id}/water", s.plantH.Water)

	// Care information
	mux.HandleFunc("GET /api/care-info", s.careH.Get)

	// Push notifications and reminders
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
	mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
	mux.HandleFunc("POST /api/reminders/run", s.pushH.RunReminders)

	// Live feed
	mux.Handle("GET /ws/plants", s.feedH)
}
