package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dukerupert/plantcare/internal/careinfo"
	"github.com/dukerupert/plantcare/internal/config"
	"github.com/dukerupert/plantcare/internal/database"
	"github.com/dukerupert/plantcare/internal/docstore"
	"github.com/dukerupert/plantcare/internal/identify"
	"github.com/dukerupert/plantcare/internal/imagestore"
	"github.com/dukerupert/plantcare/internal/logging"
	"github.com/dukerupert/plantcare/internal/push"
	"github.com/dukerupert/plantcare/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load .env file", "error", err)
	}

	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	docs, closeDocs, err := openDocStore(ctx, cfg, db, logger)
	if err != nil {
		slog.Error("failed to open document store", "backend", cfg.DocStore, "error", err)
		os.Exit(1)
	}
	defer closeDocs()

	advisor, closeCache := newAdvisor(ctx, cfg, logger)
	defer closeCache()

	uploader, err := newUploader(cfg)
	if err != nil {
		slog.Error("failed to configure image storage", "backend", cfg.ImageBackend, "error", err)
		os.Exit(1)
	}

	var pushSvc *push.Service
	if cfg.PushEnabled() {
		pushSvc = push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, "")
	} else {
		slog.Info("push notifications disabled, VAPID keys not set")
	}

	srv := server.New(server.Deps{
		DB:               db,
		Docs:             docs,
		Advisor:          advisor,
		Identifier:       identify.NewClient(cfg.PlantNetAPIKey, cfg.PlantNetURL),
		Uploader:         uploader,
		PushService:      pushSvc,
		SessionTTL:       cfg.SessionTTL,
		ReminderInterval: cfg.ReminderInterval,
		AllowedOrigins:   cfg.AllowedOrigins,
	}, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if sched := srv.PushScheduler(); sched != nil {
		sched.Start(ctx)
		defer sched.Stop()
		slog.Info("reminder scheduler started", "interval", cfg.ReminderInterval)
	}

	// Background cleanup goroutine
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					slog.Error("cleanup expired sessions", "error", err)
				} else if n > 0 {
					slog.Info("cleaned up expired sessions", "count", n)
				}
				srv.RateLimiter().Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		slog.Info("plantcare starting", "addr", ":"+cfg.Port, "docstore", cfg.DocStore, "images", cfg.ImageBackend)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	srv.Hub().CloseAll()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// openDocStore returns the configured document store and a function that
// releases it.
func openDocStore(ctx context.Context, cfg *config.Config, db *sql.DB, logger *slog.Logger) (docstore.Store, func(), error) {
	switch cfg.DocStore {
	case "", "sqlite":
		return docstore.NewSQLiteStore(db, logger), func() {}, nil
	case "mongo":
	default:
		return nil, nil, fmt.Errorf("unknown docstore backend %q", cfg.DocStore)
	}

	client, mdb, err := docstore.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(dctx); err != nil {
			slog.Error("disconnect mongo", "error", err)
		}
	}
	return docstore.NewMongoStore(mdb, logger), closeFn, nil
}

// newAdvisor builds the care advisor. The species service and the Redis cache
// are optional; a cache that cannot be reached is skipped.
func newAdvisor(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*careinfo.Advisor, func()) {
	var remote careinfo.Remote
	if cfg.CareDataURL != "" {
		remote = careinfo.NewSpeciesClient(cfg.CareDataURL, cfg.CareDataAPIKey)
	}

	var cache careinfo.Cache
	closeFn := func() {}
	if cfg.RedisURI != "" {
		client, err := careinfo.ConnectRedis(ctx, cfg.RedisURI)
		if err != nil {
			slog.Warn("care cache unavailable", "error", err)
		} else {
			cache = careinfo.NewRedisCache(client, careinfo.DefaultCacheTTL)
			closeFn = func() { client.Close() }
		}
	}

	return careinfo.NewAdvisor(careinfo.DefaultTable(), remote, cache, logger), closeFn
}

// newUploader returns the configured photo store, or nil when uploads are
// disabled.
func newUploader(cfg *config.Config) (imagestore.Uploader, error) {
	switch cfg.ImageBackend {
	case "s3":
		return imagestore.NewS3Store(imagestore.S3Config{
			Endpoint:      cfg.S3.Endpoint,
			Bucket:        cfg.S3.Bucket,
			Region:        cfg.S3.Region,
			AccessKey:     cfg.S3.AccessKey,
			SecretKey:     cfg.S3.SecretKey,
			PublicBaseURL: cfg.S3.PublicBaseURL,
		})
	case "cloudinary":
		return imagestore.NewCloudinaryStore(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret)
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown image backend %q", cfg.ImageBackend)
	}
}
