package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/adibqt/LibroTrack/internal/config"
	"github.com/adibqt/LibroTrack/internal/database"
	"github.com/adibqt/LibroTrack/internal/database/memstore"
	"github.com/adibqt/LibroTrack/internal/database/pgstore"
	"github.com/adibqt/LibroTrack/internal/events"
	"github.com/adibqt/LibroTrack/internal/handlers"
	"github.com/adibqt/LibroTrack/internal/metrics"
	"github.com/adibqt/LibroTrack/internal/middleware"
	"github.com/adibqt/LibroTrack/internal/models"
	"github.com/adibqt/LibroTrack/internal/services"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	if err := run(logger); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server exited")
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	gin.SetMode(cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage
	var (
		store    database.Store
		reports  services.ReportQuerier
		dbHealth handlers.HealthChecker
	)
	switch cfg.Server.Store {
	case "memory":
		mem := memstore.New()
		seedDemo(mem)
		store, reports, dbHealth = mem, mem, mem
		slog.Warn("Using the in-memory store, data is lost on exit")
	default:
		db, err := database.New(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		reportStore := pgstore.NewReportStore(db.Pool)
		defer reportStore.Close()

		store, reports, dbHealth = pgstore.New(db.Pool), reportStore, db
	}

	// Redis is optional: without it the rate limiter is off, tokens cannot
	// be revoked, every instance sweeps and notifications stay in memory.
	var (
		redisClient   *redis.Client
		redisHealth   handlers.HealthChecker
		locker        services.Locker
		notifications services.NotificationQueue
	)
	if cfg.Redis.Enabled && cfg.Server.Store != "memory" {
		rc, err := database.NewRedis(cfg)
		if err != nil {
			return err
		}
		defer rc.Close()
		redisClient, redisHealth, locker = rc.Client, rc, rc
	}
	if cfg.Notifications.Enabled {
		if redisClient != nil {
			notifications = services.NewRedisNotificationQueue(redisClient, logger)
		} else {
			notifications = services.NewMemoryNotificationQueue()
		}
	}

	publisher, err := events.NewPublisher(cfg.Events, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			slog.Warn("Failed to close event publisher", "error", err)
		}
	}()

	m := metrics.New()

	policy, err := services.PolicyFromConfig(cfg.Lending)
	if err != nil {
		return err
	}

	opts := []services.Option{
		services.WithPublisher(publisher),
		services.WithMetrics(m),
		services.WithLogger(logger),
	}
	if notifications != nil {
		opts = append(opts, services.WithNotifications(notifications))
	}
	lifecycle := services.NewLifecycle(store, policy, opts...)

	// Use RSA keys if available, otherwise generate a fallback key
	jwtPrivateKey := cfg.JWT.PrivateKey
	if jwtPrivateKey == "" && cfg.JWT.PublicKey == "" {
		slog.Warn("No JWT keys configured, generating an ephemeral development key")
		jwtPrivateKey = getDefaultRSAPrivateKey()
	}
	authService, err := services.NewAuthService(
		jwtPrivateKey,
		cfg.JWT.PublicKey,
		time.Duration(cfg.JWT.ExpiryHours)*time.Hour,
		logger,
		redisClient,
	)
	if err != nil {
		return err
	}

	deps := handlers.RouterDeps{
		Loans:         lifecycle,
		Reservations:  lifecycle,
		Fines:         lifecycle,
		Catalog:       lifecycle,
		Reports:       services.NewReportService(reports),
		Notifications: notifications,
		Auth:          middleware.NewAuthMiddleware(authService),
		RateLimiter:   middleware.NewRateLimiter(redisClient),
		Metrics:       m,
		DB:            dbHealth,
		Redis:         redisHealth,
	}
	if redisClient != nil {
		deps.Tokens = authService
	}
	router := handlers.NewRouter(deps)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Server.Port
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sweeper := services.NewExpirySweeper(lifecycle, cfg.Lending.SweepInterval, locker, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting server", "port", port, "mode", cfg.Server.Mode, "store", cfg.Server.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// seedDemo loads a few members and titles so the in-memory mode is usable
func seedDemo(s *memstore.Store) {
	s.AddMember(models.Member{ID: 1, Username: "admin", FirstName: "Ada", LastName: "Admin"})
	s.AddMember(models.Member{ID: 2, Username: "librarian", FirstName: "Lena", LastName: "Shelf"})
	s.AddMember(models.Member{ID: 3, Username: "reader", FirstName: "Rae", LastName: "Reader", MaxBooksAllowed: 3})

	s.AddBook(models.Book{ISBN: "9780134190440", Title: "The Go Programming Language", TotalCopies: 3, AvailableCopies: 3})
	s.AddBook(models.Book{ISBN: "9781491941195", Title: "Concurrency in Go", TotalCopies: 1, AvailableCopies: 1})
	s.AddBook(models.Book{ISBN: "9780262033848", Title: "Introduction to Algorithms", TotalCopies: 2, AvailableCopies: 2})
}

// getDefaultRSAPrivateKey generates a default RSA private key for development
// In production, use proper RSA keys from configuration
func getDefaultRSAPrivateKey() string {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		slog.Error("Failed to generate RSA key", "error", err)
		os.Exit(1)
	}

	privateKeyPEM := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	}

	return string(pem.EncodeToMemory(privateKeyPEM))
}
