// Package main is the entry point for the civic issue reporting server.
// It provides a REST API for citizen complaint submission and tracking, and
// for the administrative hierarchy that triages them.
//
// Architecture:
//   - Admins only see complaints inside their own administrative location
//   - Complaints escalate village -> block -> district -> state when they sit
//     unresolved at one level past the escalation threshold
//   - A background sweep applies escalations; replicas coordinate via Redis
//   - Every admin action is written to the activity log, whose Merkle root is
//     published for tamper detection
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/civicreport/civic-server/internal/app"
	"github.com/civicreport/civic-server/internal/config"
	"github.com/civicreport/civic-server/internal/handlers"
	"github.com/civicreport/civic-server/internal/logging"
	"github.com/civicreport/civic-server/internal/middleware"
	"github.com/civicreport/civic-server/internal/models"
)

func main() {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, "civic-server")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck
	sugar := logger.Sugar()

	sugar.Infow("Starting civic issue server",
		"port", cfg.Port,
		"env", cfg.Environment,
		"escalation_threshold", cfg.EscalationThreshold,
		"state_admin_sees_all", cfg.StateAdminSeesAllLocations,
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	a, err := app.New(ctx, cfg, sugar)
	if err != nil {
		sugar.Fatalf("Failed to initialise: %v", err)
	}
	defer a.Close()

	// Background workers: escalation sweep and audit Merkle tree
	go a.EscalationWorker.Start(ctx, cfg.EscalationSweepInterval)
	go a.IntegrityWorker.Start(ctx, time.Duration(cfg.MerkleRebuildInterval)*time.Minute)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      newRouter(ctx, cfg, a, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sugar.Infof("Server listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	sugar.Info("Shutting down gracefully...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorf("Forced shutdown: %v", err)
	}

	sugar.Info("Server stopped")
}

func newRouter(ctx context.Context, cfg *config.Config, a *app.App, logger *zap.Logger) http.Handler {
	sugar := logger.Sugar()

	var redisPinger handlers.Pinger
	if a.Locker != nil {
		redisPinger = a.Locker
	}

	authHandler := handlers.NewAuthHandler(a.Admins, sugar)
	adminHandler := handlers.NewAdminHandler(a.Admins, sugar)
	complaintHandler := handlers.NewComplaintHandler(a.Complaints, a.Activity, sugar)
	activityHandler := handlers.NewActivityHandler(a.Activity, sugar)
	escalationHandler := handlers.NewEscalationHandler(a.EscalationWorker, cfg.EscalationSweepInterval, sugar)
	geocodeHandler := handlers.NewGeocodeHandler(a.Geocoder, sugar)
	integrityHandler := handlers.NewIntegrityHandler(a.Merkle, sugar)
	healthHandler := handlers.NewHealthHandler(a.DB, redisPinger, a.Merkle, sugar)

	requireAdmin := middleware.RequireAdmin(a.Admins)
	canManage := middleware.RequirePermission(models.PermManageComplaints)
	canAnalyse := middleware.RequirePermission(models.PermViewAnalytics)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Reporter-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Merkle-Root", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.RateLimit(ctx, cfg.RateLimitRPM))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.Check)
		r.Get("/health/ready", healthHandler.Ready)

		// Citizen endpoints (public)
		r.Post("/reports", complaintHandler.Submit)
		r.Get("/reports/track/{publicId}", complaintHandler.Track)
		r.Get("/geocode/reverse", geocodeHandler.Reverse)
		r.Get("/stats/public", complaintHandler.PublicStats)

		r.Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)

			r.Route("/auth", func(r chi.Router) {
				r.Post("/logout", authHandler.Logout)
				r.Get("/profile", authHandler.Profile)
				r.Put("/profile", authHandler.UpdateProfile)
				r.Post("/change-password", authHandler.ChangePassword)
			})

			r.Route("/admins", func(r chi.Router) {
				r.With(middleware.RequirePermission(models.PermCreateSubAdmins)).Post("/", adminHandler.Create)
				r.Get("/", adminHandler.List)
				r.Get("/hierarchy", adminHandler.Hierarchy)
				r.Get("/{id}", adminHandler.Get)
				r.Put("/{id}", adminHandler.Update)
				r.Delete("/{id}", adminHandler.Delete)
				r.Get("/{id}/activity", activityHandler.ByAdmin(a.Admins))
			})

			r.Route("/complaints", func(r chi.Router) {
				r.Get("/", complaintHandler.List)
				r.With(canAnalyse).Get("/stats", complaintHandler.Stats)
				r.With(canAnalyse).Get("/trends", complaintHandler.Trends)
				r.With(canAnalyse).Get("/location-stats", complaintHandler.LocationStats)
				r.With(canAnalyse).Get("/export", complaintHandler.Export)
				r.Get("/{id}", complaintHandler.Get)
				r.Get("/{id}/activity", complaintHandler.Activity)
				r.With(canManage).Put("/{id}/status", complaintHandler.UpdateStatus)
				r.With(canManage).Put("/{id}/assign", complaintHandler.Assign)
				r.With(canManage).Post("/{id}/escalate", complaintHandler.Escalate)
			})

			// State-wide operations
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleStateAdmin))
				r.Post("/escalations/run", escalationHandler.Run)
				r.Get("/activity/recent", activityHandler.Recent)
			})
		})

		// Integrity endpoints (Merkle tree over the activity log, public)
		r.Route("/integrity", func(r chi.Router) {
			r.Get("/root", integrityHandler.GetRoot)
			r.Get("/proof/{index}", integrityHandler.GetProof)
			r.Post("/verify", integrityHandler.Verify)
		})
	})

	return r
}
