// Package app wires configuration, storage and services together. The HTTP
// server and the operator CLI share it.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/civicreport/civic-server/internal/access"
	"github.com/civicreport/civic-server/internal/auth"
	"github.com/civicreport/civic-server/internal/config"
	"github.com/civicreport/civic-server/internal/database"
	"github.com/civicreport/civic-server/internal/escalation"
	"github.com/civicreport/civic-server/internal/geocode"
	"github.com/civicreport/civic-server/internal/locker"
	"github.com/civicreport/civic-server/internal/services"
)

// App holds the long-lived dependencies of a process.
type App struct {
	Config *config.Config
	DB     *pgxpool.Pool

	// Redis and Locker are nil when Redis is unreachable; sweeps then run unlocked.
	Redis  *redis.Client
	Locker *locker.RedisLocker

	Geocoder    *geocode.Client
	Activity    *services.ActivityLogService
	Admins      *services.AdminService
	Complaints  *services.ComplaintService
	Escalations *services.EscalationService
	Merkle      *services.MerkleService

	EscalationWorker *services.EscalationWorker
	IntegrityWorker  *services.IntegrityWorker
}

// New connects to PostgreSQL (and Redis, best-effort) and builds every service.
func New(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*App, error) {
	db, err := database.NewPool(ctx, cfg.DatabaseURL, database.PoolOptions{
		MaxConns:        int32(cfg.DatabaseMaxConns),
		ApplicationName: "civic-server",
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("Database schema is up to date")
	}

	a := &App{Config: cfg, DB: db}
	a.connectRedis(ctx, logger)

	complaints := database.NewComplaintRepo(db)
	admins := database.NewAdminRepo(db)
	logs := database.NewActivityRepo(db)

	a.Geocoder = geocode.NewClient(cfg.GeocodeURL, cfg.GeocodeUserAgent, logger)
	scope := access.Scope{StateAdminSeesAllLocations: cfg.StateAdminSeesAllLocations}
	a.Activity = services.NewActivityLogService(logs, admins, scope, nil, logger)
	a.Admins = services.NewAdminService(admins, a.Activity, auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL), 0, nil, logger)
	a.Escalations = services.NewEscalationService(complaints, escalation.Policy{
		Threshold:         cfg.EscalationThreshold,
		ManualRequiresDue: cfg.EscalationManualRequiresDue,
	}, services.EscalationOptions{
		Workers:     cfg.EscalationWorkers,
		ItemTimeout: cfg.EscalationItemTimeout,
	}, logger)
	a.Complaints = services.NewComplaintService(services.ComplaintDeps{
		Complaints:  complaints,
		Admins:      admins,
		Activity:    a.Activity,
		Escalations: a.Escalations,
		Geocoder:    a.Geocoder,
		Scope:       access.Scope{StateAdminSeesAllLocations: cfg.StateAdminSeesAllLocations},
		Options:     services.ComplaintOptions{AllowReopen: cfg.AllowStatusReopen},
		Logger:      logger,
	})
	a.Merkle = services.NewMerkleService(nil, logger)

	var sweepLock services.Locker
	if a.Locker != nil {
		sweepLock = a.Locker
	}
	a.EscalationWorker = services.NewEscalationWorker(a.Escalations, sweepLock, nil, logger)
	a.IntegrityWorker = services.NewIntegrityWorker(a.Merkle, a.Activity, logger)

	return a, nil
}

func (a *App) connectRedis(ctx context.Context, logger *zap.SugaredLogger) {
	if a.Config.RedisURL == "" {
		logger.Warn("REDIS_URL not set; escalation sweeps run without a cross-replica lock")
		return
	}
	client, err := locker.NewClient(a.Config.RedisURL)
	if err != nil {
		logger.Warnw("Invalid Redis URL; escalation sweeps run without a lock", "error", err)
		return
	}
	l := locker.New(client, "civic:")

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := l.Ping(pingCtx); err != nil {
		logger.Warnw("Redis unreachable; escalation sweeps run without a lock", "error", err)
		_ = client.Close()
		return
	}
	a.Redis = client
	a.Locker = l
}

// Close releases the database pool and the Redis client.
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	a.DB.Close()
}
