// Package app wires the application together.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/quorumhq/chatgate/config"
	"github.com/quorumhq/chatgate/middleware"
	"github.com/quorumhq/chatgate/repositories"
	"github.com/quorumhq/chatgate/repositories/postgres"
	"github.com/quorumhq/chatgate/services/activity"
	"github.com/quorumhq/chatgate/services/providers"
	"github.com/quorumhq/chatgate/services/roles"
	"github.com/quorumhq/chatgate/services/session"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *postgres.DB

	SessionRepo  repositories.SessionRepository
	RoleRepo     repositories.RoleRepository
	ActivityRepo repositories.ActivityRepository

	SessionCache *session.Cache
	Roles        *roles.Service
	Issuer       *session.Issuer
	Verifier     *session.Verifier
	Handoff      *session.Handoff
	Activity     *activity.Service
	Providers    *providers.Registry
	Auth         *middleware.Auth

	sweepCancel context.CancelFunc
	sweepDone   chan struct{}
}

// NewDependencies creates and wires all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	db, err := postgres.NewDB(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.InitSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	sessionRepo := postgres.NewSessionRepository(db, logger)
	roleRepo := postgres.NewRoleRepository(db, logger)
	activityRepo := postgres.NewActivityRepository(db, logger)

	cache := session.NewCache(cfg.Session.CacheSize, cfg.Session.CacheTTL)
	rolesSvc := roles.NewService(roleRepo, sessionRepo, logger)
	issuer := session.NewIssuer(sessionRepo, cache, rolesSvc, logger)
	verifier := session.NewVerifier(cache, sessionRepo, rolesSvc, cfg.Auth.DeveloperAllowlist, logger)
	handoff := session.NewHandoff([]byte(cfg.Auth.HandoffSecret), issuer, rolesSvc, cfg.Session.TTL, logger)

	activitySvc := activity.NewService(activityRepo, logger, activity.DefaultConfig())
	if err := activitySvc.Start(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to start activity service: %w", err)
	}

	registry := providers.NewRegistry(logger)
	if cfg.IsDevelopment() {
		registry.Register(providers.EchoProvider{})
	}

	auth := middleware.NewAuth(verifier, cfg.Auth.DefaultCompanyID, middleware.CookieConfig{
		Domain:   cfg.Session.CookieDomain,
		Secure:   cfg.Session.CookieSecure,
		SameSite: cfg.Session.CookieSameSite,
		MaxAge:   cfg.Session.TTL,
	}, logger)

	deps := &Dependencies{
		Config:       cfg,
		Logger:       logger,
		DB:           db,
		SessionRepo:  sessionRepo,
		RoleRepo:     roleRepo,
		ActivityRepo: activityRepo,
		SessionCache: cache,
		Roles:        rolesSvc,
		Issuer:       issuer,
		Verifier:     verifier,
		Handoff:      handoff,
		Activity:     activitySvc,
		Providers:    registry,
		Auth:         auth,
	}

	deps.startSweeper(cfg.Session.SweepInterval)

	logger.Info("dependencies initialized",
		zap.Int("developer_allowlist", len(cfg.Auth.DeveloperAllowlist)),
		zap.Duration("session_ttl", cfg.Session.TTL),
		zap.Int("providers", registry.Count()))

	return deps, nil
}

// startSweeper purges expired session rows periodically. The sweep is
// hygiene only; verification never depends on it.
func (d *Dependencies) startSweeper(interval time.Duration) {
	if interval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.sweepCancel = cancel
	d.sweepDone = make(chan struct{})

	go func() {
		defer close(d.sweepDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweepCtx, sweepCancel := context.WithTimeout(ctx, 30*time.Second)
				deleted, err := d.SessionRepo.DeleteExpired(sweepCtx, time.Now())
				sweepCancel()
				if err != nil {
					d.Logger.Warn("expired session sweep failed", zap.Error(err))
					continue
				}
				if deleted > 0 {
					d.Logger.Info("swept expired sessions", zap.Int64("deleted", deleted))
				}
			}
		}
	}()
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close() error {
	if d.sweepCancel != nil {
		d.sweepCancel()
		<-d.sweepDone
	}

	if err := d.Activity.Stop(10 * time.Second); err != nil {
		d.Logger.Warn("activity service shutdown incomplete", zap.Error(err))
	}

	if err := d.DB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}
