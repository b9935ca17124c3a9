package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/admin"
	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/app"
	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/auth"
	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/consent"
	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/observability"
	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/platform/cache"
	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/platform/db"
	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/ratelimit"
	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/registration"
	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/settings"
	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/shared"
	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/users"
	"github.com/jeremyHixon/rwp-creator-suite-sub007/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	nonceManager := shared.NewNonceManager(cfg.NonceSecret)
	auditLogger := shared.NewAuditLogger(dbpool)

	metrics := observability.NewMetrics()

	userRepo := users.NewRepository(dbpool)

	limiterConfig := ratelimit.Config{
		RegistrationLimit:  cfg.RegistrationRateLimit,
		RegistrationWindow: cfg.RegistrationRateWindow,
		LoginLimit:         cfg.LoginRateLimit,
		LoginWindow:        cfg.LoginRateWindow,
		IPLimit:            cfg.IPRateLimit,
		IPWindow:           cfg.IPRateWindow,
	}
	if cfg.IsDevelopment() {
		limiterConfig.DebugBypass = cfg.RateLimitDebugBypass
	}
	limiter := ratelimit.NewLimiter(redisClient, limiterConfig, logger)

	settingsStore := settings.NewPGStore(dbpool)
	settingsService := settings.NewService(settingsStore, redisClient, cfg.SettingsCacheTTL, settings.Defaults(), logger)

	consentRepo := consent.NewRepository(dbpool)
	consentService := consent.NewService(consentRepo, auditLogger, metrics, redisClient, cfg.ConsentStatsCacheTTL, logger)
	consentHandler := consent.NewHandler(logger, consentService)

	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	registrationService := registration.NewService(userRepo, limiter, settingsService, auditLogger, metrics, logger)
	registrationService.Subscribe(consentService)
	registrationService.Subscribe(jobs.NewRegistrationObserver(jobClient, logger))

	authService := auth.NewService(userRepo, limiter, logger)
	authHandler := auth.NewHandler(logger, authService, registrationService, settingsService, sessionManager, nonceManager, metrics)

	adminHandler := admin.NewHandler(logger, userRepo, settingsService, limiter, consentService, auditLogger, nonceManager)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		AuthHandler:    authHandler,
		ConsentHandler: consentHandler,
		AdminHandler:   adminHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
