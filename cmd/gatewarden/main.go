package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gatewarden/gatewarden/internal/accesskey"
	"github.com/gatewarden/gatewarden/internal/app"
	"github.com/gatewarden/gatewarden/internal/auth"
	"github.com/gatewarden/gatewarden/internal/authz"
	"github.com/gatewarden/gatewarden/internal/keygen"
	"github.com/gatewarden/gatewarden/internal/observability"
	"github.com/gatewarden/gatewarden/internal/platform/cache"
	"github.com/gatewarden/gatewarden/internal/platform/db"
	"github.com/gatewarden/gatewarden/internal/rbac"
	"github.com/gatewarden/gatewarden/internal/roles"
	"github.com/gatewarden/gatewarden/internal/shared"
	"github.com/gatewarden/gatewarden/internal/users"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// Sessions and the permission cache both live in redis, so a dead
	// instance is fatal here, unlike in the worker.
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

	sessionManager := shared.NewSessionManager(redisClient, "gatewarden_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())

	rolesRepo := roles.NewRepository(pool)
	rolesService := roles.NewService(rolesRepo)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, rolesService)

	permCache := rbac.NewCache(redisClient, cfg.PermissionCacheTTL)
	engine := rbac.NewEngine(usersRepo, rolesRepo, permCache)

	keysRepo := accesskey.NewRepository(pool)
	keysService := accesskey.NewService(keysRepo, usersRepo, keygen.SystemClock, cfg.AccessKeyMaxAgeDays)

	metrics := observability.NewMetrics()

	decider := authz.NewDecider(keysService, engine, usersRepo)
	guard := authz.Middleware{Decider: decider, Logger: logger, Metrics: metrics}

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, usersRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	rolesHandler := roles.NewHandler(logger, rolesService, guard, engine)
	usersHandler := users.NewHandler(logger, usersService, guard, engine)
	keysHandler := accesskey.NewHandler(logger, keysService, guard)
	authzHandler := authz.NewHandler(logger, decider)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		AuthHandler:    authHandler,
		RolesHandler:   rolesHandler,
		UsersHandler:   usersHandler,
		KeysHandler:    keysHandler,
		AuthzHandler:   authzHandler,
		Metrics:        metrics,
		Pool:           pool,
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
