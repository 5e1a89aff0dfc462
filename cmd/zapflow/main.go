package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/zapflow/zapflow/internal/app"
	"github.com/zapflow/zapflow/internal/audit"
	"github.com/zapflow/zapflow/internal/auth"
	"github.com/zapflow/zapflow/internal/observability"
	"github.com/zapflow/zapflow/internal/platform/cache"
	"github.com/zapflow/zapflow/internal/platform/db"
	"github.com/zapflow/zapflow/internal/rbac"
	"github.com/zapflow/zapflow/internal/tenants"
	"github.com/zapflow/zapflow/internal/users"
	"github.com/zapflow/zapflow/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
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
	if err := cfg.SecretWarning(); err != nil {
		logger.Warn("JWT_SECRET is empty or the development default; tokens can be forged",
			slog.String("env", cfg.AppEnv), slog.Any("error", err))
	}

	dbpool, err := db.New(ctx, cfg.Database())
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisOpts := cfg.Queue()
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		logger.Error("init token issuer", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	matrix := rbac.DefaultMatrix()
	recorder := audit.NewRecorder(jobClient, logger)

	authRepo := auth.NewRepository(dbpool)
	lookup := auth.NewUserLookup(authRepo, auth.NewRedisIdentityCache(redisClient, cfg.UserCacheTTL), logger, metrics)
	authenticator := auth.NewAuthenticator(auth.AuthenticatorConfig{
		Tokens:  tokens,
		Users:   lookup,
		Matrix:  matrix,
		Logger:  logger,
		Metrics: metrics,
		Audit:   recorder,
	})
	rbacMiddleware := rbac.Middleware{Matrix: matrix, Logger: logger, Metrics: metrics, Audit: recorder}

	authHandler := auth.NewHandler(auth.HandlerConfig{
		Logger:       logger,
		Service:      auth.NewService(authRepo, tokens),
		Matrix:       matrix,
		Authenticate: authenticator.Middleware,
		LoginLimit:   app.LoginRateLimiter(cfg),
		Audit:        recorder,
	})
	usersService := users.NewService(users.NewRepository(dbpool), lookup, recorder, logger)
	usersHandler := users.NewHandler(logger, usersService, rbacMiddleware, authenticator.Middleware)
	tenantsHandler := tenants.NewHandler(logger, tenants.NewService(tenants.NewRepository(dbpool)), rbacMiddleware, authenticator.Middleware)
	permissionsHandler := rbac.NewPermissionsHandler(logger, matrix, rbacMiddleware, authenticator.Middleware)
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Metrics:            metrics,
		RBACMiddleware:     rbacMiddleware,
		Authenticate:       authenticator.Middleware,
		AuthHandler:        authHandler,
		UsersHandler:       usersHandler,
		TenantsHandler:     tenantsHandler,
		PermissionsHandler: permissionsHandler,
		JobHandler:         jobHandler,
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: cfg.AppReadTimeout,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", slog.Any("error", err))
	}
}
