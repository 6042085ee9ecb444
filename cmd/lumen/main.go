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
	"golang.org/x/sync/errgroup"

	"github.com/lumen-lms/lumen/internal/app"
	"github.com/lumen-lms/lumen/internal/audit"
	audithttp "github.com/lumen-lms/lumen/internal/audit/http"
	"github.com/lumen-lms/lumen/internal/auth"
	"github.com/lumen-lms/lumen/internal/courses"
	"github.com/lumen-lms/lumen/internal/observability"
	"github.com/lumen-lms/lumen/internal/platform/cache"
	"github.com/lumen-lms/lumen/internal/platform/db"
	"github.com/lumen-lms/lumen/internal/ratelimit"
	ratelimithttp "github.com/lumen-lms/lumen/internal/ratelimit/http"
	"github.com/lumen-lms/lumen/internal/rbac"
	"github.com/lumen-lms/lumen/internal/shared"
	"github.com/lumen-lms/lumen/internal/users"
	"github.com/lumen-lms/lumen/jobs"
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

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("lumen exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	if cfg.PGMigrate {
		if err := db.Migrate(cfg.PGDSN, logger); err != nil {
			return err
		}
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	sessionManager := shared.NewSessionManager(redisClient, "lumen_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	tokens, err := auth.NewTokenIssuer(cfg.TokenSecret, cfg.TokenIssuer, cfg.TokenTTL)
	if err != nil {
		return err
	}

	var limiterStore ratelimit.Store = ratelimit.NewRedisStore(redisClient)
	if cfg.RateLimitBackend == app.RateLimitBackendMemory {
		limiterStore = ratelimit.NewMemoryStore()
	}
	limiter := ratelimit.New(limiterStore,
		ratelimit.WithLogger(logger.With(slog.String("component", "ratelimit"))),
		ratelimit.WithObserver(metrics),
	)

	jobClient := jobs.NewClient(cfg.Redis().AsynqOpt())
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(cfg.Redis().AsynqOpt())
	defer inspector.Close()

	auditOpts := []audit.LoggerOption{
		audit.WithOperationalLogger(logger.With(slog.String("component", "audit"))),
		audit.WithWriteObserver(metrics),
	}
	if cfg.AuditRedelivery {
		auditOpts = append(auditOpts, audit.WithRedeliverer(jobClient))
	}
	auditStore := audit.NewPGStore(pool)
	auditLogger := audit.NewLogger(auditStore, auditOpts...)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, auth.NewResetTokens(redisClient), jobClient, cfg.AppBaseURL)
	rbacMiddleware := rbac.Middleware{
		Authorizer: rbac.NewAuthorizer(auth.NewResolver(authRepo)),
		Logger:     logger.With(slog.String("component", "rbac")),
		Observer:   metrics,
	}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		Tokens:           tokens,
		Limiter:          limiter,
		Metrics:          metrics,
		RBACMiddleware:   rbacMiddleware,
		AuthHandler:      auth.NewHandler(logger, authService, sessionManager, tokens, limiter, auditLogger),
		RBACHandler:      rbac.NewHandler(rbacMiddleware),
		UsersHandler:     users.NewHandler(logger, users.NewService(users.NewRepository(pool)), rbacMiddleware, auditLogger),
		CoursesHandler:   courses.NewHandler(logger, courses.NewService(courses.NewRepository(pool)), rbacMiddleware, auditLogger),
		AuditHandler:     audithttp.NewHandler(logger, audit.NewService(auditStore), rbacMiddleware, auditLogger),
		RateLimitHandler: ratelimithttp.NewHandler(logger, limiter, rbacMiddleware, auditLogger),
		JobHandler:       jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return limiter.Run(gctx, cfg.RateLimitSweepInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
