package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/distro/internal/app"
	"github.com/odyssey-erp/distro/internal/auth"
	"github.com/odyssey-erp/distro/internal/catalog"
	"github.com/odyssey-erp/distro/internal/observability"
	"github.com/odyssey-erp/distro/internal/orders"
	"github.com/odyssey-erp/distro/internal/platform/cache"
	"github.com/odyssey-erp/distro/internal/platform/db"
	"github.com/odyssey-erp/distro/internal/platform/migrate"
	"github.com/odyssey-erp/distro/internal/rbac"
	"github.com/odyssey-erp/distro/internal/shared"
	"github.com/odyssey-erp/distro/jobs"
)

const usage = `usage: distro [serve | migrate [up|down N] | create-user -email E -name N -role R -password P]`

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

	cmd, args := "serve", []string(nil)
	if len(os.Args) > 1 {
		cmd, args = os.Args[1], os.Args[2:]
	}
	switch cmd {
	case "serve":
		err = serve(ctx, stop, cfg, logger)
	case "migrate":
		err = runMigrate(cfg, logger, args)
	case "create-user":
		err = createUser(ctx, cfg, logger, args)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error(cmd+" failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	if cfg.MigrateOnStart {
		if err := migrate.Up(cfg.PGDSN, logger); err != nil {
			return fmt.Errorf("migrate on start: %w", err)
		}
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	sessions := shared.NewSessionManager(redisClient, cfg.SessionTTL)
	guard := rbac.Middleware{Logger: logger}

	authService := auth.NewService(auth.NewRepository(pool))
	authHandler := auth.NewHandler(logger, authService, sessions, guard)

	catalogCache := catalog.NewCache(redisClient, cfg.CatalogCacheTTL)
	catalogService := catalog.NewService(catalog.NewRepository(pool), catalogCache, logger)
	catalogHandler := catalog.NewHandler(logger, catalogService, guard)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
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

	orderService := orders.NewService(orders.NewRepository(pool), logger)
	orderService.SetAuditor(shared.NewAuditLogger(pool))
	orderService.SetIdempotency(shared.NewIdempotencyStore(pool))
	orderService.SetNotifier(jobClient)
	orderService.SetMetrics(metrics)
	orderHandler := orders.NewHandler(logger, orderService, guard)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessions,
		AuthHandler:    authHandler,
		CatalogHandler: catalogHandler,
		OrdersHandler:  orderHandler,
		JobHandler:     jobs.NewHandler(inspector, logger),
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
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
