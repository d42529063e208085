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

	"github.com/Vitorhlem/TruCar/internal/app"
	"github.com/Vitorhlem/TruCar/internal/auth"
	"github.com/Vitorhlem/TruCar/internal/components"
	"github.com/Vitorhlem/TruCar/internal/costs"
	"github.com/Vitorhlem/TruCar/internal/inventory"
	"github.com/Vitorhlem/TruCar/internal/maintenance"
	"github.com/Vitorhlem/TruCar/internal/parts"
	"github.com/Vitorhlem/TruCar/internal/platform/cache"
	"github.com/Vitorhlem/TruCar/internal/platform/db"
	"github.com/Vitorhlem/TruCar/internal/shared"
	"github.com/Vitorhlem/TruCar/jobs"
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

	sessionManager := shared.NewSessionManager(redisClient, "trucar_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	runner := db.NewPoolRunner(pool)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	inventoryStore := inventory.NewPGStore()
	inventoryService := inventory.NewService(inventoryStore)
	inventoryHandler := inventory.NewHandler(logger, inventoryService, pool, runner, idempotencyStore)

	costsStore := costs.NewPGStore()
	costsHandler := costs.NewHandler(logger, costsStore, pool)

	componentsStore := components.NewPGStore()
	componentsService := components.NewService(componentsStore, inventoryService, costsStore)
	componentsHandler := components.NewHandler(logger, componentsService, pool, runner)

	partsStore := parts.NewPGStore()
	partsService := parts.NewService(partsStore, inventoryService)
	partsHandler := parts.NewHandler(logger, partsService, pool, runner)

	asynqClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init asynq client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()
	dispatcher := jobs.NewDispatcher(asynqClient)

	maintenanceStore := maintenance.NewPGStore()
	maintenanceService := maintenance.NewService(logger, maintenanceStore, componentsService, runner, dispatcher, auditLogger)
	maintenanceHandler := maintenance.NewHandler(logger, maintenanceService, pool)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, pool, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		AuthHandler:        authHandler,
		PartsHandler:       partsHandler,
		InventoryHandler:   inventoryHandler,
		ComponentsHandler:  componentsHandler,
		CostsHandler:       costsHandler,
		MaintenanceHandler: maintenanceHandler,
		JobHandler:         jobHandler,
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
