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
	"github.com/joho/godotenv"

	"github.com/loom-erp/loom-erp/internal/account"
	"github.com/loom-erp/loom-erp/internal/app"
	"github.com/loom-erp/loom-erp/internal/auth"
	"github.com/loom-erp/loom-erp/internal/catalog"
	"github.com/loom-erp/loom-erp/internal/ledger"
	"github.com/loom-erp/loom-erp/internal/observability"
	"github.com/loom-erp/loom-erp/internal/platform/cache"
	"github.com/loom-erp/loom-erp/internal/platform/db"
	"github.com/loom-erp/loom-erp/internal/purchase"
	"github.com/loom-erp/loom-erp/internal/shared"
	"github.com/loom-erp/loom-erp/internal/voucher"
	"github.com/loom-erp/loom-erp/jobs"
)

func main() {
	if app.InTestMode() {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	rdb, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unreachable", "addr", cfg.RedisAddr, "error", err)
	} else {
		defer rdb.Close() //nolint:errcheck
	}

	auditLogger := shared.NewAuditLogger(pool)
	metrics := observability.NewMetrics()

	authService := auth.NewService(auth.NewRepository(pool), cfg.JWTSecret, cfg.JWTTTL)
	authHandler := auth.NewHandler(logger, authService)

	accountService := account.NewService(account.NewRepository(pool))
	accountHandler := account.NewHandler(logger, accountService)

	catalogService := catalog.NewService(catalog.NewRepository(pool))
	catalogHandler := catalog.NewHandler(logger, catalogService)

	ledgerService := ledger.NewService(ledger.NewRepository(pool), auditLogger)
	ledgerHandler := ledger.NewHandler(logger, ledgerService, metrics)

	purchaseService := purchase.NewService(purchase.NewRepository(pool), accountService, auditLogger)
	purchaseHandler := purchase.NewHandler(logger, purchaseService)

	voucherService := voucher.NewService(voucher.NewRepository(pool), auditLogger)
	voucherHandler := voucher.NewHandler(logger, voucherService, metrics)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobsClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("build jobs client", "error", err)
		os.Exit(1)
	}
	defer jobsClient.Close() //nolint:errcheck
	jobsHandler := jobs.NewHandler(asynq.NewInspector(redisOpts), jobsClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		AuthHandler:     authHandler,
		CatalogHandler:  catalogHandler,
		LedgerHandler:   ledgerHandler,
		PurchaseHandler: purchaseHandler,
		VoucherHandler:  voucherHandler,
		AccountHandler:  accountHandler,
		JobsHandler:     jobsHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server listening", "addr", cfg.AppAddr, "env", cfg.AppEnv)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}
