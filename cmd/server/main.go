package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/realtyflow/settlement-engine/internal/adapters/accounting"
	"github.com/realtyflow/settlement-engine/internal/adapters/authz"
	"github.com/realtyflow/settlement-engine/internal/adapters/catalog"
	"github.com/realtyflow/settlement-engine/internal/adapters/postgres"
	"github.com/realtyflow/settlement-engine/internal/adapters/zaplog"
	"github.com/realtyflow/settlement-engine/internal/config"
	settlementhandler "github.com/realtyflow/settlement-engine/internal/handlers/settlement"
	"github.com/realtyflow/settlement-engine/internal/services/closing"
	"github.com/realtyflow/settlement-engine/internal/services/export"
	"github.com/realtyflow/settlement-engine/internal/services/payout"
	"github.com/realtyflow/settlement-engine/internal/services/selector"
	"github.com/realtyflow/settlement-engine/internal/services/settlement"
	"github.com/realtyflow/settlement-engine/pkg/middleware"
	"github.com/realtyflow/settlement-engine/pkg/observability"
	"github.com/realtyflow/settlement-engine/pkg/resilience"
	"github.com/realtyflow/settlement-engine/pkg/shutdown"
)

func main() {
	logger := initLogger()
	defer logger.Sync()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}

	log := zaplog.New(logger)

	// Adapters
	db := postgres.NewDBExecutor(pool)
	settlementRepo := postgres.NewSettlementRepository(db)
	commissionRepo := postgres.NewCommissionItemRepository(db)
	payoutRepo := postgres.NewPayoutRepository(db)
	auditRepo := postgres.NewAuditRepository(db)
	catalogProvider := catalog.NewCachedProvider(
		postgres.NewCatalogRepository(db),
		time.Duration(cfg.Settlement.CatalogCacheTTL)*time.Second,
	)
	accountingGateway := accounting.NewLoggingGateway(log)
	reopenAuthorizer := authz.NewAllowlistAuthorizer(cfg.Settlement.ReopenActors)

	// Services
	policy := settlement.Policy{WithholdingRate: cfg.Settlement.WithholdingRate}
	settlementService := settlement.NewService(
		db, settlementRepo, commissionRepo, auditRepo,
		catalogProvider, accountingGateway, reopenAuthorizer, policy, log,
	)
	selectorService := selector.NewService(commissionRepo, log)
	payoutService := payout.NewService(db, settlementRepo, payoutRepo, auditRepo, policy, log)
	closingOrchestrator := closing.NewOrchestrator(db, settlementRepo, commissionRepo, auditRepo, accountingGateway, log)
	exportService := export.NewService(settlementRepo, auditRepo, log)

	handler := settlementhandler.NewHandler(
		settlementService, selectorService, payoutService, closingOrchestrator, exportService, log,
	)

	// HTTP server
	isDevelopment := os.Getenv("ENVIRONMENT") != "production"
	rateLimiter := middleware.NewRateLimiter(10, 20)

	router := chi.NewRouter()
	router.Use(settlementhandler.RequestLogger(log))
	router.Use(observability.HTTPMetricsMiddleware(chiRoutePattern))
	router.Use(middleware.NewSecurityHeaders(isDevelopment).Middleware)
	router.Use(rateLimiter.Middleware)
	router.Use(middleware.GzipHandler(logger))
	handler.RegisterRoutes(router)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	healthChecker := observability.NewHealthChecker(pool)
	metricsServer := observability.StartMetricsServer(fmt.Sprintf("%d", cfg.Server.MetricsPort), healthChecker)
	logger.Info("metrics server listening", zap.Int("port", cfg.Server.MetricsPort))

	// Shutdown order is reverse registration: HTTP first so in-flight
	// settlement mutations drain before the pool closes.
	manager := shutdown.NewManager(logger, 30*time.Second)
	manager.Register("database", func(context.Context) error {
		pool.Close()
		return nil
	})
	manager.Register("rate_limiter", func(context.Context) error {
		rateLimiter.Shutdown()
		return nil
	})
	manager.Register("metrics_server", func(context.Context) error {
		return observability.ShutdownMetricsServer(metricsServer)
	})
	manager.Register("http_server", httpServer.Shutdown)

	manager.WaitForSignal()
}

// initLogger builds the process logger before configuration is loaded, so
// config errors are still reported in structured form.
func initLogger() *zap.Logger {
	if os.Getenv("ENVIRONMENT") == "production" {
		zapCfg := zap.NewProductionConfig()
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		logger, err := zapCfg.Build()
		if err != nil {
			panic(fmt.Sprintf("failed to initialize production logger: %v", err))
		}
		return logger
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize development logger: %v", err))
	}
	return logger
}

// initDatabase opens the pgx pool and verifies connectivity, retrying the
// ping so the service survives a database that is still starting up.
func initDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	err = resilience.Retry(pingCtx, 6, resilience.DefaultExponentialBackoff(), func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			logger.Warn("database not reachable yet", zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Database),
	)
	return pool, nil
}

// chiRoutePattern labels request metrics with the matched route pattern
// instead of the raw path to keep cardinality bounded.
func chiRoutePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return "unmatched"
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}
	return "unmatched"
}
