package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yakutia-transit/routesearch/config"
	"github.com/yakutia-transit/routesearch/internal/datacache"
	"github.com/yakutia-transit/routesearch/internal/graph"
	"github.com/yakutia-transit/routesearch/internal/handler"
	"github.com/yakutia-transit/routesearch/internal/middleware"
	"github.com/yakutia-transit/routesearch/internal/orchestrator"
	"github.com/yakutia-transit/routesearch/internal/provider"
	"github.com/yakutia-transit/routesearch/internal/quality"
	"github.com/yakutia-transit/routesearch/internal/recovery"
	"github.com/yakutia-transit/routesearch/internal/risk"
	"github.com/yakutia-transit/routesearch/internal/search"
	"github.com/yakutia-transit/routesearch/internal/syncworker"
	"github.com/yakutia-transit/routesearch/pkg/cache"
	"github.com/yakutia-transit/routesearch/pkg/db"
	"github.com/yakutia-transit/routesearch/pkg/logging"
	"github.com/yakutia-transit/routesearch/pkg/metrics"
)

func main() {
	// ── Load configuration ──────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(os.Getenv("APP_ENV") != "production")
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	// ── Connect to PostgreSQL ───────────────────────────
	// The service stays up without the catalog; the fallback dataset keeps
	// search answering while the database is down.
	pgPool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Warn("postgres unavailable, running on fallback data", zap.Error(err))
		pgPool = nil
	} else {
		defer pgPool.Close()
		logger.Info("postgres connected")
	}

	// ── Connect to Redis ────────────────────────────────
	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, dataset cache disabled", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
		logger.Info("redis connected")
	}

	// ── Data pipeline ───────────────────────────────────
	m := metrics.New()

	primary := provider.NewCatalogProvider(pgPool, logger)
	fallback := provider.NewFallbackProvider(cfg.Fallback.DataDir, logger)
	validator := quality.NewValidator(cfg.Quality.ThresholdReal, cfg.Quality.ThresholdRecovery)
	recoverySvc := recovery.NewService(logger, cfg.Region)
	datasetCache := datacache.New(redisClient, logger, cfg.Cache.Enabled, cfg.Cache.OpTimeout)
	orch := orchestrator.New(logger, primary, fallback, validator, recoverySvc, datasetCache, m, cfg.Cache.Key, cfg.Cache.TTL)

	// ── Graph ───────────────────────────────────────────
	snapshots := datacache.NewSnapshotStore(redisClient, logger, cfg.Cache.OpTimeout)
	builder := graph.NewBuilder(logger)
	manager := graph.NewManager(logger, orch, builder, snapshots, m)

	finder := search.NewFinder(logger, cfg.Search.KAlternatives)
	scorer := risk.NewScorer()

	// Warm the graph in the background so the server binds immediately;
	// readiness flips once the first snapshot publishes.
	go func() {
		warmCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		if err := manager.Initialize(warmCtx); err != nil {
			logger.Error("initial graph build failed", zap.Error(err))
		}
	}()

	// ── Sync worker ─────────────────────────────────────
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	if pgPool != nil {
		worker := syncworker.New(logger, pgPool, primary, m, cfg.Sync.Interval, func(ctx context.Context) {
			datasetCache.Invalidate(ctx, cfg.Cache.Key)
			manager.MarkStale()
			if err := manager.Refresh(ctx); err != nil {
				logger.Warn("graph refresh after sync failed", zap.Error(err))
			}
		})
		go worker.Start(workerCtx)
	} else {
		logger.Info("sync worker disabled: no catalog connection")
	}

	// ── Handlers ────────────────────────────────────────
	searchHandler := handler.NewSearchHandler(logger, manager, finder, scorer, m, cfg.Search.Timeout)
	riskHandler := handler.NewRiskHandler(scorer)
	cityHandler := handler.NewCityHandler(manager)
	healthHandler := handler.NewHealthHandler(pgPool, redisClient, manager)

	// ── Setup router ────────────────────────────────────
	router := mux.NewRouter()

	router.HandleFunc("/health", healthHandler.Health).Methods(http.MethodGet)
	router.HandleFunc("/health/live", healthHandler.Liveness).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", healthHandler.Readiness).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/routes/search", searchHandler.SearchRoutes).Methods(http.MethodGet)
	api.HandleFunc("/routes/risk/assess", riskHandler.AssessRisk).Methods(http.MethodPost)
	api.HandleFunc("/cities", cityHandler.ListCities).Methods(http.MethodGet)

	var root http.Handler = router
	root = middleware.Recoverer(logger)(root)
	root = middleware.RequestLogger(logger)(root)
	root = middleware.CORS(root)

	// ── Start HTTP server ───────────────────────────────
	srv := &http.Server{
		Addr:         cfg.Server.ServerAddr(),
		Handler:      root,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.ServerAddr()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ───────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	stopWorker()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
