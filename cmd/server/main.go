package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/V4T54L/logstore/internal/adapter/api"
	"github.com/V4T54L/logstore/internal/adapter/metrics"
	"github.com/V4T54L/logstore/internal/adapter/repository/memory"
	"github.com/V4T54L/logstore/internal/adapter/repository/postgres"
	redisrepo "github.com/V4T54L/logstore/internal/adapter/repository/redis"
	"github.com/V4T54L/logstore/internal/adapter/repository/wal"
	"github.com/V4T54L/logstore/internal/domain"
	"github.com/V4T54L/logstore/internal/pkg/config"
	"github.com/V4T54L/logstore/internal/pkg/logger"
	"github.com/V4T54L/logstore/internal/pkg/tracing"
	"github.com/V4T54L/logstore/internal/usecase"

	_ "github.com/lib/pq" // postgres driver
)

func main() {
	os.Exit(run())
}

// run owns every resource so deferred cleanup happens before the process exits.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := logger.New(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracerCleanup, err := tracing.Init(ctx, tracing.Options{
		Enabled:  cfg.TracingEnabled,
		Protocol: cfg.TracingProtocol,
		Endpoint: cfg.TracingEndpoint,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		return 1
	}
	defer tracerCleanup()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open storage engine", "backend", cfg.StorageBackend, "error", err)
		return 1
	}
	defer closeStore()

	m := metrics.NewServiceMetrics(prometheus.DefaultRegisterer)
	instrumented := metrics.NewInstrumentedStore(store, m)

	ingestUseCase := usecase.NewIngestRecordUseCase(instrumented, logger, cfg.StorageTimeout, cfg.MaxMessageLength)
	recentUseCase := usecase.NewRecentRecordsUseCase(instrumented, logger, cfg.RecentPageSize, cfg.StorageTimeout)

	apiServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      api.NewRouter(cfg, logger, ingestUseCase, recentUseCase, m),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metricsMux,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting log store server", "addr", apiServer.Addr, "backend", cfg.StorageBackend)
		return serve(apiServer)
	})
	g.Go(func() error {
		logger.Info("starting metrics server", "addr", metricsServer.Addr)
		return serve(metricsServer)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down servers...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return errors.Join(
			apiServer.Shutdown(shutdownCtx),
			metricsServer.Shutdown(shutdownCtx),
		)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited with error", "error", err)
		return 1
	}
	logger.Info("servers shut down gracefully")
	return 0
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server on %s failed: %w", srv.Addr, err)
	}
	return nil
}

// openStore builds the configured storage engine. The returned func releases
// its connections and must be called after the servers have stopped.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.RecordStore, func(), error) {
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		repo := postgres.NewLogRepository(db, logger)
		if err := repo.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return repo, func() { db.Close() }, nil

	case config.BackendRedis:
		opts, err := redis.ParseURL(cfg.RedisAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return redisrepo.NewLogRepository(client, logger), func() { client.Close() }, nil

	default:
		if cfg.WALDir == "" {
			store, err := memory.NewRecordStore(ctx, nil, logger)
			return store, func() {}, err
		}
		walRepo, err := wal.NewWALRepository(cfg.WALDir, cfg.WALSegmentSize, cfg.WALMaxDiskSize, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize WAL: %w", err)
		}
		store, err := memory.NewRecordStore(ctx, walRepo, logger)
		if err != nil {
			walRepo.Close()
			return nil, nil, err
		}
		return store, func() { walRepo.Close() }, nil
	}
}
