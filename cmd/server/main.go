package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eapache/go-resiliency/retrier"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/inventory/internal/adapter/handler"
	"github.com/rl1809/inventory/internal/adapter/messaging"
	"github.com/rl1809/inventory/internal/adapter/storage"
	"github.com/rl1809/inventory/internal/config"
	"github.com/rl1809/inventory/internal/core/service"
	"github.com/rl1809/inventory/internal/observability"
)

const (
	shutdownTimeout     = 10 * time.Second
	healthCheckInterval = 15 * time.Second
)

func main() {
	configPath := flag.String("config", "", "path to the yaml config file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Log.Level, cfg.Log.Pretty)
	if logger.GetLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Tracing.Endpoint)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up tracing")
	}

	// Initialize MySQL
	db, err := openDatabase(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect mysql")
	}
	logger.Info().Msg("connected to mysql")

	if cfg.Database.Migrate {
		if err := storage.Migrate(db); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate database")
		}
	}

	opts := []service.Option{service.WithStoreTimeout(cfg.Store.Timeout)}

	// Snapshot store
	var rdb *redis.Client
	switch cfg.Snapshot.Backend {
	case "file":
		opts = append(opts, service.WithSnapshotStore(storage.NewFileSnapshotStore(cfg.Snapshot.Path)))
	case "redis":
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msg("redis unreachable, snapshots will fail until it returns")
		}
		snapshots := storage.NewRedisSnapshotStore(rdb, cfg.Redis.Key)
		logSnapshotAge(ctx, snapshots, logger)
		opts = append(opts, service.WithSnapshotStore(snapshots))
	}

	// Event publisher
	var publisher *messaging.KafkaPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = messaging.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		opts = append(opts, service.WithEventPublisher(publisher))
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("publishing transaction events")
	}

	coordinator := service.NewCoordinator(storage.NewMySQLStore(db), logger, opts...)
	if err := coordinator.Bootstrap(ctx); err != nil {
		logger.Warn().Err(err).Msg("bootstrap incomplete, serving what was loaded")
	}

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	handler.RegisterInventoryServer(grpcServer, handler.NewGRPCHandler(coordinator, cfg.Reports.LowStockThreshold))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to listen")
	}

	go func() {
		logger.Info().Int("port", cfg.Server.GRPCPort).Msg("gRPC server listening")
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error().Err(err).Msg("gRPC server error")
		}
	}()
	go handler.WatchStoreHealth(ctx, coordinator, healthServer, healthCheckInterval, logger)

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(coordinator, logger, cfg.Reports.LowStockThreshold)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           handler.NewRouter(httpHandler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.HTTPPort).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown")
	}
	logger.Info().Msg("HTTP server stopped")

	healthServer.Shutdown()
	grpcServer.GracefulStop()
	logger.Info().Msg("gRPC server stopped")

	if cfg.Snapshot.SaveOnShutdown && cfg.Snapshot.Backend != "none" {
		if err := coordinator.SaveSnapshot(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("final snapshot failed")
		}
	}

	// Close connections
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error().Err(err).Msg("kafka writer close")
		}
	}
	if rdb != nil {
		rdb.Close()
	}
	db.Close()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("tracing shutdown")
	}
	logger.Info().Msg("connections closed")
}

// openDatabase opens the pool and pings it with constant backoff until it answers.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	attempt := 0
	retry := retrier.New(retrier.ConstantBackoff(cfg.ConnectTries-1, cfg.ConnectInterval), nil)
	err = retry.RunCtx(ctx, func(ctx context.Context) error {
		attempt++
		if err := db.PingContext(ctx); err != nil {
			logger.Warn().Err(err).Int("attempt", attempt).Msg("mysql ping failed")
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func logSnapshotAge(ctx context.Context, snapshots *storage.RedisSnapshotStore, logger zerolog.Logger) {
	takenAt, ok, err := snapshots.TakenAt(ctx)
	switch {
	case err != nil:
		logger.Warn().Err(err).Msg("cannot read snapshot time")
	case ok:
		logger.Info().Time("taken_at", takenAt).Dur("age", time.Since(takenAt)).Msg("redis snapshot available")
	}
}
