package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iamabdullah-dev/BookingEvents-System/internal/app"
	"github.com/iamabdullah-dev/BookingEvents-System/internal/clock"
	"github.com/iamabdullah-dev/BookingEvents-System/internal/config"
	"github.com/iamabdullah-dev/BookingEvents-System/internal/messaging/kafka"
	platformotel "github.com/iamabdullah-dev/BookingEvents-System/internal/platform/otel"
	"github.com/iamabdullah-dev/BookingEvents-System/internal/storage/aztable"
	"github.com/iamabdullah-dev/BookingEvents-System/internal/storage/memory"
	"github.com/iamabdullah-dev/BookingEvents-System/internal/storage/postgres"
	redisstore "github.com/iamabdullah-dev/BookingEvents-System/internal/storage/redis"
	transporthttp "github.com/iamabdullah-dev/BookingEvents-System/internal/transport/http"
	"github.com/iamabdullah-dev/BookingEvents-System/migrations"
)

const serviceName = "booking-events-api"

func main() {
	logger := logrus.New()

	cfg, err := config.Load(logger)
	if err != nil {
		logger.WithError(err).Fatal("load config")
	}
	cfg.ConfigureLogger(logger)

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	shutdownTracing, err := platformotel.Setup(startupCtx, serviceName, cfg.OTelEndpoint, cfg.OTelEnabled)
	if err != nil {
		logger.WithError(err).Warn("tracing disabled")
	}

	store, closeStore, err := openStore(startupCtx, cfg, logger)
	if err != nil {
		logger.WithError(err).WithField("backend", cfg.StoreBackend).Fatal("open event store")
	}
	defer closeStore()

	clk := clock.NewSystem()
	invOpts := []app.InventoryOption{
		app.WithMaxAttempts(cfg.ReserveMaxAttempts),
		app.WithBackoff(cfg.ReserveBackoffInitial, cfg.ReserveBackoffMax),
		app.WithLogger(logger.WithField("component", "inventory")),
	}
	if len(cfg.KafkaBrokers) > 0 {
		publisher := kafka.NewInventoryPublisher(kafka.NewWriter(cfg.KafkaBrokers, cfg.KafkaInventoryTopic))
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.WithError(err).Warn("close kafka publisher")
			}
		}()
		invOpts = append(invOpts, app.WithPublisher(publisher), app.WithPublishTimeout(cfg.PublishTimeout))
		logger.WithField("topic", cfg.KafkaInventoryTopic).Info("publishing inventory changes")
	}

	inventory := app.NewInventoryManager(store, clk, invOpts...)
	catalog := app.NewEventCatalog(store, clk, app.WithUpdateAttempts(cfg.ReserveMaxAttempts))

	mux := http.NewServeMux()
	mux.HandleFunc("/health", transporthttp.HealthHandler)
	mux.Handle("/api/events", transporthttp.HandleEvents(catalog))
	mux.Handle("/api/events/", transporthttp.HandleEvent(catalog, inventory))
	mux.Handle("/", transporthttp.NotFoundHandler())

	handler := transporthttp.RequestLogger(transporthttp.CORS(cfg.CORSOrigins, mux), logger)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.WithFields(logrus.Fields{"port": cfg.Port, "backend": cfg.StoreBackend}).Info("api listening")

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server error")
		}
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Error("server shutdown error")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.WithError(err).Warn("flush traces")
	}
	logger.Info("server stopped")
}

// openStore connects the configured backend and returns a close func that is
// always safe to call.
func openStore(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) (app.EventStore, func(), error) {
	noop := func() {}

	switch cfg.StoreBackend {
	case config.BackendMemory:
		logger.Warn("using in-memory event store, data is lost on restart")
		return memory.NewEventStore(), noop, nil

	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, fmt.Errorf("connect to db: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, noop, fmt.Errorf("db ping: %w", err)
		}
		if err := migrations.Apply(ctx, pool); err != nil {
			pool.Close()
			return nil, noop, fmt.Errorf("apply migrations: %w", err)
		}
		return postgres.NewEventStore(pool), pool.Close, nil

	case config.BackendRedis:
		opts, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, noop, fmt.Errorf("parse redis url: %w", err)
		}
		client := goredis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("redis ping: %w", err)
		}
		closeClient := func() {
			if err := client.Close(); err != nil {
				logger.WithError(err).Warn("close redis client")
			}
		}
		return redisstore.NewEventStore(client, cfg.RedisPrefix), closeClient, nil

	case config.BackendAzTable:
		store, err := aztable.Open(ctx, cfg.AzureConnectionString, cfg.AzureEventsTable)
		if err != nil {
			return nil, noop, fmt.Errorf("open azure table: %w", err)
		}
		return store, noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown backend %q", cfg.StoreBackend)
	}
}
