package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/rl1809/storefront/internal/adapter/handler"
	"github.com/rl1809/storefront/internal/adapter/inventory"
	"github.com/rl1809/storefront/internal/adapter/messaging"
	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/config"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/observability"
)

const (
	serviceName    = "order-service"
	serviceVersion = "1.0.0"
)

func main() {
	cfg, err := config.LoadOrderService()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(serviceName, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, serviceName, serviceVersion, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("failed to set up tracing", zap.Error(err))
	}

	metricsHandler, shutdownMetrics, err := observability.SetupMetrics()
	if err != nil {
		logger.Fatal("failed to set up metrics", zap.Error(err))
	}
	orderMetrics, err := observability.NewOrderMetrics(otel.GetMeterProvider())
	if err != nil {
		logger.Fatal("failed to create order metrics", zap.Error(err))
	}

	// Initialize MySQL
	db, err := storage.OpenMySQL(ctx, storage.MySQLConfig{
		DSN:             cfg.MySQLDSN,
		MaxOpenConns:    cfg.MySQLMaxOpen,
		MaxIdleConns:    cfg.MySQLMaxIdle,
		ConnMaxLifetime: cfg.MySQLLifetime,
	})
	if err != nil {
		logger.Fatal("failed to connect mysql", zap.Error(err))
	}
	if err := storage.MigrateOrders(ctx, db, storage.DialectMySQL); err != nil {
		logger.Fatal("failed to migrate order schema", zap.Error(err))
	}
	logger.Info("connected to mysql")

	// Redis is optional: without it idempotency keys are not enforced
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: cfg.RedisPoolSize,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		logger.Info("connected to redis")
	}

	publisher, err := messaging.NewPublisher(messaging.Config{
		Broker:       cfg.Broker,
		KafkaBrokers: cfg.KafkaBrokers,
		NATSURL:      cfg.NATSURL,
		Topic:        cfg.Topic,
		WriteTimeout: cfg.PublishTimeout,
	}, logger)
	if err != nil {
		logger.Fatal("failed to create publisher", zap.Error(err))
	}

	orderStore := storage.NewMySQLAdapter(db)
	inventoryClient := inventory.NewHTTPClient(cfg.InventoryURL, cfg.InventoryTimeout, cfg.InventoryMaxInFlight)

	opts := []service.Option{
		service.WithLogger(logger),
		service.WithMetrics(orderMetrics),
		service.WithLookupTimeout(cfg.InventoryTimeout),
		service.WithPublisherPool(cfg.PublishWorkers, cfg.PublishQueue, cfg.PublishTimeout),
	}
	if rdb != nil {
		opts = append(opts, service.WithIdempotency(storage.NewRedisAdapter(rdb)))
	}

	var wg sync.WaitGroup
	if cfg.NotifyMode == service.NotifyOutbox {
		opts = append(opts, service.WithOutbox())

		relay := service.NewOutboxRelay(orderStore, publisher, logger, orderMetrics, cfg.OutboxBatchSize, cfg.OutboxInterval)
		wg.Add(1)
		go func() {
			defer wg.Done()
			relay.Run(ctx)
		}()
	}

	orderService := service.NewOrderService(inventoryClient, orderStore, publisher, opts...)

	health := handler.NewHealthHandler(serviceName, logger, probes(db, rdb)...)
	wg.Add(1)
	go func() {
		defer wg.Done()
		health.Run(ctx, cfg.HealthInterval)
	}()

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	health.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("addr", cfg.GRPCAddr), zap.Error(err))
	}

	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	// Initialize HTTP server
	gin.SetMode(gin.ReleaseMode)
	router := handler.NewOrderRouter(handler.NewOrderHandler(orderService, logger), health, metricsHandler, logger)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: otelhttp.NewHandler(router, serviceName),
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr), zap.String("notify_mode", cfg.NotifyMode))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	health.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown", zap.Error(err))
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	// Wait for the relay, then drain queued events before closing the publisher
	wg.Wait()
	orderService.Close()
	if err := publisher.Close(); err != nil {
		logger.Error("failed to close publisher", zap.Error(err))
	}
	logger.Info("workers stopped")

	if rdb != nil {
		rdb.Close()
	}
	db.Close()

	if err := shutdownMetrics(shutdownCtx); err != nil {
		logger.Error("failed to shut down metrics", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("failed to shut down tracing", zap.Error(err))
	}
	logger.Info("connections closed")
}

func probes(db *sql.DB, rdb *redis.Client) []handler.Probe {
	list := []handler.Probe{{Name: "mysql", Check: db.PingContext}}
	if rdb != nil {
		list = append(list, handler.Probe{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	}
	return list
}
