package main

import (
	"context"
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
	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/config"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/observability"
	"github.com/rl1809/storefront/internal/port"
)

const (
	serviceName    = "inventory-service"
	serviceVersion = "1.0.0"
)

func main() {
	cfg, err := config.LoadInventoryService()
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
	metrics, err := observability.NewOrderMetrics(otel.GetMeterProvider())
	if err != nil {
		logger.Fatal("failed to create metrics", zap.Error(err))
	}

	db, err := storage.OpenMySQL(ctx, storage.MySQLConfig{
		DSN:             cfg.MySQLDSN,
		MaxOpenConns:    cfg.MySQLMaxOpen,
		MaxIdleConns:    cfg.MySQLMaxIdle,
		ConnMaxLifetime: cfg.MySQLLifetime,
	})
	if err != nil {
		logger.Fatal("failed to connect mysql", zap.Error(err))
	}
	if err := storage.MigrateInventory(ctx, db, storage.DialectMySQL); err != nil {
		logger.Fatal("failed to migrate inventory schema", zap.Error(err))
	}
	logger.Info("connected to mysql")

	probes := []handler.Probe{{Name: "mysql", Check: db.PingContext}}

	var (
		rdb   *redis.Client
		cache port.CacheRepository
	)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: cfg.RedisPoolSize,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		cache = storage.NewRedisAdapter(rdb)
		probes = append(probes, handler.Probe{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
		logger.Info("connected to redis")
	}

	inventoryService := service.NewInventoryService(storage.NewMySQLInventoryAdapter(db), cache, logger, metrics)

	// Sync stock to Redis
	if err := inventoryService.SyncCache(ctx); err != nil {
		logger.Fatal("failed to sync stock cache", zap.Error(err))
	}

	health := handler.NewHealthHandler(serviceName, logger, probes...)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		health.Run(ctx, cfg.HealthInterval)
	}()

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

	gin.SetMode(gin.ReleaseMode)
	router := handler.NewInventoryRouter(handler.NewInventoryHandler(inventoryService, logger), health, metricsHandler, logger)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: otelhttp.NewHandler(router, serviceName),
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
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
	grpcServer.GracefulStop()
	wg.Wait()

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
