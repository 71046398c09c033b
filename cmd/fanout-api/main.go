package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shaiso/Fanout/internal/api"
	"github.com/shaiso/Fanout/internal/config"
	"github.com/shaiso/Fanout/internal/downstream"
	"github.com/shaiso/Fanout/internal/fanout"
	"github.com/shaiso/Fanout/internal/gateway"
	"github.com/shaiso/Fanout/internal/health"
	"github.com/shaiso/Fanout/internal/idempotency"
	"github.com/shaiso/Fanout/internal/mq"
	"github.com/shaiso/Fanout/internal/repo"
	"github.com/shaiso/Fanout/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting fanout-api")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Подключаемся к базе данных
	pool, err := repo.NewPool(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := repo.EnsureSchema(ctx, pool); err != nil {
		logger.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Метрики
	reg := telemetry.NewRegistry()
	metrics := telemetry.NewMetrics(reg)

	// Fan-out
	client := downstream.New(downstream.Config{
		Metrics: metrics,
		Logger:  logger,
	})
	executor := fanout.New(fanout.Config{
		Caller:         client,
		MaxConcurrency: cfg.MaxConcurrency,
		Logger:         logger,
	})

	svcCfg := gateway.Config{
		Store:    repo.NewUserRepo(pool),
		Executor: executor,
		Targets:  cfg.Targets,
		Logger:   logger,
	}

	// RabbitMQ (опционально): события user.created
	if cfg.RabbitMQURL != "" {
		conn, err := mq.NewConnection(cfg.RabbitMQURL, logger)
		if err != nil {
			logger.Warn("rabbitmq unavailable, events disabled", "error", err)
		} else {
			defer conn.Close()
			if err := mq.SetupTopology(ctx, conn); err != nil {
				logger.Warn("failed to setup rabbitmq topology", "error", err)
			}
			svcCfg.Publisher = mq.NewPublisher(conn, logger)
			logger.Info("connected to rabbitmq")
		}
	}

	handlerCfg := api.Config{
		Service:        gateway.NewService(svcCfg),
		Readiness:      pool,
		IdempotencyTTL: cfg.IdempotencyTTL,
		Metrics:        metrics,
		CORSOrigin:     cfg.CORSOrigin,
		Logger:         logger,
	}

	// Redis (опционально): Idempotency-Key
	if cfg.RedisAddr != "" {
		rdb, err := idempotency.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, idempotency disabled", "error", err)
		} else {
			defer rdb.Close()
			handlerCfg.Idempotency = idempotency.NewRedisStore(rdb)
			logger.Info("connected to redis", "addr", cfg.RedisAddr)
		}
	}

	// Health probe
	if cfg.HealthCron != "" {
		prober, err := health.NewProber(health.Config{
			Executor: executor,
			Targets:  cfg.Targets,
			Spec:     cfg.HealthCron,
			Metrics:  metrics,
			Logger:   logger,
		})
		if err != nil {
			logger.Error("invalid HEALTH_CRON", "error", err)
			os.Exit(1)
		}
		if err := prober.Start(ctx); err != nil {
			logger.Error("failed to start health prober", "error", err)
			os.Exit(1)
		}
		defer prober.Stop()
		handlerCfg.Statuses = prober
	}

	handler := api.NewHandler(handlerCfg)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", telemetry.Handler(reg))
	handler.RegisterRoutes(mux)

	addr := ":" + cfg.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", addr, "targets", len(cfg.Targets))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
