package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/shaiso/Fanout/internal/gateway"
	"github.com/shaiso/Fanout/internal/health"
	"github.com/shaiso/Fanout/internal/idempotency"
	"github.com/shaiso/Fanout/internal/telemetry"
)

// StatusSource — результаты health probe. Реализуется health.Prober.
type StatusSource interface {
	Status(target string) (health.Status, bool)
}

// Pinger проверяет доступность хранилища. Реализуется *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	service     *gateway.Service
	statuses    StatusSource
	readiness   Pinger
	idempotency idempotency.Store
	idemTTL     time.Duration
	metrics     *telemetry.Metrics
	corsOrigin  string
	logger      *slog.Logger
	startedAt   time.Time
}

// Config — конфигурация для создания Handler.
type Config struct {
	Service *gateway.Service

	// Statuses (опционально). Nil — /targets без статусов.
	Statuses StatusSource

	// Readiness (опционально). Nil — /ready всегда отвечает 200.
	Readiness Pinger

	// Idempotency (опционально). Nil — Idempotency-Key игнорируется.
	Idempotency    idempotency.Store
	IdempotencyTTL time.Duration

	// Metrics (опционально).
	Metrics *telemetry.Metrics

	// CORSOrigin — значение Access-Control-Allow-Origin (по умолчанию "*").
	CORSOrigin string

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ttl := cfg.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &Handler{
		service:     cfg.Service,
		statuses:    cfg.Statuses,
		readiness:   cfg.Readiness,
		idempotency: cfg.Idempotency,
		idemTTL:     ttl,
		metrics:     cfg.Metrics,
		corsOrigin:  cfg.CORSOrigin,
		logger:      logger,
		startedAt:   time.Now(),
	}
}
