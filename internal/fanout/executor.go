package fanout

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Fanout/internal/domain"
)

// Caller выполняет один вызов. Реализуется downstream.Client.
type Caller interface {
	Do(ctx context.Context, call domain.Call) domain.Outcome
}

// Executor — параллельный исполнитель вызовов.
type Executor struct {
	caller Caller
	limit  int
	logger *slog.Logger
}

// Config — конфигурация Executor.
type Config struct {
	// Caller выполняет отдельные вызовы.
	Caller Caller

	// MaxConcurrency ограничивает число одновременных вызовов
	// в одном Execute. 0 — без ограничения (по умолчанию).
	// При лимите меньше числа targets лишние вызовы ждут освобождения
	// слота, и задержка запроса растёт до суммы таймаутов волн.
	MaxConcurrency int

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Executor.
func New(cfg Config) *Executor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{
		caller: cfg.Caller,
		limit:  cfg.MaxConcurrency,
		logger: logger,
	}
}

// Execute выполняет calls параллельно и возвращает исходы по имени target'а.
//
// В результате ровно одна запись на каждый вызов. Пустой набор вызовов
// даёт пустую map без сетевой активности. Имена target'ов в calls
// должны быть уникальны.
func (e *Executor) Execute(ctx context.Context, calls []domain.Call) map[string]domain.Outcome {
	results := make(map[string]domain.Outcome, len(calls))
	if len(calls) == 0 {
		return results
	}

	// Каждая горутина пишет только в свой слот
	outcomes := make([]domain.Outcome, len(calls))

	// errgroup.Group без WithContext: ошибка одного вызова
	// не должна отменять соседей. Горутины всегда возвращают nil.
	var g errgroup.Group
	if e.limit > 0 {
		g.SetLimit(e.limit)
	}

	for i, call := range calls {
		g.Go(func() error {
			outcomes[i] = e.call(ctx, call)
			return nil
		})
	}
	_ = g.Wait()

	for _, out := range outcomes {
		results[out.Call.TargetName()] = out
	}

	return results
}

// call выполняет один вызов, превращая panic в connection_error.
func (e *Executor) call(ctx context.Context, call domain.Call) (out domain.Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error("panic in downstream call",
				"target", call.TargetName(),
				"op", call.Op,
				"panic", rec,
			)
			out = domain.Failed(call, domain.ReasonConnection, 0, fmt.Sprintf("panic: %v", rec))
		}
	}()

	out = e.caller.Do(ctx, call)
	// Исход всегда относится к своему вызову
	out.Call = call
	return out
}
