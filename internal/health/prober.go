package health

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/Fanout/internal/domain"
	"github.com/shaiso/Fanout/internal/telemetry"
)

// Executor выполняет вызовы параллельно. Реализуется fanout.Executor.
type Executor interface {
	Execute(ctx context.Context, calls []domain.Call) map[string]domain.Outcome
}

// Status — результат последней проверки target'а.
type Status struct {
	Target    string        `json:"target"`
	Up        bool          `json:"up"`
	Reason    string        `json:"reason,omitempty"`
	Latency   time.Duration `json:"latency"`
	CheckedAt time.Time     `json:"checked_at"`
}

// Prober — периодическая проверка targets.
type Prober struct {
	executor Executor
	targets  []*domain.Target
	metrics  *telemetry.Metrics
	logger   *slog.Logger
	spec     string

	mu       sync.RWMutex
	statuses map[string]Status

	cron *cron.Cron
}

// Config — конфигурация Prober.
type Config struct {
	Executor Executor
	Targets  []*domain.Target

	// Spec — cron-расписание. Пусто — только ручной Tick.
	Spec string

	// Metrics (опционально).
	Metrics *telemetry.Metrics

	// Logger
	Logger *slog.Logger
}

// NewProber создаёт Prober. Расписание проверяется сразу.
func NewProber(cfg Config) (*Prober, error) {
	if cfg.Spec != "" {
		if err := ValidateSpec(cfg.Spec); err != nil {
			return nil, err
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Prober{
		executor: cfg.Executor,
		targets:  cfg.Targets,
		metrics:  cfg.Metrics,
		logger:   logger,
		spec:     cfg.Spec,
		statuses: make(map[string]Status, len(cfg.Targets)),
	}, nil
}

// Tick проверяет все targets один раз.
func (p *Prober) Tick(ctx context.Context) {
	calls := make([]domain.Call, 0, len(p.targets))
	for _, t := range p.targets {
		calls = append(calls, domain.NewHealthCall(t))
	}

	outcomes := p.executor.Execute(ctx, calls)
	now := time.Now().UTC()

	var down int
	p.mu.Lock()
	for name, out := range outcomes {
		st := Status{
			Target:    name,
			Up:        out.OK(),
			Latency:   out.Duration,
			CheckedAt: now,
		}
		if out.Failure != nil {
			st.Reason = string(out.Failure.Reason)
			down++
		}
		p.statuses[name] = st
		p.metrics.SetTargetUp(name, st.Up)
	}
	p.mu.Unlock()

	if down > 0 {
		p.logger.Warn("health probe completed", "targets", len(outcomes), "down", down)
	} else {
		p.logger.Debug("health probe completed", "targets", len(outcomes))
	}
}

// Snapshot возвращает результаты последней проверки в порядке имён.
// Targets, которые ещё не проверялись, отсутствуют.
func (p *Prober) Snapshot() []Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Status, 0, len(p.statuses))
	for _, st := range p.statuses {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Target < out[j].Target })
	return out
}

// Status возвращает результат последней проверки target'а.
func (p *Prober) Status(target string) (Status, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	st, ok := p.statuses[target]
	return st, ok
}

// Start делает первую проверку и запускает расписание.
// Останавливается по отмене ctx или через Stop.
func (p *Prober) Start(ctx context.Context) error {
	p.Tick(ctx)

	if p.spec == "" {
		return nil
	}

	c := cron.New(cron.WithParser(cronParser))
	if _, err := c.AddFunc(p.spec, func() { p.Tick(ctx) }); err != nil {
		return err
	}
	p.cron = c
	c.Start()

	p.logger.Info("health prober started", "schedule", p.spec, "targets", len(p.targets))

	go func() {
		<-ctx.Done()
		p.Stop()
	}()
	return nil
}

// Stop останавливает расписание и ждёт текущую проверку.
func (p *Prober) Stop() {
	if p.cron == nil {
		return
	}
	<-p.cron.Stop().Done()
}
