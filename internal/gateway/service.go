package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/shaiso/Fanout/internal/aggregate"
	"github.com/shaiso/Fanout/internal/domain"
	"github.com/shaiso/Fanout/internal/telemetry"
)

// Ключи локального результата в ответах.
const (
	KeyUser  = "user"
	KeyUsers = "users"
)

// UserStore — локальное хранилище пользователей. Реализуется repo.UserRepo.
type UserStore interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
}

// EventPublisher публикует доменные события. Реализуется mq.Publisher.
type EventPublisher interface {
	PublishUserCreated(ctx context.Context, requestID string, user *domain.User) error
}

// Executor выполняет вызовы параллельно. Реализуется fanout.Executor.
type Executor interface {
	Execute(ctx context.Context, calls []domain.Call) map[string]domain.Outcome
}

// Service — сценарии gateway.
type Service struct {
	store     UserStore
	publisher EventPublisher
	executor  Executor
	targets   []*domain.Target
	logger    *slog.Logger
}

// Config — зависимости Service.
type Config struct {
	Store    UserStore
	Executor Executor
	Targets  []*domain.Target

	// Publisher (опционально). Nil — события не публикуются.
	Publisher EventPublisher

	// Logger
	Logger *slog.Logger
}

// NewService создаёт новый Service.
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		store:     cfg.Store,
		publisher: cfg.Publisher,
		executor:  cfg.Executor,
		targets:   cfg.Targets,
		logger:    logger,
	}
}

// CreateUserInput — данные для создания пользователя.
type CreateUserInput struct {
	Name  string
	Email string
}

// CreateUser создаёт пользователя локально и затем создаёт связанную
// запись в каждом target'е.
//
// Если локальная запись сохранена, результат успешен независимо от
// downstream: неудачные вызовы попадают в warnings.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*aggregate.Response, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationError("name is required")
	}

	user := domain.NewUser(name, strings.TrimSpace(in.Email))
	if err := s.store.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLocalWrite, err)
	}

	requestID := telemetry.RequestIDFromContext(ctx)
	logger := telemetry.WithUserID(telemetry.WithRequestID(s.logger, requestID), user.ID.String())
	logger.Info("user created", "name", user.Name)

	// user.created публикуется параллельно с fan-out
	published := make(chan struct{})
	go func() {
		defer close(published)
		s.publishCreated(ctx, logger, requestID, user)
	}()

	headers := telemetry.PropagationHeaders(ctx)
	body := map[string]string{"name": user.Name}

	calls := make([]domain.Call, 0, len(s.targets))
	for _, t := range s.targets {
		calls = append(calls, domain.NewCreateCall(t, body, headers))
	}

	outcomes := s.executor.Execute(ctx, calls)
	resp := aggregate.Build(KeyUser, user, outcomes)
	<-published

	if len(resp.Warnings) > 0 {
		logger.Warn("user created with partial downstream failures",
			"failed", len(resp.Warnings),
			"targets", len(calls),
		)
	}

	return resp, nil
}

// publishCreated публикует user.created. Ошибка только логируется.
func (s *Service) publishCreated(ctx context.Context, logger *slog.Logger, requestID string, user *domain.User) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishUserCreated(ctx, requestID, user); err != nil {
		logger.Warn("failed to publish user.created", "error", err)
	}
}

// ForwardCreate создаёт запись в одном target'е от имени существующего
// пользователя. Локально ничего не пишется.
//
// Неудача вызова возвращается как *UpstreamError. При успехе возвращается
// исход вызова: его Raw и StatusCode отдаются клиенту как есть.
func (s *Service) ForwardCreate(ctx context.Context, userID uuid.UUID, kind, name string) (domain.Outcome, error) {
	target, ok := s.Target(kind)
	if !ok {
		return domain.Outcome{}, fmt.Errorf("%w: %q", ErrUnknownTarget, kind)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Outcome{}, validationError("name is required")
	}

	if _, err := s.store.GetByID(ctx, userID); err != nil {
		return domain.Outcome{}, fmt.Errorf("get user: %w", err)
	}

	call := domain.NewCreateCall(target, map[string]string{"name": name}, telemetry.PropagationHeaders(ctx))
	out := s.executor.Execute(ctx, []domain.Call{call})[target.Name]

	if !out.OK() {
		return out, &UpstreamError{Target: target, Failure: out.Failure}
	}
	return out, nil
}

// Summary возвращает всех пользователей и списки каждого target'а.
func (s *Service) Summary(ctx context.Context) (*aggregate.Response, error) {
	users, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if users == nil {
		users = []domain.User{}
	}

	outcomes := s.executor.Execute(ctx, s.listCalls(ctx))
	return aggregate.Build(KeyUsers, users, outcomes), nil
}

// UserSummary возвращает пользователя и записи target'ов, созданные для
// него (совпадает поле name). Если пользователя нет, downstream-вызовы
// не выполняются.
func (s *Service) UserSummary(ctx context.Context, userID uuid.UUID) (*aggregate.Response, error) {
	user, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	outcomes := s.executor.Execute(ctx, s.listCalls(ctx))
	for name, out := range outcomes {
		if out.OK() {
			out.Payload = filterByName(out.Payload, user.Name)
			outcomes[name] = out
		}
	}

	return aggregate.Build(KeyUser, user, outcomes), nil
}

// GetUser возвращает пользователя по ID.
func (s *Service) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.store.GetByID(ctx, userID)
}

// ListUsers возвращает всех пользователей.
func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.store.List(ctx)
}

// Targets возвращает сконфигурированные targets.
func (s *Service) Targets() []*domain.Target {
	return s.targets
}

// Target возвращает target по имени.
func (s *Service) Target(name string) (*domain.Target, bool) {
	for _, t := range s.targets {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

func (s *Service) listCalls(ctx context.Context) []domain.Call {
	headers := telemetry.PropagationHeaders(ctx)
	calls := make([]domain.Call, 0, len(s.targets))
	for _, t := range s.targets {
		calls = append(calls, domain.NewListCall(t, headers))
	}
	return calls
}

// filterByName оставляет записи списка с полем name == name.
func filterByName(payload any, name string) []any {
	list, _ := payload.([]any)
	filtered := []any{}
	for _, rec := range list {
		obj, ok := rec.(map[string]any)
		if !ok {
			continue
		}
		if v, _ := obj["name"].(string); v == name {
			filtered = append(filtered, obj)
		}
	}
	return filtered
}
