package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Fanout/internal/domain"
	"github.com/shaiso/Fanout/internal/health"
)

// CreateUserRequest — запрос на создание пользователя.
type CreateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// ForwardCreateRequest — тело прокси-запроса к downstream-сервису.
type ForwardCreateRequest struct {
	Name string `json:"name"`
}

// UserResponse — ответ с пользователем.
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// UserFromDomain конвертирует domain.User в UserResponse.
func UserFromDomain(u domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

// TargetResponse — downstream-сервис и результат его последней проверки.
type TargetResponse struct {
	Name       string          `json:"name"`
	Entity     string          `json:"entity"`
	Service    string          `json:"service"`
	BaseURL    string          `json:"base_url"`
	CreatePath string          `json:"create_path"`
	ListPath   string          `json:"list_path"`
	TimeoutMS  int64           `json:"timeout_ms"`
	Health     *HealthResponse `json:"health,omitempty"`
}

// HealthResponse — результат health probe.
type HealthResponse struct {
	Up        bool      `json:"up"`
	Reason    string    `json:"reason,omitempty"`
	LatencyMS int64     `json:"latency_ms"`
	CheckedAt time.Time `json:"checked_at"`
}

// TargetFromDomain конвертирует domain.Target в TargetResponse.
func TargetFromDomain(t *domain.Target) TargetResponse {
	return TargetResponse{
		Name:       t.Name,
		Entity:     t.Entity,
		Service:    t.Service,
		BaseURL:    t.BaseURL,
		CreatePath: t.CreatePath,
		ListPath:   t.ListPath,
		TimeoutMS:  t.Timeout.Milliseconds(),
	}
}

// HealthFromStatus конвертирует health.Status в HealthResponse.
func HealthFromStatus(s health.Status) *HealthResponse {
	return &HealthResponse{
		Up:        s.Up,
		Reason:    s.Reason,
		LatencyMS: s.Latency.Milliseconds(),
		CheckedAt: s.CheckedAt,
	}
}
