package domain

import (
	"time"

	"github.com/google/uuid"
)

// User — запись, которой владеет сам gateway.
//
// User создаётся локальной записью в БД до того, как gateway
// обратится к downstream-сервисам. Результаты downstream-вызовов
// никогда не изменяют User.
type User struct {
	// ID — уникальный идентификатор, назначается при создании.
	ID uuid.UUID `json:"id"`

	// Name — имя пользователя (обязательно).
	// Из него же строятся тела запросов к downstream-сервисам.
	Name string `json:"name"`

	// Email — адрес почты (опционально).
	Email string `json:"email,omitempty"`

	// CreatedAt — время создания записи.
	CreatedAt time.Time `json:"created_at"`
}

// NewUser создаёт User с новым ID.
func NewUser(name, email string) *User {
	return &User{
		ID:        uuid.New(),
		Name:      name,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
}
