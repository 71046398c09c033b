// Package idempotency хранит результаты запросов с заголовком
// Idempotency-Key, чтобы повтор того же запроса не создавал дубликатов.
//
// Первый запрос с ключом захватывает его (Acquired), выполняется и
// сохраняет ответ (Complete). Повтор с тем же телом получает сохранённый
// ответ (Replay), с другим телом — Conflict. Пока первый запрос не
// завершился, повторы получают InProgress.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// HeaderKey — заголовок с ключом идемпотентности.
const HeaderKey = "Idempotency-Key"

// DecisionType — решение по входящему запросу.
type DecisionType string

const (
	DecisionAcquired   DecisionType = "acquired"
	DecisionReplay     DecisionType = "replay"
	DecisionInProgress DecisionType = "in_progress"
	DecisionConflict   DecisionType = "conflict"
)

// Request — ключ запроса и отпечаток его тела.
type Request struct {
	// Scope — пространство ключей (например, "create-user").
	Scope string

	// Key — значение заголовка Idempotency-Key.
	Key string

	// RequestHash — sha256 тела запроса.
	RequestHash string

	// LockTTL — сколько держится захват незавершённого запроса.
	LockTTL time.Duration
}

// Decision — результат Acquire.
type Decision struct {
	Type DecisionType

	// Сохранённый ответ, только для DecisionReplay.
	Response StoredResponse
}

// StoredResponse — сохранённый ответ.
type StoredResponse struct {
	StatusCode  int    `json:"status_code"`
	Body        []byte `json:"body"`
	ContentType string `json:"content_type"`
}

// Store — хранилище ключей идемпотентности.
type Store interface {
	// Acquire пытается захватить ключ.
	Acquire(ctx context.Context, req Request) (Decision, error)

	// Complete сохраняет ответ на ttl.
	Complete(ctx context.Context, req Request, resp StoredResponse, ttl time.Duration) error

	// Release освобождает ключ без сохранения ответа,
	// чтобы клиент мог повторить запрос.
	Release(ctx context.Context, req Request) error
}

// Hash возвращает отпечаток тела запроса.
func Hash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
