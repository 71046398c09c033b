package telemetry

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// HeaderRequestID — заголовок корреляции запросов.
// Передаётся во все downstream-вызовы без изменений.
const HeaderRequestID = "X-Request-Id"

const ctxRequestID ctxKey = "request_id"

// NewRequestID генерирует новый идентификатор запроса.
func NewRequestID() string {
	return uuid.NewString()
}

// ContextWithRequestID сохраняет request id в контексте.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxRequestID, strings.TrimSpace(id))
}

// RequestIDFromContext возвращает request id или пустую строку.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRequestID).(string); ok {
		return v
	}
	return ""
}

// PropagationHeaders возвращает заголовки, которые нужно передать
// downstream-сервисам для запроса из ctx. Nil, если передавать нечего.
func PropagationHeaders(ctx context.Context) map[string]string {
	id := RequestIDFromContext(ctx)
	if id == "" {
		return nil
	}
	return map[string]string{HeaderRequestID: id}
}
