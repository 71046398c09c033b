package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/shaiso/Fanout/internal/idempotency"
	"github.com/shaiso/Fanout/internal/telemetry"
)

// idempotencyLockTTL — сколько держится захват ключа незавершённым запросом.
const idempotencyLockTTL = 30 * time.Second

// HeaderReplayed помечает ответ, отданный из хранилища идемпотентности.
const HeaderReplayed = "Idempotent-Replayed"

// Idempotent оборачивает next поддержкой заголовка Idempotency-Key.
//
// Без заголовка или без хранилища запрос проходит как есть.
// Ответы 5xx не сохраняются: ключ освобождается, и клиент может повторить.
func (h *Handler) Idempotent(scope string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(idempotency.HeaderKey)
		if key == "" || h.idempotency == nil {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			BadRequest(w, "invalid request body")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		logger := telemetry.WithRequestID(h.logger, telemetry.RequestIDFromContext(r.Context()))

		req := idempotency.Request{
			Scope:       scope,
			Key:         key,
			RequestHash: idempotency.Hash(body),
			LockTTL:     idempotencyLockTTL,
		}

		decision, err := h.idempotency.Acquire(r.Context(), req)
		if err != nil {
			// Хранилище недоступно — выполняем запрос без идемпотентности
			logger.Warn("idempotency store unavailable", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		switch decision.Type {
		case idempotency.DecisionReplay:
			stored := decision.Response
			if stored.ContentType != "" {
				w.Header().Set("Content-Type", stored.ContentType)
			}
			w.Header().Set(HeaderReplayed, "true")
			w.WriteHeader(stored.StatusCode)
			w.Write(stored.Body)
			return
		case idempotency.DecisionInProgress:
			Conflict(w, "request with this Idempotency-Key is still in progress")
			return
		case idempotency.DecisionConflict:
			Conflict(w, "Idempotency-Key was already used with a different request body")
			return
		}

		rec := &recordingWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		// Запрос уже обработан, отмена клиента не должна потерять результат
		ctx := context.WithoutCancel(r.Context())
		if rec.status >= http.StatusInternalServerError {
			if err := h.idempotency.Release(ctx, req); err != nil {
				logger.Warn("failed to release idempotency key", "error", err)
			}
			return
		}

		stored := idempotency.StoredResponse{
			StatusCode:  rec.status,
			Body:        rec.body.Bytes(),
			ContentType: rec.Header().Get("Content-Type"),
		}
		if err := h.idempotency.Complete(ctx, req, stored, h.idemTTL); err != nil {
			logger.Warn("failed to store idempotent response", "error", err)
		}
	})
}

// recordingWriter пишет ответ клиенту и параллельно копирует его.
type recordingWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (rw *recordingWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recordingWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}
