package api

import (
	"context"
	"net/http"
	"time"
)

// Summary возвращает всех пользователей и списки всех downstream-сервисов.
// GET /api/v1/summary
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Summary(r.Context())
	if HandleError(w, h.logger, err, "") {
		return
	}

	JSON(w, http.StatusOK, resp)
}

// ListTargets возвращает сконфигурированные downstream-сервисы
// вместе с результатом последней health-проверки.
// GET /api/v1/targets
func (h *Handler) ListTargets(w http.ResponseWriter, _ *http.Request) {
	targets := h.service.Targets()

	result := make([]TargetResponse, len(targets))
	for i, t := range targets {
		result[i] = TargetFromDomain(t)
		if h.statuses == nil {
			continue
		}
		if st, ok := h.statuses.Status(t.Name); ok {
			result[i].Health = HealthFromStatus(st)
		}
	}

	List(w, result, len(result))
}

// Healthz — liveness probe самого gateway.
// GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// readyTimeout — сколько ждём ответа хранилища в /ready.
const readyTimeout = 2 * time.Second

// Ready — readiness probe: gateway готов, если отвечает хранилище.
// GET /ready
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.readiness != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		if err := h.readiness.Ping(ctx); err != nil {
			h.logger.Warn("readiness check failed", "error", err)
			Error(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "database unavailable")
			return
		}
	}

	JSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
