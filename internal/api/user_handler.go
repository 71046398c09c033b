package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/Fanout/internal/gateway"
)

// maxBodyBytes ограничивает размер тела входящего запроса.
const maxBodyBytes = 1 << 20

// ListUsers возвращает список всех пользователей.
// GET /api/v1/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if HandleError(w, h.logger, err, "") {
		return
	}

	result := make([]UserResponse, len(users))
	for i, u := range users {
		result[i] = UserFromDomain(u)
	}

	List(w, result, len(result))
}

// GetUser возвращает пользователя по ID.
// GET /api/v1/users/{id}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid user id")
		return
	}

	user, err := h.service.GetUser(r.Context(), id)
	if HandleError(w, h.logger, err, "user not found") {
		return
	}

	Success(w, UserFromDomain(*user))
}

// CreateUser создаёт пользователя и связанные записи во всех
// downstream-сервисах.
// POST /api/v1/users
//
// 201 возвращается, как только пользователь сохранён, даже если
// все downstream-вызовы не удались: неудачи описаны в warnings.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	resp, err := h.service.CreateUser(r.Context(), gateway.CreateUserInput{
		Name:  req.Name,
		Email: req.Email,
	})
	if HandleError(w, h.logger, err, "") {
		return
	}

	JSON(w, http.StatusCreated, resp)
}

// ForwardCreate создаёт запись в одном downstream-сервисе для
// существующего пользователя.
// POST /api/v1/users/{id}/{kind}
//
// Ответ downstream-сервиса отдаётся как есть; при неудаче вызова — 502.
func (h *Handler) ForwardCreate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid user id")
		return
	}

	kind := r.PathValue("kind")
	if _, ok := h.service.Target(kind); !ok {
		NotFound(w, "unknown kind: "+kind)
		return
	}

	var req ForwardCreateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	out, err := h.service.ForwardCreate(r.Context(), id, kind, req.Name)
	if HandleError(w, h.logger, err, "user not found") {
		return
	}

	Raw(w, out.StatusCode, out.Raw)
}

// UserSummary возвращает пользователя и его записи во всех
// downstream-сервисах.
// GET /api/v1/users/{id}/summary
func (h *Handler) UserSummary(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid user id")
		return
	}

	resp, err := h.service.UserSummary(r.Context(), id)
	if HandleError(w, h.logger, err, "user not found") {
		return
	}

	JSON(w, http.StatusOK, resp)
}
