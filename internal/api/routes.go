package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		RequestID(),
		Recovery(h.logger),
		CORS(h.corsOrigin),
		Logging(h.logger),
		Metrics(h.metrics),
	)

	// Users
	mux.Handle("GET /api/v1/users", chain(http.HandlerFunc(h.ListUsers)))
	mux.Handle("POST /api/v1/users", chain(h.Idempotent("create-user", http.HandlerFunc(h.CreateUser))))
	mux.Handle("GET /api/v1/users/{id}", chain(http.HandlerFunc(h.GetUser)))
	mux.Handle("GET /api/v1/users/{id}/summary", chain(http.HandlerFunc(h.UserSummary)))
	mux.Handle("POST /api/v1/users/{id}/{kind}", chain(http.HandlerFunc(h.ForwardCreate)))

	// Aggregation
	mux.Handle("GET /api/v1/summary", chain(http.HandlerFunc(h.Summary)))
	mux.Handle("GET /api/v1/targets", chain(http.HandlerFunc(h.ListTargets)))

	// CORS preflight
	mux.Handle("OPTIONS /api/v1/", chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /ready", h.Ready)
}
