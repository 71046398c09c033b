// Package api содержит HTTP API gateway.
//
// Структура:
//   - handler.go         — Handler с DI (gateway.Service, prober, idempotency store, logger)
//   - routes.go          — регистрация маршрутов
//   - middleware.go      — middleware (request id, logging, recovery, CORS, metrics)
//   - idempotency.go     — Idempotency-Key для создания пользователя
//   - response.go        — JSON-ответы и преобразование ошибок в HTTP
//   - dto.go             — Data Transfer Objects (request/response)
//   - user_handler.go    — обработчики для /users
//   - summary_handler.go — обработчики для /summary, /targets, /healthz
//
// Ответы create и summary — плоские объекты: локальный результат,
// по ключу на каждый downstream-сервис и warnings.
package api
