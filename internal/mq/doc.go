// Package mq публикует доменные события gateway в RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchange, очереди и binding
//   - publisher.go  — публикация событий
//
// События:
//   - user.created — пользователь создан локально (до fan-out)
//
// Публикация best-effort: gateway не отвечает ошибкой, если брокер
// недоступен.
package mq
