// Package health периодически проверяет доступность downstream-сервисов.
//
// Prober по cron-расписанию (HEALTH_CRON, например "@every 30s")
// вызывает health endpoint каждого target'а через тот же fan-out,
// что и пользовательские запросы, и хранит последний результат.
// Результаты видны в GET /api/v1/targets и в метрике fanout_downstream_up.
//
// Prober только наблюдает: на обработку запросов его результат не влияет.
package health
