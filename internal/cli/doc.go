// Package cli реализует инструмент командной строки fanout.
//
// CLI — клиентская утилита для gateway API. Работает через HTTP
// и не импортирует внутренние пакеты gateway.
//
// # Client
//
// HTTP-клиент API. Разбирает три формы ответа:
//   - {"data": ...} и {"data": [...], "total": N} — ресурсы gateway
//   - плоский агрегированный объект (create, summary) — как есть
//   - {"error": {"code", "message"}} — ошибки
//
//	client := cli.NewClient("http://localhost:8080", "")
//	users, err := client.ListUsers()
//
// # Output
//
// Таблицы (text/tabwriter) по умолчанию, JSON с флагом --json.
// Данные идут в stdout, сообщения и warnings — в stderr:
//
//	fanout user create --name alice --json | jq .createdItem
//
// # Commands
//
//   - user: list, show, create, forward, summary
//   - summary
//   - targets
package cli
