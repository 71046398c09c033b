// Package fanout выполняет набор downstream-вызовов параллельно.
//
// Executor запускает все вызовы одновременно и ждёт каждый до его
// собственного исхода. Неудача одного вызова не отменяет и не задерживает
// остальные: итоговое время определяется самым медленным вызовом
// (а он ограничен таймаутом своего target'а).
package fanout
