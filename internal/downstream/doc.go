// Package downstream содержит HTTP-клиент downstream-сервисов.
//
// Client.Do выполняет ровно один вызов domain.Call с дедлайном
// Target.Timeout и возвращает domain.Outcome. Ошибки вызова — это данные
// (domain.Failure), а не error: вызывающая сторона сама решает,
// превращать ли их в warning или в ошибку запроса.
package downstream
