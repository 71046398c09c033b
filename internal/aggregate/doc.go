// Package aggregate собирает ответ gateway из локального результата
// и исходов downstream-вызовов.
//
// Успешный исход кладёт payload под ключ вызова (createdItem, items),
// неудачный кладёт пустое значение (null или []) и добавляет warning.
// Build никогда не падает из-за частичных неудач.
package aggregate
