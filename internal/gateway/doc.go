// Package gateway реализует сценарии gateway поверх локального хранилища
// и параллельных downstream-вызовов.
//
// Каждый сценарий проходит одни и те же стадии:
//
//	Validate → LocalOperation → FanOut → Aggregate
//
// Ошибка локальной операции прерывает сценарий до любых downstream-вызовов.
// Неудачи downstream-вызовов становятся warnings; исключение — прокси
// (ForwardCreate), для которого неудача единственного вызова и есть ответ.
package gateway
