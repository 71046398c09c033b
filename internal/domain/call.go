package domain

import "net/http"

// Operation — что делает вызов с точки зрения gateway.
type Operation string

const (
	// OpCreate — создание записи в downstream-сервисе.
	OpCreate Operation = "create"

	// OpList — чтение списка записей.
	OpList Operation = "list"

	// OpHealth — проверка доступности сервиса.
	OpHealth Operation = "health"
)

// Shape — ожидаемая форма тела успешного ответа.
type Shape string

const (
	// ShapeObject — JSON-объект (create, health).
	ShapeObject Shape = "object"

	// ShapeArray — JSON-массив (list).
	ShapeArray Shape = "array"

	// ShapeNone — тело не разбирается (health: достаточно 2xx).
	ShapeNone Shape = "none"
)

// Empty возвращает значение по умолчанию для target'а,
// вызов к которому не удался: null для объекта, [] для массива.
func (s Shape) Empty() any {
	if s == ShapeArray {
		return []any{}
	}
	return nil
}

// Call — описание одного downstream-вызова.
//
// Call создаётся на каждый входящий запрос и используется один раз.
type Call struct {
	// Target — куда идёт вызов.
	Target *Target

	// Op — операция (используется в warnings и метриках).
	Op Operation

	// Method — HTTP-метод.
	Method string

	// Path — путь относительно Target.BaseURL.
	Path string

	// Body — тело запроса, сериализуется в JSON. Nil — без тела.
	Body any

	// Headers — заголовки, которые передаются как есть
	// (в первую очередь X-Request-Id входящего запроса).
	Headers map[string]string

	// Shape — ожидаемая форма ответа.
	Shape Shape
}

// TargetName возвращает имя target'а или пустую строку.
func (c Call) TargetName() string {
	if c.Target == nil {
		return ""
	}
	return c.Target.Name
}

// NewCreateCall создаёт create-вызов к target.
func NewCreateCall(t *Target, body any, headers map[string]string) Call {
	return Call{
		Target:  t,
		Op:      OpCreate,
		Method:  http.MethodPost,
		Path:    t.CreatePath,
		Body:    body,
		Headers: headers,
		Shape:   ShapeObject,
	}
}

// NewListCall создаёт list-вызов к target.
func NewListCall(t *Target, headers map[string]string) Call {
	return Call{
		Target:  t,
		Op:      OpList,
		Method:  http.MethodGet,
		Path:    t.ListPath,
		Headers: headers,
		Shape:   ShapeArray,
	}
}

// NewHealthCall создаёт health-вызов к target.
func NewHealthCall(t *Target) Call {
	return Call{
		Target: t,
		Op:     OpHealth,
		Method: http.MethodGet,
		Path:   t.HealthPath,
		Shape:  ShapeNone,
	}
}

// ResponseKey возвращает ключ, под которым результат вызова попадает
// в агрегированный ответ: createdItem для create, items для list.
func (c Call) ResponseKey() string {
	if c.Target == nil {
		return ""
	}
	if c.Op == OpCreate {
		return c.Target.CreatedKey()
	}
	return c.Target.Name
}
