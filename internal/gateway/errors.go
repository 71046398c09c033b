package gateway

import (
	"errors"
	"fmt"

	"github.com/shaiso/Fanout/internal/domain"
)

// Ошибки gateway.
var (
	// ErrValidation — входные данные запроса некорректны.
	ErrValidation = errors.New("validation failed")

	// ErrLocalWrite — не удалось сохранить локальную запись.
	// Fan-out после такой ошибки не выполняется.
	ErrLocalWrite = errors.New("local write failed")

	// ErrUnknownTarget — запрошен target, которого нет в конфигурации.
	ErrUnknownTarget = errors.New("unknown target")
)

// UpstreamError — неудача downstream-вызова в прокси-сценарии.
type UpstreamError struct {
	Target  *domain.Target
	Failure *domain.Failure
}

// Error реализует интерфейс error. Детали ошибки в текст не попадают.
func (e *UpstreamError) Error() string {
	service := "downstream"
	if e.Target != nil {
		service = e.Target.Service
	}
	return fmt.Sprintf("%s: %s", service, e.Failure.Reason.Describe(e.Failure.StatusCode))
}

// Unwrap возвращает исходный Failure.
func (e *UpstreamError) Unwrap() error {
	return e.Failure
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
