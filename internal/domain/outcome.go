package domain

import (
	"fmt"
	"time"
)

// FailureReason — категория неудачного downstream-вызова.
//
// Набор закрытый: других причин не бывает.
type FailureReason string

const (
	// ReasonTimeout — вызов не уложился в Target.Timeout.
	ReasonTimeout FailureReason = "timeout"

	// ReasonConnection — ошибка соединения (DNS, refused, reset).
	ReasonConnection FailureReason = "connection_error"

	// ReasonStatus — сервис ответил не 2xx.
	ReasonStatus FailureReason = "non_success_status"

	// ReasonDecode — 2xx, но тело не соответствует ожидаемой форме.
	ReasonDecode FailureReason = "decode_error"
)

// Describe возвращает короткое описание категории для warnings.
// Детали ошибки сюда не попадают.
func (r FailureReason) Describe(statusCode int) string {
	switch r {
	case ReasonTimeout:
		return "timeout"
	case ReasonConnection:
		return "connection error"
	case ReasonStatus:
		return fmt.Sprintf("upstream status %d", statusCode)
	case ReasonDecode:
		return "invalid response"
	default:
		return string(r)
	}
}

// Failure — неудачный исход вызова.
type Failure struct {
	// Reason — категория.
	Reason FailureReason

	// StatusCode — HTTP-код ответа (только для ReasonStatus).
	StatusCode int

	// Detail — полный текст ошибки. Только для логов.
	Detail string
}

// Error реализует интерфейс error.
func (f *Failure) Error() string {
	if f.Detail == "" {
		return string(f.Reason)
	}
	return string(f.Reason) + ": " + f.Detail
}

// Outcome — результат выполнения одного Call.
//
// Ровно одно из двух: Failure == nil (успех, Payload заполнен)
// или Failure != nil (Payload пустой).
type Outcome struct {
	// Call — вызов, результатом которого является outcome.
	Call Call

	// Payload — распарсенное тело ответа (map[string]any или []any).
	Payload any

	// Raw — тело ответа как есть (только при успехе).
	Raw []byte

	// StatusCode — HTTP-код успешного ответа.
	StatusCode int

	// Failure — причина неудачи, nil при успехе.
	Failure *Failure

	// Duration — сколько длился вызов.
	Duration time.Duration
}

// OK возвращает true, если вызов успешен.
func (o Outcome) OK() bool {
	return o.Failure == nil
}

// Succeeded создаёт успешный Outcome.
func Succeeded(call Call, statusCode int, payload any, raw []byte) Outcome {
	return Outcome{
		Call:       call,
		Payload:    payload,
		Raw:        raw,
		StatusCode: statusCode,
	}
}

// Failed создаёт неудачный Outcome.
func Failed(call Call, reason FailureReason, statusCode int, detail string) Outcome {
	return Outcome{
		Call: call,
		Failure: &Failure{
			Reason:     reason,
			StatusCode: statusCode,
			Detail:     detail,
		},
	}
}
