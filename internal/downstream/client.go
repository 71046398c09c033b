package downstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/shaiso/Fanout/internal/domain"
	"github.com/shaiso/Fanout/internal/telemetry"
)

const (
	// defaultTimeout применяется, только если у target'а таймаут не задан.
	// config.Load такого не допускает.
	defaultTimeout  = 5 * time.Second
	maxResponseBody = 10 * 1024 * 1024 // 10 MB
	maxLoggedBody   = 200
)

// Client выполняет один HTTP-вызов к downstream-сервису.
//
// Любой исход нормализуется в domain.Outcome:
//   - 2xx и тело нужной формы      → успех
//   - превышен Target.Timeout      → timeout (даже если ответ пришёл чуть позже)
//   - ошибка соединения            → connection_error
//   - не 2xx                       → non_success_status
//   - тело не парсится / не та форма → decode_error
//
// Client никогда не повторяет вызов.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *telemetry.Metrics
}

// Config — конфигурация Client.
type Config struct {
	// HTTPClient (опционально). Таймаут на уровне http.Client не нужен,
	// дедлайн задаётся на каждый вызов из Target.Timeout.
	HTTPClient *http.Client

	// Metrics (опционально).
	Metrics *telemetry.Metrics

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Client.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		httpClient: httpClient,
		logger:     logger,
		metrics:    cfg.Metrics,
	}
}

// Do выполняет вызов и возвращает его исход.
//
// Отмена ctx вызывающей стороной на вызов не влияет: единственный
// механизм отмены — таймаут target'а.
func (c *Client) Do(ctx context.Context, call domain.Call) domain.Outcome {
	start := time.Now()
	out := c.do(ctx, call)
	out.Duration = time.Since(start)

	c.metrics.ObserveDownstream(out)

	logger := telemetry.WithTarget(
		telemetry.WithRequestID(c.logger, telemetry.RequestIDFromContext(ctx)),
		call.TargetName(),
	)
	if out.Failure != nil {
		logger.Warn("downstream call failed",
			"op", call.Op,
			"method", call.Method,
			"path", call.Path,
			"reason", out.Failure.Reason,
			"status", out.Failure.StatusCode,
			"error", out.Failure.Detail,
			"duration", out.Duration,
		)
	} else {
		logger.Debug("downstream call succeeded",
			"op", call.Op,
			"status", out.StatusCode,
			"duration", out.Duration,
		)
	}

	return out
}

func (c *Client) do(ctx context.Context, call domain.Call) domain.Outcome {
	if call.Target == nil {
		return domain.Failed(call, domain.ReasonConnection, 0, "target is not configured")
	}

	timeout := call.Target.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	deadline, _ := ctx.Deadline()

	req, err := buildRequest(ctx, call)
	if err != nil {
		return domain.Failed(call, domain.ReasonConnection, 0, fmt.Sprintf("build request: %v", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportFailure(ctx, call, deadline, err)
	}
	defer resp.Body.Close()

	// Читаем body с ограничением размера
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return transportFailure(ctx, call, deadline, fmt.Errorf("read response: %w", err))
	}

	// Ответ после дедлайна не принимается, даже успешный
	if expired(ctx, deadline) {
		return domain.Failed(call, domain.ReasonTimeout, 0,
			fmt.Sprintf("response arrived after %s deadline", timeout))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Failed(call, domain.ReasonStatus, resp.StatusCode,
			fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(string(raw), maxLoggedBody)))
	}

	payload, err := decode(raw, call.Shape)
	if err != nil {
		return domain.Failed(call, domain.ReasonDecode, 0, err.Error())
	}

	return domain.Succeeded(call, resp.StatusCode, payload, raw)
}

// buildRequest создаёт HTTP-запрос для call.
func buildRequest(ctx context.Context, call domain.Call) (*http.Request, error) {
	var bodyReader io.Reader
	if call.Body != nil {
		bodyBytes, err := json.Marshal(call.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	method := strings.ToUpper(call.Method)
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, call.Target.URL(call.Path), bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// Заголовки корреляции передаются как есть
	for key, value := range call.Headers {
		req.Header.Set(key, value)
	}

	return req, nil
}

// transportFailure классифицирует ошибку транспорта: timeout или connection_error.
func transportFailure(ctx context.Context, call domain.Call, deadline time.Time, err error) domain.Outcome {
	if expired(ctx, deadline) || errors.Is(err, context.DeadlineExceeded) {
		return domain.Failed(call, domain.ReasonTimeout, 0, err.Error())
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.Failed(call, domain.ReasonTimeout, 0, err.Error())
	}

	return domain.Failed(call, domain.ReasonConnection, 0, err.Error())
}

// expired проверяет, истёк ли дедлайн вызова.
func expired(ctx context.Context, deadline time.Time) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	return !deadline.IsZero() && !time.Now().Before(deadline)
}

// decode парсит тело и проверяет его форму.
// Числа сохраняются как json.Number, чтобы id не превращались в float.
func decode(raw []byte, shape domain.Shape) (any, error) {
	if shape == domain.ShapeNone {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var body any
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response body: %w", err)
	}
	if dec.More() {
		return nil, errors.New("decode response body: trailing data")
	}

	switch shape {
	case domain.ShapeArray:
		if _, ok := body.([]any); !ok {
			return nil, fmt.Errorf("expected JSON array, got %s", kindOf(body))
		}
	default:
		if _, ok := body.(map[string]any); !ok {
			return nil, fmt.Errorf("expected JSON object, got %s", kindOf(body))
		}
	}

	return body, nil
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
