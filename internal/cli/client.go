package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// UserResponse — пользователь из API.
type UserResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	CreatedAt string `json:"created_at"`
}

// TargetResponse — downstream-сервис из API.
type TargetResponse struct {
	Name       string          `json:"name"`
	Entity     string          `json:"entity"`
	Service    string          `json:"service"`
	BaseURL    string          `json:"base_url"`
	CreatePath string          `json:"create_path"`
	ListPath   string          `json:"list_path"`
	TimeoutMS  int64           `json:"timeout_ms"`
	Health     *HealthResponse `json:"health,omitempty"`
}

// HealthResponse — результат health probe.
type HealthResponse struct {
	Up        bool   `json:"up"`
	Reason    string `json:"reason,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
	CheckedAt string `json:"checked_at"`
}

// Aggregated — агрегированный ответ (create, summary).
//
// Fields содержит все ключи, кроме warnings, в исходном виде.
type Aggregated struct {
	Fields   map[string]json.RawMessage
	Warnings []string
}

// UnmarshalJSON разбирает плоский объект ответа.
func (a *Aggregated) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	if raw, ok := fields["warnings"]; ok {
		if err := json.Unmarshal(raw, &a.Warnings); err != nil {
			return fmt.Errorf("decode warnings: %w", err)
		}
		delete(fields, "warnings")
	}
	a.Fields = fields
	return nil
}

// MarshalJSON собирает объект обратно (для --json).
func (a Aggregated) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(a.Fields)+1)
	for k, v := range a.Fields {
		out[k] = v
	}
	warnings := a.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	out["warnings"] = warnings
	return json.Marshal(out)
}

// Keys возвращает ключи ответа в алфавитном порядке.
func (a *Aggregated) Keys() []string {
	keys := make([]string, 0, len(a.Fields))
	for k := range a.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError — ошибка, которую вернул gateway.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// --- Client ---

// Client — HTTP-клиент для gateway API.
type Client struct {
	baseURL    string
	requestID  string
	httpClient *http.Client
}

// NewClient создаёт клиент для API. requestID (опционально)
// отправляется в X-Request-Id каждого запроса.
func NewClient(baseURL, requestID string) *Client {
	return &Client{
		baseURL:   baseURL,
		requestID: requestID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Users ---

// ListUsers возвращает всех пользователей.
func (c *Client) ListUsers() ([]UserResponse, error) {
	var users []UserResponse
	err := c.list("/api/v1/users", &users)
	return users, err
}

// GetUser возвращает пользователя по ID.
func (c *Client) GetUser(id string) (*UserResponse, error) {
	var user UserResponse
	err := c.get("/api/v1/users/"+id, &user)
	return &user, err
}

// CreateUser создаёт пользователя. idempotencyKey (опционально)
// передаётся в заголовке Idempotency-Key.
func (c *Client) CreateUser(name, email, idempotencyKey string) (*Aggregated, error) {
	body := map[string]string{"name": name}
	if email != "" {
		body["email"] = email
	}

	headers := map[string]string{}
	if idempotencyKey != "" {
		headers["Idempotency-Key"] = idempotencyKey
	}

	var result Aggregated
	err := c.doRaw(http.MethodPost, "/api/v1/users", body, headers, &result)
	return &result, err
}

// Forward создаёт запись kind в downstream-сервисе для пользователя.
// Возвращает тело ответа сервиса как есть.
func (c *Client) Forward(userID, kind, name string) (json.RawMessage, error) {
	var result json.RawMessage
	err := c.doRaw(http.MethodPost, "/api/v1/users/"+userID+"/"+kind, map[string]string{"name": name}, nil, &result)
	return result, err
}

// UserSummary возвращает пользователя и его записи во всех сервисах.
func (c *Client) UserSummary(userID string) (*Aggregated, error) {
	var result Aggregated
	err := c.doRaw(http.MethodGet, "/api/v1/users/"+userID+"/summary", nil, nil, &result)
	return &result, err
}

// --- Aggregation ---

// Summary возвращает всех пользователей и списки всех сервисов.
func (c *Client) Summary() (*Aggregated, error) {
	var result Aggregated
	err := c.doRaw(http.MethodGet, "/api/v1/summary", nil, nil, &result)
	return &result, err
}

// ListTargets возвращает downstream-сервисы.
func (c *Client) ListTargets() ([]TargetResponse, error) {
	var targets []TargetResponse
	err := c.list("/api/v1/targets", &targets)
	return targets, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	var dr dataResponse
	if err := c.doRaw(http.MethodGet, path, nil, nil, &dr); err != nil {
		return err
	}
	return json.Unmarshal(dr.Data, result)
}

func (c *Client) list(path string, result any) error {
	var lr listResponse
	if err := c.doRaw(http.MethodGet, path, nil, nil, &lr); err != nil {
		return err
	}
	return json.Unmarshal(lr.Data, result)
}

// doRaw выполняет запрос и декодирует тело ответа в result без обёрток.
func (c *Client) doRaw(method, path string, body any, headers map[string]string, result any) error {
	resp, err := c.do(method, path, body, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) do(method, path string, body any, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.requestID != "" {
		req.Header.Set("X-Request-Id", c.requestID)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err == nil {
		apiErr.Code = er.Error.Code
		apiErr.Message = er.Error.Message
	}
	return apiErr
}
