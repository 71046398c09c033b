package domain

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Target — downstream-сервис, к которому gateway делает вызовы.
//
// Набор targets собирается один раз при старте из конфигурации
// и дальше только читается.
type Target struct {
	// Name — ключ target'а: "items", "products".
	// Совпадает с ключом списка в summary-ответах.
	Name string `json:"name" yaml:"name"`

	// Entity — единственное число сущности: "item", "product".
	// Используется в ключе create-ответа (createdItem) и в warnings.
	Entity string `json:"entity" yaml:"entity"`

	// Service — человекочитаемое имя сервиса для warnings.
	Service string `json:"service" yaml:"service"`

	// BaseURL — базовый адрес сервиса, без завершающего "/".
	BaseURL string `json:"base_url" yaml:"base_url"`

	// CreatePath — путь create endpoint'а (POST {"name": ...}).
	CreatePath string `json:"create_path" yaml:"create_path"`

	// ListPath — путь list endpoint'а (GET, возвращает массив).
	ListPath string `json:"list_path" yaml:"list_path"`

	// HealthPath — путь health endpoint'а (GET, достаточно 2xx).
	HealthPath string `json:"health_path" yaml:"health_path"`

	// Timeout — дедлайн одного вызова. Всегда > 0.
	Timeout time.Duration `json:"timeout" yaml:"-"`
}

// URL склеивает BaseURL и path.
func (t *Target) URL(path string) string {
	if path == "" {
		return t.BaseURL
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return t.BaseURL + path
}

// CreatedKey возвращает ключ create-ответа: "item" → "createdItem".
func (t *Target) CreatedKey() string {
	r, size := utf8.DecodeRuneInString(t.Entity)
	if r == utf8.RuneError {
		return "created"
	}
	return "created" + string(unicode.ToUpper(r)) + t.Entity[size:]
}
