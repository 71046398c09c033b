package aggregate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shaiso/Fanout/internal/domain"
)

// Response — агрегированный ответ.
//
// В JSON это плоский объект: первичный ключ, затем ключи targets
// в отсортированном порядке, затем warnings (всегда массив).
type Response struct {
	// PrimaryKey — ключ локального результата: "user" или "users".
	PrimaryKey string

	// Primary — локальный результат.
	Primary any

	// PerTarget — ключ ответа → payload или пустое значение.
	PerTarget map[string]any

	// Warnings — по одному на каждый неудачный вызов.
	Warnings []string
}

// Build собирает Response.
//
// Исходы обрабатываются в порядке имён targets, поэтому для одинаковых
// входных данных ответ совпадает побайтово.
func Build(primaryKey string, primary any, outcomes map[string]domain.Outcome) *Response {
	resp := &Response{
		PrimaryKey: primaryKey,
		Primary:    primary,
		PerTarget:  make(map[string]any, len(outcomes)),
		Warnings:   []string{},
	}

	names := make([]string, 0, len(outcomes))
	for name := range outcomes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		out := outcomes[name]
		key := out.Call.ResponseKey()
		if key == "" {
			key = name
		}

		if out.OK() {
			resp.PerTarget[key] = out.Payload
			continue
		}

		resp.PerTarget[key] = out.Call.Shape.Empty()
		resp.Warnings = append(resp.Warnings, Warning(out))
	}

	return resp
}

// Warning формирует текст warning'а для неудачного исхода:
//
//	Failed to create item in items-service: upstream status 500
//
// Текст содержит только категорию причины, без деталей ошибки.
func Warning(out domain.Outcome) string {
	verb, entity, service := "call", out.Call.TargetName(), out.Call.TargetName()
	if t := out.Call.Target; t != nil {
		service = t.Service
		switch out.Call.Op {
		case domain.OpCreate:
			verb, entity = "create", t.Entity
		case domain.OpList:
			verb, entity = "fetch", t.Name
		case domain.OpHealth:
			verb, entity = "check", "health"
		}
	}

	reason := "unknown error"
	if out.Failure != nil {
		reason = out.Failure.Reason.Describe(out.Failure.StatusCode)
	}

	return fmt.Sprintf("Failed to %s %s in %s: %s", verb, entity, service, reason)
}

// MarshalJSON сериализует Response в плоский объект с детерминированным
// порядком ключей.
func (r *Response) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	if err := writeField(&buf, r.PrimaryKey, r.Primary); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(r.PerTarget))
	for key := range r.PerTarget {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		buf.WriteByte(',')
		if err := writeField(&buf, key, r.PerTarget[key]); err != nil {
			return nil, err
		}
	}

	warnings := r.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	buf.WriteByte(',')
	if err := writeField(&buf, "warnings", warnings); err != nil {
		return nil, err
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeField(buf *bytes.Buffer, key string, value any) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}
