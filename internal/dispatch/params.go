package dispatch

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"files_connector/internal/transfer"
)

// Params - параметры операции с поиском имени без учёта регистра.
// Значения - строки, bool или числа из JSON. Неизвестные параметры игнорируются.
type Params struct {
	values map[string]any
}

// NewParams копирует raw, приводя имена к нижнему регистру
func NewParams(raw map[string]any) Params {
	values := make(map[string]any, len(raw))
	for k, v := range raw {
		values[strings.ToLower(k)] = v
	}
	return Params{values: values}
}

// Lookup возвращает значение параметра. nil считается отсутствующим значением.
func (p Params) Lookup(name string) (any, bool) {
	v, ok := p.values[strings.ToLower(name)]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// String возвращает значение параметра строкой
func (p Params) String(name string) (string, bool) {
	v, ok := p.Lookup(name)
	if !ok {
		return "", false
	}
	return stringify(v), true
}

// Required возвращает непустое значение или BadRequest с именем параметра
func (p Params) Required(name string) (string, error) {
	s, ok := p.String(name)
	if !ok || strings.TrimSpace(s) == "" {
		return "", transfer.BadRequest("parameter %s is required", name)
	}
	return s, nil
}

// Present - как Required, но пустая строка допустима
func (p Params) Present(name string) (string, error) {
	s, ok := p.String(name)
	if !ok {
		return "", transfer.BadRequest("parameter %s is required", name)
	}
	return s, nil
}

// Optional возвращает значение или def
func (p Params) Optional(name, def string) string {
	if s, ok := p.String(name); ok {
		return s
	}
	return def
}

// Bool разбирает логический параметр. Нераспознанное значение даёт def,
// а в строгом режиме - BadRequest.
func (p Params) Bool(name string, def, strict bool) (bool, error) {
	v, ok := p.Lookup(name)
	if !ok {
		return def, nil
	}
	if b, ok := parseBool(v); ok {
		return b, nil
	}
	if strict {
		return false, transfer.BadRequest("parameter %s must be a boolean", name)
	}
	return def, nil
}

func parseBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return parsed, err == nil
	default:
		return false, false
	}
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case json.Number:
		return s.String()
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}
