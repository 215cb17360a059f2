package dispatch

import (
	"os"
	"regexp"
	"strings"
	"sync"

	"files_connector/internal/transfer"
)

const redacted = "[REDACTED]"

// Secret - строка, которая не выводится в логи и JSON
type Secret string

func (s Secret) String() string   { return redacted }
func (s Secret) GoString() string { return redacted }

func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// Reveal возвращает настоящее значение
func (s Secret) Reveal() string { return string(s) }

// Binding - защищённый источник параметров подключения, отдельный
// от параметров операции
type Binding interface {
	Lookup(operationID, name string) (Secret, bool)
}

// ConnectionParameters - параметры подключения из запроса хоста
type ConnectionParameters struct {
	values map[string]any
}

// NewConnectionParameters копирует raw, приводя имена к нижнему регистру
func NewConnectionParameters(raw map[string]any) ConnectionParameters {
	values := make(map[string]any, len(raw))
	for k, v := range raw {
		values[strings.ToLower(k)] = v
	}
	return ConnectionParameters{values: values}
}

// Lookup возвращает значение параметра. Ссылки @appsetting('NAME')
// разрешаются из окружения процесса; неопределённая настройка считается отсутствующей.
func (c ConnectionParameters) Lookup(operationID, name string) (Secret, bool) {
	v, ok := c.values[strings.ToLower(name)]
	if !ok || v == nil {
		return "", false
	}
	resolved, err := ResolveAppSetting(stringify(v))
	if err != nil {
		return "", false
	}
	return Secret(resolved), true
}

var appSettingRef = regexp.MustCompile(`^@appsetting\('([^']+)'\)$`)

// ResolveAppSetting разрешает ссылку вида @appsetting('NAME').
// Прочие значения возвращаются без изменений.
func ResolveAppSetting(value string) (string, error) {
	m := appSettingRef.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return value, nil
	}
	resolved, ok := os.LookupEnv(m[1])
	if !ok {
		return "", transfer.BadRequest("app setting %s is not defined", m[1])
	}
	return resolved, nil
}

// isSensitive - параметры, значения которых вычищаются из сообщений об ошибках
func isSensitive(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "password") ||
		strings.Contains(n, "connectionstring") ||
		strings.Contains(n, "secret") ||
		n == "blobconnection"
}

// boundConnection привязывает Binding к операции и запоминает
// раскрытые секреты, чтобы вычистить их из ошибок
type boundConnection struct {
	binding     Binding
	operationID string

	mu      sync.Mutex
	secrets []string
}

func bind(b Binding, operationID string) *boundConnection {
	if b == nil {
		b = ConnectionParameters{}
	}
	return &boundConnection{binding: b, operationID: operationID}
}

func (c *boundConnection) remember(name, value string) {
	if value == "" || !isSensitive(name) {
		return
	}
	c.mu.Lock()
	c.secrets = append(c.secrets, value)
	c.mu.Unlock()
}

func (c *boundConnection) Secret(name string) (string, bool) {
	s, ok := c.binding.Lookup(c.operationID, name)
	if !ok {
		return "", false
	}
	c.remember(name, s.Reveal())
	return s.Reveal(), true
}

func (c *boundConnection) Bool(name string, def bool) bool {
	s, ok := c.binding.Lookup(c.operationID, name)
	if !ok {
		return def
	}
	if b, ok := parseBool(s.Reveal()); ok {
		return b
	}
	return def
}

// scrub заменяет известные секреты в s
func (c *boundConnection) scrub(s string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, secret := range c.secrets {
		s = strings.ReplaceAll(s, secret, redacted)
	}
	return s
}

var _ transfer.Connection = (*boundConnection)(nil)
