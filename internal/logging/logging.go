// Package logging создаёт zerolog логгеры сервиса.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New создаёт JSON логгер в stdout с полем component
func New(level, component string) zerolog.Logger {
	return NewWithWriter(os.Stdout, level, component)
}

// NewWithWriter - то же, что New, но с произвольным получателем
func NewWithWriter(w io.Writer, level, component string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	return zerolog.New(w).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

// ParseLevel разбирает уровень логирования. Пустое или неизвестное значение - info.
func ParseLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}
