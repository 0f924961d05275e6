// Package logging builds the service logger and sanitises user-derived text
// before it reaches log output.
package logging

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

const maxLogLen = 200

// New returns a JSON production logger at the given level ("debug", "info", ...).
func New(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}

var controlReplacer = strings.NewReplacer("\r", " ", "\n", " ", "\t", " ")

// Clean strips line breaks and tabs and caps the length so a single value
// cannot forge or flood log lines.
func Clean(s string) string {
	if s == "" {
		return ""
	}
	cleaned := controlReplacer.Replace(s)
	if utf8.RuneCountInString(cleaned) > maxLogLen {
		return string([]rune(cleaned)[:maxLogLen]) + "..."
	}
	return cleaned
}

// Err is a zap field carrying a sanitised error message.
func Err(err error) zap.Field {
	if err == nil {
		return zap.Skip()
	}
	return zap.String("error", Clean(err.Error()))
}
