package core

import (
	"errors"
	"strings"
)

// ErrQuotaExhausted marks provider errors that will not succeed on retry.
var ErrQuotaExhausted = errors.New("quota exhausted")

// ValidationError is a client input problem (4xx).
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// ConfigError is an unusable pipeline setting.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "config: " + e.Msg }

// HardServiceError is a failure with no fallback path (5xx).
type HardServiceError struct {
	Op  string
	Err error
}

func (e *HardServiceError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *HardServiceError) Unwrap() error { return e.Err }

var quotaMarkers = []string{"quota", "insufficient_quota", "resource_exhausted", "resource exhausted"}

// IsQuotaError reports whether err is a quota-exhaustion class failure.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrQuotaExhausted) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range quotaMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
