package core

import (
	"strings"
	"unicode/utf8"
)

// MaxQueryLength is the longest accepted question, in characters.
const MaxQueryLength = 1000

// NormalizeQuery trims q and rejects empty or over-long questions.
func NormalizeQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", &ValidationError{Msg: "Query cannot be empty"}
	}
	if utf8.RuneCountInString(q) > MaxQueryLength {
		return "", &ValidationError{Msg: "Query too long"}
	}
	return q, nil
}
