package logging

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "report.pdf", "report.pdf"},
		{"control characters", "line1\nline2\r\tend", "line1 line2  end"},
		{"truncated", strings.Repeat("a", 250), strings.Repeat("a", 200) + "..."},
		{"exact limit", strings.Repeat("b", 200), strings.Repeat("b", 200)},
		{"multibyte under limit", strings.Repeat("é", 200), strings.Repeat("é", 200)},
		{"multibyte truncated", "a" + strings.Repeat("é", 250), "a" + strings.Repeat("é", 199) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestClean_KeepsValidUTF8(t *testing.T) {
	out := Clean("a" + strings.Repeat("日本", 150))
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, maxLogLen+3, utf8.RuneCountInString(out))
}

func TestErrField(t *testing.T) {
	f := Err(errors.New("boom\nforged line"))
	assert.Equal(t, "error", f.Key)
	assert.Equal(t, "boom forged line", f.String)
}

func TestNew(t *testing.T) {
	logger, err := New("DEBUG")
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = New("chatty")
	assert.Error(t, err)
}
