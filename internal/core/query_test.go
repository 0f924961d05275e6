package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr string
	}{
		{"trimmed", "  what is go?\n", "what is go?", ""},
		{"blank", " \t\n", "", "Query cannot be empty"},
		{"at limit in runes", strings.Repeat("é", MaxQueryLength), strings.Repeat("é", MaxQueryLength), ""},
		{"too long", strings.Repeat("a", MaxQueryLength+1), "", "Query too long"},
		{"padding not counted", "  " + strings.Repeat("a", MaxQueryLength) + "  ", strings.Repeat("a", MaxQueryLength), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeQuery(tt.in)
			if tt.wantErr != "" {
				var verr *ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, tt.wantErr, verr.Msg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
