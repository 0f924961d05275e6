package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("COHERE_API_KEY", "cohere-key")
}

func TestFromEnv_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 150, cfg.ChunkOverlap)
	assert.Equal(t, 10, cfg.TopK)
	assert.Equal(t, 5, cfg.RerankTopK)
	assert.Equal(t, 3, cfg.EmbedMaxRetries)
	assert.Equal(t, 768, cfg.EmbeddingDimension)
	assert.Equal(t, VectorBackendSQLite, cfg.VectorBackend)
	assert.Equal(t, 30*time.Second, cfg.ServiceTimeout)
	assert.Equal(t, "8000", cfg.HTTPPort)
}

func TestFromEnv_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("CHUNK_SIZE", "200")
	t.Setenv("CHUNK_OVERLAP", "20")
	t.Setenv("SERVICE_TIMEOUT", "5s")
	t.Setenv("TOP_K", " 7 ")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 200, cfg.ChunkSize)
	assert.Equal(t, 20, cfg.ChunkOverlap)
	assert.Equal(t, 5*time.Second, cfg.ServiceTimeout)
	assert.Equal(t, 7, cfg.TopK)
}

func TestFromEnv_MalformedValues(t *testing.T) {
	tests := []struct {
		key, value, reason string
	}{
		{"CHUNK_SIZE", "abc", "not an integer"},
		{"TOP_K", "ten", "not an integer"},
		{"EMBED_RATE_LIMIT", "fast", "not a number"},
		{"SERVICE_TIMEOUT", "30", "not a duration (e.g. 30s, 24h)"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.value)

			cfg, err := FromEnv()
			require.Error(t, err)
			assert.Nil(t, cfg)

			var invalid *InvalidError
			require.True(t, errors.As(err, &invalid))
			assert.Equal(t, tt.key, invalid.Key)
			assert.Equal(t, tt.reason, invalid.Reason)
		})
	}
}

func TestFromEnv_EmptyNumericUsesDefault(t *testing.T) {
	setRequired(t)
	t.Setenv("CHUNK_SIZE", "")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.ChunkSize)
}

func TestFromEnv_MissingVariablesAreEnumerated(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("COHERE_API_KEY", "")
	t.Setenv("VECTOR_BACKEND", "weaviate")
	t.Setenv("WEAVIATE_HOST", "")

	_, err := FromEnv()
	require.Error(t, err)

	var missing *MissingEnvError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"GEMINI_API_KEY", "COHERE_API_KEY", "WEAVIATE_HOST"}, missing.Vars)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY, COHERE_API_KEY, WEAVIATE_HOST")
}

func TestFromEnv_InvalidChunking(t *testing.T) {
	setRequired(t)
	t.Setenv("CHUNK_SIZE", "100")
	t.Setenv("CHUNK_OVERLAP", "100")

	_, err := FromEnv()

	var invalid *InvalidError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "CHUNK_OVERLAP", invalid.Key)
}

func TestFromEnv_UnknownBackend(t *testing.T) {
	setRequired(t)
	t.Setenv("VECTOR_BACKEND", "pinecone")

	_, err := FromEnv()

	var invalid *InvalidError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "VECTOR_BACKEND", invalid.Key)
}
