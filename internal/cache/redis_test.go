package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type memKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	readErr error
	failSet bool
}

func newMemKV() *memKV {
	return &memKV{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memKV) MGet(_ context.Context, keys []string) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = m.data[k]
	}
	return out, nil
}

func (m *memKV) MSet(_ context.Context, values map[string][]byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet {
		return errors.New("READONLY replica")
	}
	for k, v := range values {
		m.data[k] = v
		m.ttls[k] = ttl
	}
	return nil
}

type countingEmbedder struct {
	calls [][]string
	err   error
}

func (c *countingEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	c.calls = append(c.calls, texts)
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 0.5}
	}
	return out, nil
}

func TestCachedEmbedder_MissThenHit(t *testing.T) {
	kv := newMemKV()
	next := &countingEmbedder{}
	c := NewCachedEmbedder(next, kv, "text-embedding-004", time.Hour, zaptest.NewLogger(t))
	ctx := context.Background()

	first, err := c.EmbedTexts(ctx, []string{"a", "bbb"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0.5}, {3, 0.5}}, first)
	require.Len(t, next.calls, 1)

	second, err := c.EmbedTexts(ctx, []string{"bbb", "cc", "a"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{3, 0.5}, {2, 0.5}, {1, 0.5}}, second)
	require.Len(t, next.calls, 2)
	assert.Equal(t, []string{"cc"}, next.calls[1], "only misses reach the provider")

	for _, ttl := range kv.ttls {
		assert.Equal(t, time.Hour, ttl)
	}
}

func TestCachedEmbedder_KeysIncludeModel(t *testing.T) {
	a := NewCachedEmbedder(nil, nil, "m1", 0, nil)
	b := NewCachedEmbedder(nil, nil, "m2", 0, nil)

	assert.NotEqual(t, a.key("x"), b.key("x"))
	assert.Regexp(t, `^emb:m1:[0-9a-f]{64}$`, a.key("x"))
	assert.Equal(t, DefaultTTL, a.ttl)
}

func TestCachedEmbedder_CacheErrorsAreMisses(t *testing.T) {
	kv := newMemKV()
	kv.readErr = errors.New("connection refused")
	kv.failSet = true
	next := &countingEmbedder{}
	c := NewCachedEmbedder(next, kv, "m", time.Minute, zaptest.NewLogger(t))

	out, err := c.EmbedTexts(context.Background(), []string{"hello"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{5, 0.5}}, out)
	assert.Len(t, next.calls, 1)
}

func TestCachedEmbedder_CorruptEntryIsRefetched(t *testing.T) {
	kv := newMemKV()
	next := &countingEmbedder{}
	c := NewCachedEmbedder(next, kv, "m", time.Minute, zaptest.NewLogger(t))
	kv.data[c.key("abc")] = []byte{1, 2, 3}

	out, err := c.EmbedTexts(context.Background(), []string{"abc"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{3, 0.5}}, out)
	assert.Len(t, next.calls, 1)
}

func TestCachedEmbedder_ProviderErrorPropagates(t *testing.T) {
	next := &countingEmbedder{err: errors.New("quota")}
	c := NewCachedEmbedder(next, newMemKV(), "m", time.Minute, zaptest.NewLogger(t))

	_, err := c.EmbedTexts(context.Background(), []string{"x"})
	assert.EqualError(t, err, "quota")
}

func TestVectorEncoding(t *testing.T) {
	v := []float32{0, -1.5, 3.25, 1e-7}
	got, err := decodeVector(encodeVector(v))
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = decodeVector(nil)
	assert.Error(t, err)
}
