// Package cache memoises embeddings in Redis so re-ingested or repeated text
// does not cost another provider call.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/Bhupendraa307/MiniRAG/internal/core"
	"github.com/Bhupendraa307/MiniRAG/internal/logging"
)

const DefaultTTL = 24 * time.Hour

// KV is the slice of a key-value store the embedding cache needs.
// MGet returns one entry per key, nil for a miss.
type KV interface {
	MGet(ctx context.Context, keys []string) ([][]byte, error)
	MSet(ctx context.Context, values map[string][]byte, ttl time.Duration) error
}

// RedisKV implements KV on go-redis.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV connects to url (redis://[:password@]host:port/db) and pings it.
func NewRedisKV(ctx context.Context, url string) (*RedisKV, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &RedisKV{client: client}, nil
}

func (r *RedisKV) Close() error { return r.client.Close() }

func (r *RedisKV) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	out := make([][]byte, len(keys))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[i] = []byte(s)
		}
	}
	return out, nil
}

func (r *RedisKV) MSet(ctx context.Context, values map[string][]byte, ttl time.Duration) error {
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range values {
			pipe.Set(ctx, k, v, ttl)
		}
		return nil
	})
	return err
}

// CachedEmbedder decorates an EmbeddingClient with a read-through cache.
// Cache failures are logged and behave as misses.
type CachedEmbedder struct {
	next   core.EmbeddingClient
	kv     KV
	model  string
	ttl    time.Duration
	logger *zap.Logger
}

var _ core.EmbeddingClient = (*CachedEmbedder)(nil)

func NewCachedEmbedder(next core.EmbeddingClient, kv KV, model string, ttl time.Duration, logger *zap.Logger) *CachedEmbedder {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedEmbedder{
		next:   next,
		kv:     kv,
		model:  model,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "embedding_cache")),
	}
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + c.model + ":" + hex.EncodeToString(sum[:])
}

func (c *CachedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = c.key(t)
	}

	out := make([][]float32, len(texts))
	cached, err := c.kv.MGet(ctx, keys)
	if err != nil {
		c.logger.Warn("Embedding cache read failed", logging.Err(err))
		cached = nil
	}

	var missIdx []int
	for i := range texts {
		if i < len(cached) && cached[i] != nil {
			if v, err := decodeVector(cached[i]); err == nil {
				out[i] = v
				continue
			}
		}
		missIdx = append(missIdx, i)
	}
	if len(missIdx) == 0 {
		return out, nil
	}

	missing := make([]string, len(missIdx))
	for j, i := range missIdx {
		missing[j] = texts[i]
	}
	vectors, err := c.next.EmbedTexts(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missing) {
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d inputs", len(vectors), len(missing))
	}

	writes := make(map[string][]byte, len(missIdx))
	for j, i := range missIdx {
		out[i] = vectors[j]
		writes[keys[i]] = encodeVector(vectors[j])
	}
	if err := c.kv.MSet(ctx, writes, c.ttl); err != nil {
		c.logger.Warn("Embedding cache write failed", logging.Err(err))
	}
	return out, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, errors.New("corrupt cached embedding")
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
