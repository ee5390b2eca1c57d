package llm

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder 记录实际被向量化的文本数量。
type countingEmbedder struct {
	model string
	texts atomic.Int64
}

func (e *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.texts.Add(int64(len(texts)))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (e *countingEmbedder) Model() string { return e.model }
func (e *countingEmbedder) Name() string  { return "counting" }

func setupMiniRedis(t *testing.T) goredis.UniversalClient {
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := goredis.NewClient(&goredis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// TestCachedEmbeddingProvider_PartialHit 测试部分命中时只计算未缓存的文本，且顺序保持。
func TestCachedEmbeddingProvider_PartialHit(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{model: "m1"}
	cached := NewCachedEmbeddingProvider(inner, setupMiniRedis(t), nil)

	first, err := cached.Embed(ctx, []string{"ab", "abcd"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), inner.texts.Load())

	second, err := cached.Embed(ctx, []string{"abc", "ab", "abcd"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), inner.texts.Load(), "只有新文本需要计算")

	assert.Equal(t, first[0], second[1])
	assert.Equal(t, first[1], second[2])
	assert.Equal(t, []float32{3, 1}, second[0])
}

// TestCachedEmbeddingProvider_ModelScopedKeys 测试不同模型的缓存互不干扰。
func TestCachedEmbeddingProvider_ModelScopedKeys(t *testing.T) {
	ctx := context.Background()
	client := setupMiniRedis(t)

	a := &countingEmbedder{model: "a"}
	b := &countingEmbedder{model: "b"}

	_, err := NewCachedEmbeddingProvider(a, client, nil).Embed(ctx, []string{"same"})
	require.NoError(t, err)
	_, err = NewCachedEmbeddingProvider(b, client, nil).Embed(ctx, []string{"same"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), a.texts.Load())
	assert.Equal(t, int64(1), b.texts.Load())
}

func TestCachedEmbeddingProvider_Disabled(t *testing.T) {
	inner := &countingEmbedder{model: "m"}
	cached := NewCachedEmbeddingProvider(inner, nil, nil)

	_, err := cached.Embed(context.Background(), []string{"x"})
	require.NoError(t, err)
	_, err = cached.Embed(context.Background(), []string{"x"})
	require.NoError(t, err)

	assert.Equal(t, int64(2), inner.texts.Load())
	assert.Equal(t, "counting-cached", cached.Name())
	assert.Equal(t, "m", cached.Model())
}
