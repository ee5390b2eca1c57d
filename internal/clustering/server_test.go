package clusteringsvc

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-cluster/pkg/llm"
	"github.com/kart-io/sentinel-cluster/pkg/llm/resilience"
	clusteringopts "github.com/kart-io/sentinel-cluster/pkg/options/clustering"
	llmopts "github.com/kart-io/sentinel-cluster/pkg/options/llm"
	redisopts "github.com/kart-io/sentinel-cluster/pkg/options/redis"
)

func TestServiceConfig(t *testing.T) {
	o := clusteringopts.NewOptions()
	o.MinItems = 7
	o.MergeThreshold = 0.6
	o.NotifyAfter = 2 * time.Minute
	o.EmbedBatchSize = 64
	o.ContextTurns = 1
	o.Eps = 0.3
	o.PCADimensions = 16
	o.MaxSamples = 10
	o.SummarizeConcurrency = 4
	o.Seed = 99

	cfg := serviceConfig(o)
	assert.Equal(t, 7, cfg.MinItems)
	assert.Equal(t, 0.6, cfg.MergeThreshold)
	assert.Equal(t, 2*time.Minute, cfg.NotifyAfter)
	assert.Equal(t, 64, cfg.Resolver.EmbedBatchSize)
	assert.Equal(t, 1, cfg.Condenser.ContextTurns)
	assert.Equal(t, 0.3, cfg.Clusterer.Eps)
	assert.Equal(t, 16, cfg.Clusterer.PCADimensions)
	assert.Equal(t, int64(99), cfg.Clusterer.Seed)
	assert.Equal(t, 10, cfg.Summarizer.MaxSamples)
	assert.Equal(t, 4, cfg.Summarizer.Concurrency)
	assert.Equal(t, int64(99), cfg.Summarizer.Seed)
	assert.Positive(t, cfg.NotifyTimeout, "通知超时沿用默认值")
}

// TestEmbedderFactory 测试按模型构建的供应商依次包装重试与缓存。
func TestEmbedderFactory(t *testing.T) {
	opts := llmopts.NewEmbeddingOptions()

	tests := []struct {
		name      string
		resilient bool
		redis     bool
		check     func(t *testing.T, p llm.EmbeddingProvider)
	}{
		{"裸供应商", false, false, func(t *testing.T, p llm.EmbeddingProvider) {
			assert.Equal(t, "ollama", p.Name())
		}},
		{"重试熔断", true, false, func(t *testing.T, p llm.EmbeddingProvider) {
			assert.IsType(t, &resilience.EmbeddingProvider{}, p)
		}},
		{"缓存在最外层", true, true, func(t *testing.T, p llm.EmbeddingProvider) {
			assert.IsType(t, &llm.CachedEmbeddingProvider{}, p)
			assert.Equal(t, "ollama-resilient-cached", p.Name())
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts.Resilient = tt.resilient
			var client goredis.UniversalClient
			if tt.redis {
				mr := miniredis.RunT(t)
				rc := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
				t.Cleanup(func() { _ = rc.Close() })
				client = rc
			}

			p, err := embedderFactory(opts, client, llm.DefaultEmbeddingCacheConfig())("mxbai-embed-large")
			require.NoError(t, err)
			assert.Equal(t, "mxbai-embed-large", p.Model())
			tt.check(t, p)
		})
	}
}

func TestEmbedderFactory_UnknownProvider(t *testing.T) {
	opts := llmopts.NewEmbeddingOptions()
	opts.Provider = "nope"
	_, err := embedderFactory(opts, nil, nil)("m")
	assert.Error(t, err)
}

// TestCacheConfig 测试向量缓存参数取自 Redis 配置，零值回落到默认。
func TestCacheConfig(t *testing.T) {
	o := redisopts.NewOptions()
	o.CacheTTL = time.Hour
	o.CacheKeyPrefix = "t:"
	cfg := cacheConfig(o)
	assert.Equal(t, time.Hour, cfg.TTL)
	assert.Equal(t, "t:", cfg.KeyPrefix)

	o.CacheTTL = 0
	o.CacheKeyPrefix = ""
	cfg = cacheConfig(o)
	assert.Equal(t, llm.DefaultEmbeddingCacheConfig().TTL, cfg.TTL)
	assert.Equal(t, llm.DefaultEmbeddingCacheConfig().KeyPrefix, cfg.KeyPrefix)
}
