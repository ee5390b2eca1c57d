// Package clusteringsvc wires the intent-clustering pipeline to its backing services.
package clusteringsvc

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kart-io/logger"
	"github.com/kart-io/version"
	goredis "github.com/redis/go-redis/v9"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/sentinel-cluster/internal/clustering/biz"
	"github.com/kart-io/sentinel-cluster/internal/clustering/metrics"
	"github.com/kart-io/sentinel-cluster/internal/clustering/store"
	"github.com/kart-io/sentinel-cluster/internal/model"
	"github.com/kart-io/sentinel-cluster/pkg/component/mongodb"
	"github.com/kart-io/sentinel-cluster/pkg/component/redis"
	"github.com/kart-io/sentinel-cluster/pkg/infra/pool"
	"github.com/kart-io/sentinel-cluster/pkg/infra/tracing"
	"github.com/kart-io/sentinel-cluster/pkg/llm"
	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/sentinel-cluster/pkg/llm/ollama"
	_ "github.com/kart-io/sentinel-cluster/pkg/llm/openai"
	"github.com/kart-io/sentinel-cluster/pkg/llm/resilience"
	clusteringopts "github.com/kart-io/sentinel-cluster/pkg/options/clustering"
	llmopts "github.com/kart-io/sentinel-cluster/pkg/options/llm"
	logopts "github.com/kart-io/sentinel-cluster/pkg/options/logger"
	mongoopts "github.com/kart-io/sentinel-cluster/pkg/options/mongodb"
	poolopts "github.com/kart-io/sentinel-cluster/pkg/options/pool"
	redisopts "github.com/kart-io/sentinel-cluster/pkg/options/redis"
	tracingopts "github.com/kart-io/sentinel-cluster/pkg/options/tracing"
	"github.com/kart-io/sentinel-cluster/pkg/storage"
	"github.com/kart-io/sentinel-cluster/pkg/utils/json"
)

// Name is the name of the application.
const Name = "sentinel-cluster"

// Config contains application-related configurations.
type Config struct {
	LogOptions        *logopts.Options
	MongoOptions      *mongoopts.Options
	RedisOptions      *redisopts.Options
	EmbeddingOptions  *llmopts.ProviderOptions
	ChatOptions       *llmopts.ProviderOptions
	PoolOptions       *poolopts.Options
	TracingOptions    *tracingopts.Options
	ClusteringOptions *clusteringopts.Options

	// Request 本次要执行的聚类请求。
	Request *model.ClusteringRequest

	// Output 结果输出位置，为空时写到标准输出。
	Output io.Writer
}

// Server 持有一次聚类运行所需的全部依赖。
type Server struct {
	service  *biz.ClusteringService
	request  *model.ClusteringRequest
	output   io.Writer
	metrics  *metrics.ClusteringMetrics
	storages *storage.Manager

	condensePool   *pool.Pool
	backgroundPool *pool.Pool
	drainTimeout   time.Duration

	tracer *tracing.Provider
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	// 1. 初始化日志
	if err := cfg.LogOptions.Init(Name, version.Get().GitVersion); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting clustering service...")

	// 2. 初始化链路追踪
	tracer, err := tracing.NewProvider(ctx, cfg.TracingOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	// 3. 初始化 MongoDB
	storages := storage.NewManager()
	mongoClient, err := mongodb.New(ctx, cfg.MongoOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mongodb: %w", err)
	}
	if err := storages.Register("mongodb", mongoClient); err != nil {
		_ = mongoClient.Close()
		return nil, err
	}

	// 4. 初始化 Redis（可选，用于向量缓存与完成通知）
	var redisClient goredis.UniversalClient
	if cfg.RedisOptions.Enabled {
		rc, err := redis.New(ctx, cfg.RedisOptions)
		if err != nil {
			logger.Warnw("failed to connect to redis, vector cache and notifications will be disabled", "error", err.Error())
		} else if err := storages.Register("redis", rc); err != nil {
			_ = rc.Close()
			logger.Warnw("failed to register redis client", "error", err.Error())
		} else {
			redisClient = rc.Universal()
		}
	} else {
		logger.Info("Redis is disabled")
	}

	// 5. 初始化 Store 层
	db := mongoClient.Database()
	runs := store.NewMongoRunStore(db)
	clusters := store.NewMongoClusterStore(db)
	embeddings := store.NewMongoEmbeddingStore(db)
	items := store.NewMongoItemLoader(db, &store.MongoItemLoaderConfig{
		ContextTurns:       cfg.ClusteringOptions.ContextTurns,
		MaxSessionsPerUser: store.DefaultMongoItemLoaderConfig().MaxSessionsPerUser,
	})

	var errs []error
	for _, idx := range []interface{ EnsureIndexes(context.Context) error }{runs, clusters, embeddings} {
		errs = append(errs, idx.EnsureIndexes(ctx))
	}
	if err := utilerrors.NewAggregate(errs); err != nil {
		_ = storages.CloseAll()
		return nil, fmt.Errorf("failed to ensure indexes: %w", err)
	}
	logger.Info("Mongo stores initialized")

	// 6. 初始化 LLM 供应商
	chat, err := newChatProvider(cfg.ChatOptions)
	if err != nil {
		_ = storages.CloseAll()
		return nil, err
	}
	logger.Infow("Chat provider initialized",
		"provider", cfg.ChatOptions.Provider,
		"model", cfg.ChatOptions.Model,
		"resilient", cfg.ChatOptions.Resilient,
	)

	// 7. 初始化工作池
	condensePool, err := pool.NewPool("condense", pool.CondensePool, cfg.PoolOptions.CondenseConfig())
	if err != nil {
		_ = storages.CloseAll()
		return nil, fmt.Errorf("failed to create condense pool: %w", err)
	}
	backgroundPool, err := pool.NewPool("background", pool.BackgroundPool, cfg.PoolOptions.BackgroundConfig())
	if err != nil {
		condensePool.Release()
		_ = storages.CloseAll()
		return nil, fmt.Errorf("failed to create background pool: %w", err)
	}

	// 8. 初始化 Biz 层
	var notifier biz.Notifier = biz.LogNotifier{}
	if redisClient != nil {
		notifier = biz.NewRedisNotifier(redisClient, cfg.ClusteringOptions.NotifyChannel)
	}

	m := metrics.Global()
	service := biz.NewClusteringService(biz.Dependencies{
		Runs:         runs,
		Clusters:     clusters,
		Embeddings:   embeddings,
		Items:        items,
		Chat:         chat,
		Embedders:    embedderFactory(cfg.EmbeddingOptions, redisClient, cacheConfig(cfg.RedisOptions)),
		CondensePool: condensePool,
		Background:   backgroundPool,
		Notifier:     notifier,
		Metrics:      m,
	}, serviceConfig(cfg.ClusteringOptions))
	logger.Infow("Clustering service initialized",
		"redis.enabled", redisClient != nil,
		"pool.condense", cfg.PoolOptions.CondenseCapacity,
		"pool.background", cfg.PoolOptions.BackgroundCapacity,
	)

	// 9. 健康检查
	for _, status := range storages.HealthCheckAll(ctx) {
		if !status.Healthy {
			logger.Warnw("storage unhealthy", "storage", status.Name, "error", status.Error)
			continue
		}
		logger.Debugw("storage healthy", "storage", status.Name, "latency", status.Latency)
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	return &Server{
		service:        service,
		request:        cfg.Request,
		output:         output,
		metrics:        m,
		storages:       storages,
		condensePool:   condensePool,
		backgroundPool: backgroundPool,
		drainTimeout:   cfg.PoolOptions.DrainTimeout,
		tracer:         tracer,
	}, nil
}

// Run 执行一次聚类并输出结果，随后释放资源。
func (s *Server) Run(ctx context.Context) error {
	defer s.shutdown()

	result, err := s.service.Run(ctx, s.request)
	if err != nil {
		return err
	}
	if result == nil {
		logger.Infow("clustering rolled back, no result", "project_id", s.request.ProjectID)
		return nil
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if _, err := fmt.Fprintln(s.output, string(data)); err != nil {
		return err
	}
	return nil
}

// shutdown 等待后台通知发送完毕后关闭连接。
func (s *Server) shutdown() {
	stats := s.metrics.GetStats()
	logger.Infow("clustering metrics",
		"runs_completed", stats.RunsCompleted,
		"runs_rolled_back", stats.RunsRolledBack,
		"runs_failed", stats.RunsFailed,
		"cache_hit_rate", stats.CacheHitRate,
		"llm_calls", stats.LLMCalls,
		"llm_errors", stats.LLMErrors,
		"phase_seconds", stats.PhaseSeconds,
	)

	if err := s.backgroundPool.ReleaseTimeout(s.drainTimeout); err != nil {
		logger.Warnw("background tasks did not finish in time", "error", err.Error())
	}
	s.condensePool.Release()
	for _, p := range []*pool.Pool{s.condensePool, s.backgroundPool} {
		ps := p.Stats()
		logger.Debugw("worker pool stats", "pool", p.Name(),
			"submitted", ps.SubmittedTasks, "completed", ps.CompletedTasks,
			"rejected", ps.RejectedTasks, "panicked", ps.PanickedTasks)
	}

	if err := s.storages.CloseAll(); err != nil {
		logger.Warnw("failed to close storages", "error", err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.tracer.Shutdown(ctx); err != nil {
		logger.Warnw("failed to shutdown tracer", "error", err.Error())
	}
	_ = logger.Flush()
}

func newChatProvider(opts *llmopts.ProviderOptions) (llm.ChatProvider, error) {
	chat, err := llm.NewChatProvider(opts.Provider, opts.ToConfigMap(""))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	if opts.Resilient {
		return resilience.WrapChat(chat, opts.Policy()), nil
	}
	return chat, nil
}

// embedderFactory 按任务的模型标识构建向量化供应商。
// 外层依次包装重试熔断与 Redis 向量缓存。
func embedderFactory(opts *llmopts.ProviderOptions, redisClient goredis.UniversalClient, cache *llm.EmbeddingCacheConfig) biz.EmbedderFactory {
	return func(modelID string) (llm.EmbeddingProvider, error) {
		provider, err := llm.NewEmbeddingProvider(opts.Provider, opts.ToConfigMap(modelID))
		if err != nil {
			return nil, err
		}
		if opts.Resilient {
			provider = resilience.WrapEmbedding(provider, opts.Policy())
		}
		if redisClient != nil {
			provider = llm.NewCachedEmbeddingProvider(provider, redisClient, cache)
		}
		logger.Infow("Embedding provider initialized", "provider", opts.Provider, "model", modelID)
		return provider, nil
	}
}

func cacheConfig(o *redisopts.Options) *llm.EmbeddingCacheConfig {
	cfg := llm.DefaultEmbeddingCacheConfig()
	if o.CacheTTL > 0 {
		cfg.TTL = o.CacheTTL
	}
	if o.CacheKeyPrefix != "" {
		cfg.KeyPrefix = o.CacheKeyPrefix
	}
	return cfg
}

func serviceConfig(o *clusteringopts.Options) *biz.ServiceConfig {
	cfg := biz.DefaultServiceConfig()
	cfg.MinItems = o.MinItems
	cfg.MergeThreshold = o.MergeThreshold
	cfg.NotifyAfter = o.NotifyAfter

	cfg.Resolver.LookupBatchSize = o.LookupBatchSize
	cfg.Resolver.EmbedBatchSize = o.EmbedBatchSize

	cfg.Condenser.ContextTurns = o.ContextTurns
	cfg.Condenser.MaxPromptChars = o.MaxPromptChars
	cfg.Condenser.MaxTokens = o.CondenseMaxTokens

	cfg.Clusterer.Eps = o.Eps
	cfg.Clusterer.MinSamples = o.MinSamples
	cfg.Clusterer.MinNbClusters = o.MinNbClusters
	cfg.Clusterer.AverageClusterSize = o.AverageClusterSize
	cfg.Clusterer.PCADimensions = o.PCADimensions
	cfg.Clusterer.Seed = o.Seed

	cfg.Summarizer.MaxSamples = o.MaxSamples
	cfg.Summarizer.Concurrency = o.SummarizeConcurrency
	cfg.Summarizer.DescriptionMaxTokens = o.DescriptionMaxTokens
	cfg.Summarizer.TitleMaxTokens = o.TitleMaxTokens
	cfg.Summarizer.MaxPromptChars = o.MaxPromptChars
	cfg.Summarizer.Seed = o.Seed
	return cfg
}
