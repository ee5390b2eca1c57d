package biz

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"golang.org/x/sync/errgroup"

	"github.com/kart-io/sentinel-cluster/internal/clustering/metrics"
	"github.com/kart-io/sentinel-cluster/internal/model"
	"github.com/kart-io/sentinel-cluster/internal/pkg/textutil"
	"github.com/kart-io/sentinel-cluster/pkg/llm"
)

// 描述或标题生成失败时的占位文本。
const (
	NoDescription = "No description available"
	NoTitle       = "No title"
)

// ClusterSummarizer 为每个簇生成描述和标题。
type ClusterSummarizer struct {
	chat    llm.ChatProvider
	config  *SummarizerConfig
	metrics *metrics.ClusteringMetrics

	mu  sync.Mutex
	rng *rand.Rand
}

// NewClusterSummarizer 创建簇摘要器。
func NewClusterSummarizer(chat llm.ChatProvider, config *SummarizerConfig, m *metrics.ClusteringMetrics) *ClusterSummarizer {
	if config == nil {
		config = DefaultSummarizerConfig()
	}
	if m == nil {
		m = metrics.Global()
	}
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &ClusterSummarizer{
		chat:    chat,
		config:  config,
		metrics: m,
		//nolint:gosec // G404: 样本抽取，非安全敏感场景
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Sample 收集每个簇的样本文本，超过 MaxSamples 时做均匀随机抽样。
// texts 返回某个簇的全部候选文本。
func (s *ClusterSummarizer) Sample(clusters []*model.Cluster, texts func(*model.Cluster) []string) [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	samples := make([][]string, len(clusters))
	for i, c := range clusters {
		all := texts(c)
		if limit := s.config.MaxSamples; limit > 0 && len(all) > limit {
			picked := make([]string, limit)
			for j, idx := range s.rng.Perm(len(all))[:limit] {
				picked[j] = all[idx]
			}
			all = picked
		}
		samples[i] = all
	}
	return samples
}

// Describe 并发为所有簇生成描述和标题，每完成一个簇调用一次 onDone(已完成数)。
// 并发上限由 Concurrency 控制，0 表示不限。单个簇失败只会得到占位文本。
func (s *ClusterSummarizer) Describe(ctx context.Context, run *model.Clustering, clusters []*model.Cluster, samples [][]string, onDone func(done int)) error {
	g, gctx := errgroup.WithContext(ctx)
	if s.config.Concurrency > 0 {
		g.SetLimit(s.config.Concurrency)
	}

	var done atomic.Int64
	for i, c := range clusters {
		g.Go(func() error {
			c.Description, c.Name = s.describeOne(gctx, run, samples[i])
			if onDone != nil {
				onDone(int(done.Add(1)))
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *ClusterSummarizer) describeOne(ctx context.Context, run *model.Clustering, samples []string) (description, title string) {
	if len(samples) == 0 {
		return NoDescription, NoTitle
	}

	prompt := textutil.CenterTruncate(
		descriptionPrompt(run.OutputFormat, run.Scope, run.Instruction, samples),
		s.config.MaxPromptChars,
	)
	description = s.generate(ctx, prompt, s.config.DescriptionMaxTokens)
	if description == "" {
		return NoDescription, NoTitle
	}

	title = s.generate(ctx, titlePrompt(description), s.config.TitleMaxTokens)
	if title == "" {
		title = NoTitle
	}
	return description, title
}

func (s *ClusterSummarizer) generate(ctx context.Context, prompt string, maxTokens int) string {
	out, err := s.chat.Generate(ctx, prompt, summarizeSystemPrompt, llm.WithMaxTokens(maxTokens))
	s.metrics.RecordLLMCall(err)
	if err != nil {
		logger.Warnw("cluster summary completion failed", "error", err.Error())
		return ""
	}
	return textutil.StripBoilerplate(out)
}
