// Package metrics 提供聚类服务的业务指标收集。
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ClusteringMetrics 聚类服务业务指标。
type ClusteringMetrics struct {
	// 任务指标
	runsStarted    atomic.Uint64
	runsCompleted  atomic.Uint64
	runsRolledBack atomic.Uint64
	runsFailed     atomic.Uint64

	// 向量指标
	embeddingsCached   atomic.Uint64 // 指纹命中
	embeddingsComputed atomic.Uint64 // 新生成
	condenseFailures   atomic.Uint64 // 浓缩失败被丢弃的条目

	// LLM 调用指标
	llmCalls  atomic.Uint64
	llmErrors atomic.Uint64

	clustersCreated atomic.Uint64
	clustersMerged  atomic.Uint64

	mu        sync.Mutex
	phases    map[string]time.Duration // 各阶段累计耗时
	startTime time.Time
}

var (
	global     *ClusteringMetrics
	globalOnce sync.Once
)

// New 创建独立的指标实例。
func New() *ClusteringMetrics {
	return &ClusteringMetrics{
		phases:    make(map[string]time.Duration),
		startTime: time.Now(),
	}
}

// Global 获取进程级指标实例。
func Global() *ClusteringMetrics {
	globalOnce.Do(func() {
		global = New()
	})
	return global
}

// RecordRunStarted 记录任务开始。
func (m *ClusteringMetrics) RecordRunStarted() { m.runsStarted.Add(1) }

// RecordRunCompleted 记录任务完成。
func (m *ClusteringMetrics) RecordRunCompleted() { m.runsCompleted.Add(1) }

// RecordRunRolledBack 记录输入不足导致的回滚。
func (m *ClusteringMetrics) RecordRunRolledBack() { m.runsRolledBack.Add(1) }

// RecordRunFailed 记录任务失败。
func (m *ClusteringMetrics) RecordRunFailed() { m.runsFailed.Add(1) }

// RecordEmbeddings 记录命中与新生成的向量数。
func (m *ClusteringMetrics) RecordEmbeddings(cached, computed int) {
	m.embeddingsCached.Add(uint64(max(cached, 0)))
	m.embeddingsComputed.Add(uint64(max(computed, 0)))
}

// RecordCondenseFailure 记录一次浓缩失败。
func (m *ClusteringMetrics) RecordCondenseFailure() { m.condenseFailures.Add(1) }

// RecordLLMCall 记录 LLM 调用。
func (m *ClusteringMetrics) RecordLLMCall(err error) {
	m.llmCalls.Add(1)
	if err != nil {
		m.llmErrors.Add(1)
	}
}

// RecordClusters 记录生成和被合并的簇数。
func (m *ClusteringMetrics) RecordClusters(created, merged int) {
	m.clustersCreated.Add(uint64(max(created, 0)))
	m.clustersMerged.Add(uint64(max(merged, 0)))
}

// ObservePhase 累加阶段耗时。
func (m *ClusteringMetrics) ObservePhase(phase string, d time.Duration) {
	m.mu.Lock()
	m.phases[phase] += d
	m.mu.Unlock()
}

// Stats 指标快照。
type Stats struct {
	RunsStarted        uint64             `json:"runs_started"`
	RunsCompleted      uint64             `json:"runs_completed"`
	RunsRolledBack     uint64             `json:"runs_rolled_back"`
	RunsFailed         uint64             `json:"runs_failed"`
	EmbeddingsCached   uint64             `json:"embeddings_cached"`
	EmbeddingsComputed uint64             `json:"embeddings_computed"`
	CacheHitRate       float64            `json:"cache_hit_rate"`
	CondenseFailures   uint64             `json:"condense_failures"`
	LLMCalls           uint64             `json:"llm_calls"`
	LLMErrors          uint64             `json:"llm_errors"`
	ClustersCreated    uint64             `json:"clusters_created"`
	ClustersMerged     uint64             `json:"clusters_merged"`
	PhaseSeconds       map[string]float64 `json:"phase_seconds"`
	Uptime             time.Duration      `json:"uptime"`
}

// GetStats 返回当前指标快照。
func (m *ClusteringMetrics) GetStats() Stats {
	s := Stats{
		RunsStarted:        m.runsStarted.Load(),
		RunsCompleted:      m.runsCompleted.Load(),
		RunsRolledBack:     m.runsRolledBack.Load(),
		RunsFailed:         m.runsFailed.Load(),
		EmbeddingsCached:   m.embeddingsCached.Load(),
		EmbeddingsComputed: m.embeddingsComputed.Load(),
		CondenseFailures:   m.condenseFailures.Load(),
		LLMCalls:           m.llmCalls.Load(),
		LLMErrors:          m.llmErrors.Load(),
		ClustersCreated:    m.clustersCreated.Load(),
		ClustersMerged:     m.clustersMerged.Load(),
		PhaseSeconds:       make(map[string]float64),
	}
	if total := s.EmbeddingsCached + s.EmbeddingsComputed; total > 0 {
		s.CacheHitRate = float64(s.EmbeddingsCached) / float64(total)
	}

	m.mu.Lock()
	for phase, d := range m.phases {
		s.PhaseSeconds[phase] = d.Seconds()
	}
	s.Uptime = time.Since(m.startTime)
	m.mu.Unlock()

	return s
}

// Export 导出 Prometheus 文本格式指标。
func (m *ClusteringMetrics) Export(namespace string) string {
	s := m.GetStats()
	var sb strings.Builder

	write := func(name, typ, help string, value any) {
		fmt.Fprintf(&sb, "# HELP %s_%s %s\n", namespace, name, help)
		fmt.Fprintf(&sb, "# TYPE %s_%s %s\n", namespace, name, typ)
		fmt.Fprintf(&sb, "%s_%s %v\n\n", namespace, name, value)
	}

	write("runs_started_total", "counter", "Total number of clustering runs started.", s.RunsStarted)
	write("runs_completed_total", "counter", "Number of completed clustering runs.", s.RunsCompleted)
	write("runs_rolled_back_total", "counter", "Number of runs rolled back for insufficient input.", s.RunsRolledBack)
	write("runs_failed_total", "counter", "Number of failed clustering runs.", s.RunsFailed)
	write("embeddings_cached_total", "counter", "Embeddings reused from the fingerprint cache.", s.EmbeddingsCached)
	write("embeddings_computed_total", "counter", "Embeddings computed by the provider.", s.EmbeddingsComputed)
	write("embedding_cache_hit_rate", "gauge", "Fingerprint cache hit rate (0-1).", fmt.Sprintf("%.4f", s.CacheHitRate))
	write("condense_failures_total", "counter", "Items dropped after a failed condensation.", s.CondenseFailures)
	write("llm_calls_total", "counter", "Total number of completion calls.", s.LLMCalls)
	write("llm_errors_total", "counter", "Number of failed completion calls.", s.LLMErrors)
	write("clusters_created_total", "counter", "Clusters produced by the clustering engine.", s.ClustersCreated)
	write("clusters_merged_total", "counter", "Clusters absorbed by the merge step.", s.ClustersMerged)

	phases := make([]string, 0, len(s.PhaseSeconds))
	for p := range s.PhaseSeconds {
		phases = append(phases, p)
	}
	sort.Strings(phases)
	if len(phases) > 0 {
		fmt.Fprintf(&sb, "# HELP %s_phase_duration_seconds_total Cumulative duration per pipeline phase.\n", namespace)
		fmt.Fprintf(&sb, "# TYPE %s_phase_duration_seconds_total counter\n", namespace)
		for _, p := range phases {
			fmt.Fprintf(&sb, "%s_phase_duration_seconds_total{phase=%q} %.6f\n", namespace, p, s.PhaseSeconds[p])
		}
		sb.WriteString("\n")
	}

	write("uptime_seconds", "gauge", "Process uptime in seconds.", fmt.Sprintf("%.2f", s.Uptime.Seconds()))
	return sb.String()
}
