package biz

import (
	"time"
)

// ResolverConfig 向量解析配置。
type ResolverConfig struct {
	// LookupBatchSize 按指纹查询已有向量的分页大小。
	LookupBatchSize int
	// EmbedBatchSize 单次向量化调用的文本数。
	EmbedBatchSize int
}

// DefaultResolverConfig 返回默认向量解析配置。
func DefaultResolverConfig() *ResolverConfig {
	return &ResolverConfig{
		LookupBatchSize: 1024,
		EmbedBatchSize:  1024,
	}
}

// CondenserConfig 浓缩配置。
type CondenserConfig struct {
	// ContextTurns 消息粒度下附带的前序轮次数。
	ContextTurns int
	// MaxPromptChars 提示超过该长度时居中截断。
	MaxPromptChars int
	// MaxTokens 浓缩输出的最大 token 数。
	MaxTokens int
}

// DefaultCondenserConfig 返回默认浓缩配置。
func DefaultCondenserConfig() *CondenserConfig {
	return &CondenserConfig{
		ContextTurns:   3,
		MaxPromptChars: 12000,
		MaxTokens:      120,
	}
}

// ClustererConfig 聚类引擎配置。
type ClustererConfig struct {
	Eps        float64
	MinSamples int

	MinNbClusters      int
	AverageClusterSize int

	// PCADimensions 聚类前降维目标，0 表示不降维。
	PCADimensions int

	KMeansMaxIterations int
	Seed                int64
}

// DefaultClustererConfig 返回默认聚类配置。
func DefaultClustererConfig() *ClustererConfig {
	return &ClustererConfig{
		Eps:                 0.5,
		MinSamples:          5,
		MinNbClusters:       5,
		AverageClusterSize:  100,
		KMeansMaxIterations: 50,
	}
}

// SummarizerConfig 簇摘要配置。
type SummarizerConfig struct {
	// MaxSamples 每个簇用于摘要的最大样本数。
	MaxSamples int
	// Concurrency 并发上限，0 表示不限。
	Concurrency int

	DescriptionMaxTokens int
	TitleMaxTokens       int
	MaxPromptChars       int
	Seed                 int64
}

// DefaultSummarizerConfig 返回默认摘要配置。
func DefaultSummarizerConfig() *SummarizerConfig {
	return &SummarizerConfig{
		MaxSamples:           15,
		DescriptionMaxTokens: 300,
		TitleMaxTokens:       20,
		MaxPromptChars:       12000,
	}
}

// ServiceConfig 任务控制器配置。
type ServiceConfig struct {
	// MinItems 少于该数量的有效条目时回滚任务。
	MinItems int
	// MergeThreshold 名称相似度大于该值时合并。
	MergeThreshold float64
	// NotifyAfter 运行时间超过该值且提供邮箱时发送完成通知。
	NotifyAfter time.Duration
	// NotifyTimeout 单次通知的超时时间。
	NotifyTimeout time.Duration

	Resolver   *ResolverConfig
	Condenser  *CondenserConfig
	Clusterer  *ClustererConfig
	Summarizer *SummarizerConfig
}

// DefaultServiceConfig 返回默认任务控制器配置。
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		MinItems:       5,
		MergeThreshold: 0.8,
		NotifyAfter:    60 * time.Second,
		NotifyTimeout:  10 * time.Second,
		Resolver:       DefaultResolverConfig(),
		Condenser:      DefaultCondenserConfig(),
		Clusterer:      DefaultClustererConfig(),
		Summarizer:     DefaultSummarizerConfig(),
	}
}
