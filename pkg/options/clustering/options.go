// Package clustering provides configuration options for the intent-clustering pipeline.
package clustering

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-cluster/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains pipeline tuning knobs.
type Options struct {
	// MinItems 少于该数量的条目时回滚任务。
	MinItems int `json:"min-items" mapstructure:"min-items"`

	// LookupBatchSize 按指纹查询已有向量的分页大小。
	LookupBatchSize int `json:"lookup-batch-size" mapstructure:"lookup-batch-size"`

	// EmbedBatchSize 单次向量化调用的文本数。
	EmbedBatchSize int `json:"embed-batch-size" mapstructure:"embed-batch-size"`

	// ContextTurns 消息粒度下附带的历史轮数。
	ContextTurns int `json:"context-turns" mapstructure:"context-turns"`

	// MaxPromptChars 提示超过该长度时居中截断。
	MaxPromptChars int `json:"max-prompt-chars" mapstructure:"max-prompt-chars"`

	// CondenseMaxTokens 浓缩调用的最大输出 token 数。
	CondenseMaxTokens int `json:"condense-max-tokens" mapstructure:"condense-max-tokens"`

	Eps        float64 `json:"eps" mapstructure:"eps"`
	MinSamples int     `json:"min-samples" mapstructure:"min-samples"`

	MinNbClusters      int `json:"min-nb-clusters" mapstructure:"min-nb-clusters"`
	AverageClusterSize int `json:"average-cluster-size" mapstructure:"average-cluster-size"`

	// PCADimensions 聚类前的降维目标，0 表示不降维。
	PCADimensions int `json:"pca-dimensions" mapstructure:"pca-dimensions"`

	// MaxSamples 每个簇用于摘要的最大样本数。
	MaxSamples int `json:"max-samples" mapstructure:"max-samples"`

	// SummarizeConcurrency 摘要阶段并发上限，0 表示不限。
	SummarizeConcurrency int `json:"summarize-concurrency" mapstructure:"summarize-concurrency"`

	DescriptionMaxTokens int `json:"description-max-tokens" mapstructure:"description-max-tokens"`
	TitleMaxTokens       int `json:"title-max-tokens" mapstructure:"title-max-tokens"`

	// MergeThreshold 名称相似度大于该值时合并。
	MergeThreshold float64 `json:"merge-threshold" mapstructure:"merge-threshold"`

	// NotifyAfter 运行时间超过该值且提供邮箱时发送通知。
	NotifyAfter time.Duration `json:"notify-after" mapstructure:"notify-after"`

	// NotifyChannel 通知发布的 Redis 频道。
	NotifyChannel string `json:"notify-channel" mapstructure:"notify-channel"`

	// Seed 随机采样与 kmeans 初始化的种子，0 表示按时间取种。
	Seed int64 `json:"seed" mapstructure:"seed"`
}

// NewOptions creates pipeline options with default values.
func NewOptions() *Options {
	return &Options{
		MinItems:             5,
		LookupBatchSize:      1024,
		EmbedBatchSize:       1024,
		ContextTurns:         3,
		MaxPromptChars:       12000,
		CondenseMaxTokens:    120,
		Eps:                  0.5,
		MinSamples:           5,
		MinNbClusters:        5,
		AverageClusterSize:   100,
		PCADimensions:        0,
		MaxSamples:           15,
		SummarizeConcurrency: 0,
		DescriptionMaxTokens: 300,
		TitleMaxTokens:       20,
		MergeThreshold:       0.8,
		NotifyAfter:          60 * time.Second,
		NotifyChannel:        "clustering:notifications",
	}
}

// AddFlags adds flags for pipeline options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "clustering."
	fs.IntVar(&o.MinItems, p+"min-items", o.MinItems, "Roll back runs with fewer items than this.")
	fs.IntVar(&o.LookupBatchSize, p+"lookup-batch-size", o.LookupBatchSize, "Page size of stored-embedding lookups.")
	fs.IntVar(&o.EmbedBatchSize, p+"embed-batch-size", o.EmbedBatchSize, "Texts per vectorization call.")
	fs.IntVar(&o.ContextTurns, p+"context-turns", o.ContextTurns, "Prior turns included when condensing a message.")
	fs.IntVar(&o.MaxPromptChars, p+"max-prompt-chars", o.MaxPromptChars, "Center-truncate prompts longer than this.")
	fs.IntVar(&o.CondenseMaxTokens, p+"condense-max-tokens", o.CondenseMaxTokens, "Max tokens per condensation completion.")
	fs.Float64Var(&o.Eps, p+"eps", o.Eps, "DBSCAN neighbourhood radius.")
	fs.IntVar(&o.MinSamples, p+"min-samples", o.MinSamples, "DBSCAN core point threshold (the point itself counts).")
	fs.IntVar(&o.MinNbClusters, p+"min-nb-clusters", o.MinNbClusters, "Lower bound of the adaptive cluster count.")
	fs.IntVar(&o.AverageClusterSize, p+"average-cluster-size", o.AverageClusterSize, "Expected items per cluster for the adaptive cluster count.")
	fs.IntVar(&o.PCADimensions, p+"pca-dimensions", o.PCADimensions, "Reduce vectors to this many dimensions before clustering (0 disables).")
	fs.IntVar(&o.MaxSamples, p+"max-samples", o.MaxSamples, "Samples per cluster sent to the summarizer.")
	fs.IntVar(&o.SummarizeConcurrency, p+"summarize-concurrency", o.SummarizeConcurrency, "Concurrent cluster summaries (0 for unbounded).")
	fs.IntVar(&o.DescriptionMaxTokens, p+"description-max-tokens", o.DescriptionMaxTokens, "Max tokens for a cluster description.")
	fs.IntVar(&o.TitleMaxTokens, p+"title-max-tokens", o.TitleMaxTokens, "Max tokens for a cluster title.")
	fs.Float64Var(&o.MergeThreshold, p+"merge-threshold", o.MergeThreshold, "Merge clusters whose name similarity exceeds this value.")
	fs.DurationVar(&o.NotifyAfter, p+"notify-after", o.NotifyAfter, "Notify by email when a run takes longer than this.")
	fs.StringVar(&o.NotifyChannel, p+"notify-channel", o.NotifyChannel, "Redis channel that receives completion notifications.")
	fs.Int64Var(&o.Seed, p+"seed", o.Seed, "Random seed for sampling and kmeans (0 uses the clock).")
}

// Validate validates pipeline options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	positive := map[string]int{
		"min-items":              o.MinItems,
		"lookup-batch-size":      o.LookupBatchSize,
		"embed-batch-size":       o.EmbedBatchSize,
		"max-prompt-chars":       o.MaxPromptChars,
		"min-samples":            o.MinSamples,
		"min-nb-clusters":        o.MinNbClusters,
		"average-cluster-size":   o.AverageClusterSize,
		"max-samples":            o.MaxSamples,
		"condense-max-tokens":    o.CondenseMaxTokens,
		"description-max-tokens": o.DescriptionMaxTokens,
		"title-max-tokens":       o.TitleMaxTokens,
	}
	for _, name := range []string{
		"min-items", "lookup-batch-size", "embed-batch-size", "max-prompt-chars", "min-samples",
		"min-nb-clusters", "average-cluster-size", "max-samples", "condense-max-tokens",
		"description-max-tokens", "title-max-tokens",
	} {
		if positive[name] <= 0 {
			errs = append(errs, fmt.Errorf("clustering: %s must be positive, got %d", name, positive[name]))
		}
	}

	if o.ContextTurns < 0 {
		errs = append(errs, fmt.Errorf("clustering: context-turns must not be negative"))
	}
	if o.Eps <= 0 {
		errs = append(errs, fmt.Errorf("clustering: eps must be positive"))
	}
	if o.PCADimensions < 0 {
		errs = append(errs, fmt.Errorf("clustering: pca-dimensions must not be negative"))
	}
	if o.SummarizeConcurrency < 0 {
		errs = append(errs, fmt.Errorf("clustering: summarize-concurrency must not be negative"))
	}
	if o.MergeThreshold < 0 || o.MergeThreshold > 1 {
		errs = append(errs, fmt.Errorf("clustering: merge-threshold must be within [0, 1]"))
	}
	if o.NotifyAfter < 0 {
		errs = append(errs, fmt.Errorf("clustering: notify-after must not be negative"))
	}
	return errs
}

// Complete completes pipeline options.
func (o *Options) Complete() error {
	return nil
}
