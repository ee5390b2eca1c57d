package biz

import (
	"context"
	"sync"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-cluster/internal/clustering/store"
	"github.com/kart-io/sentinel-cluster/internal/model"
)

// 进度区间：向量阶段占 0-50，摘要阶段占 50-90，完成时置为 100。
const (
	embeddingBand     = 50.0
	summaryBandStart  = 50.0
	summaryBandLength = 40.0
)

// Progress 记录任务完成百分比。写入失败只记录日志，不影响任务。
type Progress struct {
	runs  store.RunStore
	runID string

	mu      sync.Mutex
	current float64
	written bool
}

// NewProgress 创建进度记录器。
func NewProgress(runs store.RunStore, runID string) *Progress {
	return &Progress{runs: runs, runID: runID}
}

// Set 写入进度，值被限制在 [0, 100]。进度只增不减，不大于当前值的写入被跳过。
// 写入在锁内完成，并发调用落库的顺序与取值顺序一致。
func (p *Progress) Set(ctx context.Context, percent float64) {
	percent = model.ClampPercent(percent)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.written && percent <= p.current {
		return
	}
	p.current, p.written = percent, true

	if err := p.runs.UpdateProgress(ctx, p.runID, percent); err != nil {
		logger.Warnw("failed to update clustering progress",
			"run_id", p.runID,
			"percent", percent,
			"error", err.Error(),
		)
	}
}

// Current 返回最近一次写入的进度。
func (p *Progress) Current() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// EmbeddingPercent 向量阶段进度：50 * done / total。
func EmbeddingPercent(done, total int) float64 {
	if total <= 0 {
		return 0
	}
	return model.ClampPercent(min(embeddingBand, embeddingBand*float64(done)/float64(total)))
}

// SummaryPercent 摘要阶段进度：50 + 40 * done / total。
func SummaryPercent(done, total int) float64 {
	if total <= 0 {
		return summaryBandStart
	}
	return model.ClampPercent(min(summaryBandStart+summaryBandLength, summaryBandStart+summaryBandLength*float64(done)/float64(total)))
}
