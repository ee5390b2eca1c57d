package biz

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-cluster/internal/clustering/metrics"
	"github.com/kart-io/sentinel-cluster/internal/model"
	"github.com/kart-io/sentinel-cluster/internal/pkg/textutil"
	"github.com/kart-io/sentinel-cluster/pkg/llm"
)

// Executor 有界并发执行器，由 pkg/infra/pool.Pool 实现。
type Executor interface {
	ForEach(ctx context.Context, n int, fn func(i int)) error
}

// Condensed 一个条目的浓缩结果。
type Condensed struct {
	Item model.Item
	Text string
}

// Condenser 把条目的对话文本浓缩为一句话摘要。
type Condenser struct {
	chat    llm.ChatProvider
	exec    Executor
	config  *CondenserConfig
	metrics *metrics.ClusteringMetrics
}

// NewCondenser 创建浓缩器。
func NewCondenser(chat llm.ChatProvider, exec Executor, config *CondenserConfig, m *metrics.ClusteringMetrics) *Condenser {
	if config == nil {
		config = DefaultCondenserConfig()
	}
	if m == nil {
		m = metrics.Global()
	}
	return &Condenser{chat: chat, exec: exec, config: config, metrics: m}
}

// Condense 在执行器上并发浓缩所有条目，失败或结果为空的条目被丢弃。
// 返回结果保持输入顺序。
func (c *Condenser) Condense(ctx context.Context, items []model.Item, instruction string) ([]Condensed, error) {
	results := make([]string, len(items))

	err := c.exec.ForEach(ctx, len(items), func(i int) {
		text, err := c.condenseItem(ctx, items[i], instruction)
		if err != nil {
			c.metrics.RecordCondenseFailure()
			logger.Warnw("condensation failed, item dropped",
				"item_id", items[i].ItemID(),
				"scope", items[i].Scope(),
				"error", err.Error(),
			)
			return
		}
		results[i] = text
	})
	if err != nil {
		return nil, fmt.Errorf("condense items: %w", err)
	}

	out := make([]Condensed, 0, len(items))
	for i, text := range results {
		if text != "" {
			out = append(out, Condensed{Item: items[i], Text: text})
		}
	}
	return out, nil
}

// condenseItem 组合条目先浓缩各个子条目，再对子摘要做一次汇总；单个子条目失败只跳过该子条目。
func (c *Condenser) condenseItem(ctx context.Context, item model.Item, instruction string) (string, error) {
	comp, ok := item.(model.Composite)
	if !ok {
		return c.complete(ctx, item.CondensePrompt(instruction, c.config.ContextTurns))
	}

	parts := comp.Parts()
	summaries := make([]string, 0, len(parts))
	for _, part := range parts {
		summary, err := c.condenseItem(ctx, part, instruction)
		if err != nil {
			logger.Debugw("part condensation failed", "item_id", item.ItemID(), "part_id", part.ItemID(), "error", err.Error())
			continue
		}
		summaries = append(summaries, summary)
	}
	if len(summaries) == 0 {
		return "", fmt.Errorf("no part of %s %s could be condensed", item.Scope(), item.ItemID())
	}
	return c.complete(ctx, comp.RollupPrompt(instruction, summaries))
}

func (c *Condenser) complete(ctx context.Context, prompt string) (string, error) {
	prompt = textutil.CenterTruncate(prompt, c.config.MaxPromptChars)
	out, err := c.chat.Generate(ctx, prompt, condenseSystemPrompt, llm.WithMaxTokens(c.config.MaxTokens))
	c.metrics.RecordLLMCall(err)
	if err != nil {
		return "", err
	}
	out = textutil.StripBoilerplate(out)
	if out == "" {
		return "", fmt.Errorf("empty condensation")
	}
	return out, nil
}
