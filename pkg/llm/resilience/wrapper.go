package resilience

import (
	"context"

	"github.com/kart-io/sentinel-cluster/pkg/llm"
)

// EmbeddingProvider 带重试与熔断的向量化供应商。
type EmbeddingProvider struct {
	llm.EmbeddingProvider
	policy  *Policy
	breaker *Breaker
}

// WrapEmbedding policy 为 nil 时使用 DefaultPolicy。
func WrapEmbedding(p llm.EmbeddingProvider, policy *Policy) *EmbeddingProvider {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &EmbeddingProvider{
		EmbeddingProvider: p,
		policy:            policy,
		breaker:           NewBreaker(p.Name()+"/embed", policy),
	}
}

func (r *EmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return Do(ctx, r.policy, r.breaker, func() ([][]float32, error) {
		return r.EmbeddingProvider.Embed(ctx, texts)
	})
}

func (r *EmbeddingProvider) Name() string { return r.EmbeddingProvider.Name() + "-resilient" }

func (r *EmbeddingProvider) Breaker() *Breaker { return r.breaker }

// ChatProvider 带重试与熔断的补全供应商。
type ChatProvider struct {
	llm.ChatProvider
	policy  *Policy
	breaker *Breaker
}

func WrapChat(p llm.ChatProvider, policy *Policy) *ChatProvider {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &ChatProvider{
		ChatProvider: p,
		policy:       policy,
		breaker:      NewBreaker(p.Name()+"/chat", policy),
	}
}

func (r *ChatProvider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	return Do(ctx, r.policy, r.breaker, func() (string, error) {
		return r.ChatProvider.Chat(ctx, messages, opts...)
	})
}

func (r *ChatProvider) Generate(ctx context.Context, prompt, systemPrompt string, opts ...llm.GenerateOption) (string, error) {
	return Do(ctx, r.policy, r.breaker, func() (string, error) {
		return r.ChatProvider.Generate(ctx, prompt, systemPrompt, opts...)
	})
}

func (r *ChatProvider) Name() string { return r.ChatProvider.Name() + "-resilient" }

func (r *ChatProvider) Breaker() *Breaker { return r.breaker }
