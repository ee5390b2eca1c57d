// Package llm 是向量化与补全供应商的统一抽象。
// 两者可以来自不同供应商，具体实现在子包 init 中登记到注册表。
package llm

import "context"

// EmbeddingProvider 把文本转为向量，输出顺序与输入一致。
type EmbeddingProvider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
	Name() string
}

// ChatProvider 生成簇标题与描述使用的补全接口。
type ChatProvider interface {
	Chat(ctx context.Context, messages []Message, opts ...GenerateOption) (string, error)
	// Generate 单轮补全，systemPrompt 为空时只发送用户消息
	Generate(ctx context.Context, prompt, systemPrompt string, opts ...GenerateOption) (string, error)
	Name() string
}

// Provider 同时实现两种接口，注册表只登记这一种。
type Provider interface {
	EmbeddingProvider
	ChatProvider
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// BuildMessages 组装单轮补全的消息列表。
func BuildMessages(prompt, systemPrompt string) []Message {
	if systemPrompt == "" {
		return []Message{{Role: RoleUser, Content: prompt}}
	}
	return []Message{
		{Role: RoleSystem, Content: systemPrompt},
		{Role: RoleUser, Content: prompt},
	}
}

// GenerateOptions 零值字段交给供应商默认。
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
}

type GenerateOption func(*GenerateOptions)

func WithMaxTokens(n int) GenerateOption {
	return func(o *GenerateOptions) { o.MaxTokens = n }
}

func WithTemperature(t float64) GenerateOption {
	return func(o *GenerateOptions) { o.Temperature = t }
}

func ApplyGenerateOptions(opts ...GenerateOption) GenerateOptions {
	var o GenerateOptions
	for _, apply := range opts {
		apply(&o)
	}
	return o
}
