// Package ollama 通过本地 Ollama 服务提供向量化与浓缩/命名所需的补全能力。
package ollama

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/sentinel-cluster/pkg/llm"
	"github.com/kart-io/sentinel-cluster/pkg/utils/httpclient"
)

const ProviderName = "ollama"

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

type Config struct {
	BaseURL    string        `json:"base_url" mapstructure:"base_url"`
	EmbedModel string        `json:"embed_model" mapstructure:"embed_model"`
	ChatModel  string        `json:"chat_model" mapstructure:"chat_model"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxRetries int           `json:"max_retries" mapstructure:"max_retries"`
}

func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "http://localhost:11434",
		EmbedModel: "nomic-embed-text",
		ChatModel:  "qwen2.5:7b",
		Timeout:    2 * time.Minute,
		MaxRetries: 3,
	}
}

// Provider 同一个 Ollama 实例同时承担向量化和补全。
type Provider struct {
	cfg  Config
	http *httpclient.Client
}

var _ llm.Provider = (*Provider)(nil)

// NewProvider 供注册表使用的工厂。
func NewProvider(config map[string]any) (llm.Provider, error) {
	cfg := DefaultConfig()
	if err := llm.DecodeConfig(config, cfg); err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	return NewProviderWithConfig(cfg), nil
}

func NewProviderWithConfig(cfg *Config) *Provider {
	return &Provider{
		cfg:  *cfg,
		http: httpclient.New(cfg.BaseURL, cfg.Timeout, cfg.MaxRetries),
	}
}

func (p *Provider) Name() string  { return ProviderName }
func (p *Provider) Model() string { return p.cfg.EmbedModel }

// Embed 调用 /api/embed，一次请求处理整批文本。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	req := struct {
		Model string   `json:"model"`
		Input []string `json:"input"`
	}{p.cfg.EmbedModel, texts}
	if err := p.http.PostJSON(ctx, "/api/embed", req, &resp); err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if got := len(resp.Embeddings); got != len(texts) {
		return nil, fmt.Errorf("ollama embed: 返回 %d 个向量, 输入 %d 条", got, len(texts))
	}
	return resp.Embeddings, nil
}

type chatOptions struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []llm.Message `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *chatOptions  `json:"options,omitempty"`
}

// Chat 非流式对话，max_tokens 对应 num_predict。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	o := llm.ApplyGenerateOptions(opts...)
	req := chatRequest{Model: p.cfg.ChatModel, Messages: messages}
	if o.MaxTokens > 0 || o.Temperature > 0 {
		req.Options = &chatOptions{NumPredict: o.MaxTokens, Temperature: o.Temperature}
	}

	var resp struct {
		Message llm.Message `json:"message"`
	}
	if err := p.http.PostJSON(ctx, "/api/chat", req, &resp); err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	return resp.Message.Content, nil
}

func (p *Provider) Generate(ctx context.Context, prompt, systemPrompt string, opts ...llm.GenerateOption) (string, error) {
	return p.Chat(ctx, llm.BuildMessages(prompt, systemPrompt), opts...)
}

// Ping 列出本地模型，用于启动时健康检查。
func (p *Provider) Ping(ctx context.Context) error {
	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := p.http.GetJSON(ctx, "/api/tags", &tags); err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	return nil
}
