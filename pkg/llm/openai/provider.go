// Package openai 对接 OpenAI 及兼容其 REST 接口的服务（vLLM、LocalAI 等）。
//
//	import _ "github.com/kart-io/sentinel-cluster/pkg/llm/openai"
//
//	p, err := llm.NewProvider("openai", map[string]any{"api_key": key})
package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kart-io/sentinel-cluster/pkg/llm"
	"github.com/kart-io/sentinel-cluster/pkg/utils/httpclient"
)

const ProviderName = "openai"

var errMissingAPIKey = errors.New("openai: api_key is required")

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

type Config struct {
	BaseURL      string        `json:"base_url" mapstructure:"base_url"`
	APIKey       string        `json:"-" mapstructure:"api_key"`
	EmbedModel   string        `json:"embed_model" mapstructure:"embed_model"`
	ChatModel    string        `json:"chat_model" mapstructure:"chat_model"`
	Timeout      time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxRetries   int           `json:"max_retries" mapstructure:"max_retries"`
	Organization string        `json:"organization" mapstructure:"organization"`

	// 请求未指定时使用，0 交给服务端决定
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `json:"max_tokens" mapstructure:"max_tokens"`
}

func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://api.openai.com/v1",
		EmbedModel: "text-embedding-3-small",
		ChatModel:  "gpt-4o-mini",
		Timeout:    2 * time.Minute,
		MaxRetries: 3,
	}
}

type Provider struct {
	cfg  Config
	http *httpclient.Client
}

var _ llm.Provider = (*Provider)(nil)

// NewProvider 供注册表使用的工厂，缺少 api_key 时报错。
func NewProvider(config map[string]any) (llm.Provider, error) {
	cfg := DefaultConfig()
	if err := llm.DecodeConfig(config, cfg); err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if cfg.APIKey == "" {
		return nil, errMissingAPIKey
	}
	return NewProviderWithConfig(cfg), nil
}

func NewProviderWithConfig(cfg *Config) *Provider {
	opts := []httpclient.Option{httpclient.WithBearer(cfg.APIKey)}
	if cfg.Organization != "" {
		opts = append(opts, httpclient.WithHeader("OpenAI-Organization", cfg.Organization))
	}
	return &Provider{
		cfg:  *cfg,
		http: httpclient.New(cfg.BaseURL, cfg.Timeout, cfg.MaxRetries, opts...),
	}
}

func (p *Provider) Name() string  { return ProviderName }
func (p *Provider) Model() string { return p.cfg.EmbedModel }

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// Embed 调用 /embeddings。服务端可能乱序返回，按 index 回填。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := p.http.PostJSON(ctx, "/embeddings", embeddingRequest{p.cfg.EmbedModel, texts}, &resp); err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index >= 0 && d.Index < len(out) {
			out[d.Index] = d.Embedding
		}
	}
	for i := range out {
		if out[i] == nil {
			return nil, fmt.Errorf("openai embed: 缺少第 %d 条向量", i)
		}
	}
	return out, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

// Chat 调用 /chat/completions，取第一个候选。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	o := llm.ApplyGenerateOptions(opts...)
	req := chatRequest{
		Model:       p.cfg.ChatModel,
		Messages:    messages,
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
	}
	if o.MaxTokens > 0 {
		req.MaxTokens = o.MaxTokens
	}
	if o.Temperature > 0 {
		req.Temperature = o.Temperature
	}

	var resp struct {
		Choices []struct {
			Message llm.Message `json:"message"`
		} `json:"choices"`
	}
	if err := p.http.PostJSON(ctx, "/chat/completions", req, &resp); err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai chat: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *Provider) Generate(ctx context.Context, prompt, systemPrompt string, opts ...llm.GenerateOption) (string, error) {
	return p.Chat(ctx, llm.BuildMessages(prompt, systemPrompt), opts...)
}
