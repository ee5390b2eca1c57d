// Package llm 向量化与补全供应商的配置项。
package llm

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-cluster/pkg/llm/resilience"
	"github.com/kart-io/sentinel-cluster/pkg/options"
)

var _ options.IOptions = (*ProviderOptions)(nil)

// APIKeyEnv 未配置 api-key 时读取的环境变量。
const APIKeyEnv = "LLM_API_KEY"

// ProviderOptions 向量化与补全各持有一份，分别以 embedding. 和 chat. 为参数前缀。
type ProviderOptions struct {
	Provider     string        `json:"provider" mapstructure:"provider"`
	BaseURL      string        `json:"base-url" mapstructure:"base-url"`
	APIKey       string        `json:"-" mapstructure:"api-key"`
	Model        string        `json:"model" mapstructure:"model"`
	Organization string        `json:"organization" mapstructure:"organization"`
	Timeout      time.Duration `json:"timeout" mapstructure:"timeout"`
	// MaxRetries HTTP 层对 5xx/429 的重试次数
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// Resilient 为 true 时在供应商外层再包一层重试与熔断
	Resilient        bool          `json:"resilient" mapstructure:"resilient"`
	Attempts         uint          `json:"attempts" mapstructure:"attempts"`
	FailureThreshold int           `json:"failure-threshold" mapstructure:"failure-threshold"`
	Cooldown         time.Duration `json:"cooldown" mapstructure:"cooldown"`

	name string
}

func newProviderOptions(name, model string) *ProviderOptions {
	p := resilience.DefaultPolicy()
	return &ProviderOptions{
		Provider:         "ollama",
		BaseURL:          "http://localhost:11434",
		Model:            model,
		Timeout:          2 * time.Minute,
		MaxRetries:       3,
		Resilient:        true,
		Attempts:         p.Attempts,
		FailureThreshold: p.FailureThreshold,
		Cooldown:         p.Cooldown,
		name:             name,
	}
}

func NewEmbeddingOptions() *ProviderOptions { return newProviderOptions("embedding", "nomic-embed-text") }

func NewChatOptions() *ProviderOptions { return newProviderOptions("chat", "qwen2.5:7b") }

// ToConfigMap 生成供应商工厂的配置，model 非空时替换默认模型。
func (o *ProviderOptions) ToConfigMap(model string) map[string]any {
	if model == "" {
		model = o.Model
	}
	return map[string]any{
		"base_url":     o.BaseURL,
		"api_key":      o.APIKey,
		"organization": o.Organization,
		"embed_model":  model,
		"chat_model":   model,
		"timeout":      o.Timeout,
		"max_retries":  o.MaxRetries,
	}
}

// Policy 转换为 resilience 包的重试熔断策略。
func (o *ProviderOptions) Policy() *resilience.Policy {
	p := resilience.DefaultPolicy()
	p.Attempts = o.Attempts
	p.FailureThreshold = o.FailureThreshold
	p.Cooldown = o.Cooldown
	return p
}

func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(append(prefixes, o.name)...)
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "Provider name (ollama, openai).")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "Provider API base URL.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "API key; falls back to $"+APIKeyEnv+".")
	fs.StringVar(&o.Model, p+"model", o.Model, "Default model.")
	fs.StringVar(&o.Organization, p+"organization", o.Organization, "Organization ID (openai only).")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Per-request timeout.")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "HTTP retries on 5xx and 429.")
	fs.BoolVar(&o.Resilient, p+"resilient", o.Resilient, "Add retry with backoff and a circuit breaker around the provider.")
	fs.UintVar(&o.Attempts, p+"attempts", o.Attempts, "Calls per request when resilient, including the first.")
	fs.IntVar(&o.FailureThreshold, p+"failure-threshold", o.FailureThreshold, "Consecutive failures that open the circuit breaker.")
	fs.DurationVar(&o.Cooldown, p+"cooldown", o.Cooldown, "How long the circuit breaker stays open.")
}

func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(o.name+": "+format, args...))
		}
	}
	check(o.Provider != "", "provider is required")
	check(o.BaseURL != "", "base-url is required")
	check(o.Model != "", "model is required")
	check(o.Provider != "openai" || o.APIKey != "", "api-key is required for openai")
	check(o.Timeout > 0, "timeout must be positive")
	check(o.MaxRetries >= 0, "max-retries must not be negative")
	if o.Resilient {
		check(o.Attempts > 0, "attempts must be positive")
		check(o.FailureThreshold > 0, "failure-threshold must be positive")
		check(o.Cooldown > 0, "cooldown must be positive")
	}
	return errs
}

// Complete 从环境变量补全 API 密钥。
func (o *ProviderOptions) Complete() error {
	if o.APIKey == "" {
		o.APIKey = os.Getenv(APIKeyEnv)
	}
	return nil
}
