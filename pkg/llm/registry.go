package llm

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// ProviderFactory 由配置 map 创建供应商，键名见各实现的 mapstructure 标签。
type ProviderFactory func(config map[string]any) (Provider, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]ProviderFactory{}
)

// RegisterProvider 同名重复登记时后者覆盖前者。
func RegisterProvider(name string, factory ProviderFactory) {
	factoriesMu.Lock()
	factories[name] = factory
	factoriesMu.Unlock()
}

func NewProvider(name string, config map[string]any) (Provider, error) {
	factoriesMu.RLock()
	factory, ok := factories[name]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (registered: %v)", name, ListProviders())
	}
	return factory(config)
}

func NewEmbeddingProvider(name string, config map[string]any) (EmbeddingProvider, error) {
	p, err := NewProvider(name, config)
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	return p, nil
}

func NewChatProvider(name string, config map[string]any) (ChatProvider, error) {
	p, err := NewProvider(name, config)
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}
	return p, nil
}

// ListProviders 返回已登记的名称，按字典序。
func ListProviders() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	return slices.Sorted(maps.Keys(factories))
}

// DecodeConfig 按 mapstructure 标签把工厂配置解码进 out。
// nil、空字符串与非正时长视为未设置，out 中的默认值保留。
func DecodeConfig(config map[string]any, out any) error {
	set := make(map[string]any, len(config))
	for k, v := range config {
		switch tv := v.(type) {
		case nil:
			continue
		case string:
			if tv == "" {
				continue
			}
		case time.Duration:
			if tv <= 0 {
				continue
			}
		}
		set[k] = v
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	return dec.Decode(set)
}
