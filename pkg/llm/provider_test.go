package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decodeTarget struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// TestDecodeConfig 测试零值跳过与弱类型转换。
func TestDecodeConfig(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]any
		want decodeTarget
	}{
		{"空 map 保留默认", nil, decodeTarget{BaseURL: "http://d", Timeout: time.Second, MaxRetries: 3}},
		{"空字符串跳过", map[string]any{"base_url": ""}, decodeTarget{BaseURL: "http://d", Timeout: time.Second, MaxRetries: 3}},
		{"覆盖", map[string]any{"base_url": "http://x", "timeout": 5 * time.Second}, decodeTarget{BaseURL: "http://x", Timeout: 5 * time.Second, MaxRetries: 3}},
		{"字符串时长", map[string]any{"timeout": "2s", "max_retries": "0"}, decodeTarget{BaseURL: "http://d", Timeout: 2 * time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decodeTarget{BaseURL: "http://d", Timeout: time.Second, MaxRetries: 3}
			require.NoError(t, DecodeConfig(tt.in, &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildMessages(t *testing.T) {
	assert.Equal(t, []Message{{Role: RoleUser, Content: "p"}}, BuildMessages("p", ""))
	msgs := BuildMessages("p", "s")
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleSystem, msgs[0].Role)
}

func TestNewProvider_Unknown(t *testing.T) {
	_, err := NewChatProvider("nope", nil)
	assert.ErrorContains(t, err, "unknown provider")
}
