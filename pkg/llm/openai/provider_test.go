package openai

import (
	"context"
	stdjson "encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-cluster/pkg/llm"
)

const testAPIKey = "test-key"

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name      string
		config    map[string]any
		wantError bool
		wantModel string
	}{
		{name: "默认配置", config: map[string]any{"api_key": testAPIKey}, wantModel: "text-embedding-3-small"},
		{name: "覆盖向量模型", config: map[string]any{"api_key": testAPIKey, "embed_model": "text-embedding-3-large"}, wantModel: "text-embedding-3-large"},
		{name: "缺少 api_key", config: map[string]any{}, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.config)
			if tt.wantError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, ProviderName, p.Name())
			assert.Equal(t, tt.wantModel, p.Model())
		})
	}
}

// TestProvider_Embed_ReordersByIndex 测试响应乱序时按 index 回填。
func TestProvider_Embed_ReordersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer "+testAPIKey, r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, stdjson.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "emb-model", req.Model)
		assert.Equal(t, []string{"a", "b"}, req.Input)

		_, _ = w.Write([]byte(`{"data":[{"embedding":[2,2],"index":1},{"embedding":[1,1],"index":0}],"model":"emb-model"}`))
	}))
	defer srv.Close()

	p := NewProviderWithConfig(&Config{BaseURL: srv.URL, APIKey: testAPIKey, EmbedModel: "emb-model", Timeout: time.Second})
	got, err := p.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 1}, {2, 2}}, got)
}

func TestProvider_Embed_MissingIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"embedding":[1],"index":0}]}`))
	}))
	defer srv.Close()

	p := NewProviderWithConfig(&Config{BaseURL: srv.URL, APIKey: testAPIKey, Timeout: time.Second})
	_, err := p.Embed(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

// TestProvider_Generate_Options 测试系统提示和 max_tokens 被正确传递。
func TestProvider_Generate_Options(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, stdjson.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
		assert.Equal(t, "sys", req.Messages[0].Content)
		assert.Equal(t, "hello", req.Messages[1].Content)
		assert.Equal(t, 64, req.MaxTokens)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"intent"}}]}`))
	}))
	defer srv.Close()

	p := NewProviderWithConfig(&Config{BaseURL: srv.URL, APIKey: testAPIKey, ChatModel: "c", Timeout: time.Second, MaxTokens: 10})
	out, err := p.Generate(context.Background(), "hello", "sys", llm.WithMaxTokens(64))
	require.NoError(t, err)
	assert.Equal(t, "intent", out)
}

func TestProvider_Chat_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	p := NewProviderWithConfig(&Config{BaseURL: srv.URL, APIKey: testAPIKey, Timeout: time.Second})
	_, err := p.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "x"}})
	assert.Error(t, err)
}

// TestProvider_OrganizationHeader 测试组织 ID 以请求头传递。
func TestProvider_OrganizationHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "org-1", r.Header.Get("OpenAI-Organization"))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	p, err := NewProvider(map[string]any{"api_key": testAPIKey, "base_url": srv.URL, "organization": "org-1"})
	require.NoError(t, err)
	out, err := p.Generate(context.Background(), "x", "")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, llm.ListProviders(), ProviderName)
}
