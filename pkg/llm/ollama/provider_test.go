package ollama

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

func newTestProvider(url string) *Provider {
	return NewProviderWithConfig(&Config{
		BaseURL:    url,
		EmbedModel: "nomic-embed-text",
		ChatModel:  "qwen",
		Timeout:    time.Second,
	})
}

func TestProvider_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		_, _ = w.Write([]byte(`{"model":"nomic-embed-text","embeddings":[[0.1,0.2],[0.3,0.4]]}`))
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	got, err := p.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "nomic-embed-text", p.Model())
}

// TestProvider_Embed_CountMismatch 测试向量数量与输入不一致时报错。
func TestProvider_Embed_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[0.1]]}`))
	}))
	defer srv.Close()

	_, err := newTestProvider(srv.URL).Embed(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestProvider_Embed_Empty(t *testing.T) {
	got, err := newTestProvider("http://127.0.0.1:0").Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

// TestProvider_Generate_NumPredict 测试 max_tokens 映射为 num_predict。
func TestProvider_Generate_NumPredict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req chatRequest
		require.NoError(t, stdjson.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.Options)
		assert.Equal(t, 32, req.Options.NumPredict)
		assert.False(t, req.Stream)
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"ok"},"done":true}`))
	}))
	defer srv.Close()

	out, err := newTestProvider(srv.URL).Generate(context.Background(), "p", "", llm.WithMaxTokens(32))
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestProvider_Ping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	assert.NoError(t, newTestProvider(srv.URL).Ping(context.Background()))
}

// TestNewProvider_KeepsDefaults 测试空值不覆盖默认配置。
func TestNewProvider_KeepsDefaults(t *testing.T) {
	p, err := NewProvider(map[string]any{"embed_model": "bge-m3", "base_url": "", "timeout": time.Duration(0)})
	require.NoError(t, err)

	op := p.(*Provider)
	assert.Equal(t, "bge-m3", op.Model())
	assert.Equal(t, DefaultConfig().BaseURL, op.cfg.BaseURL)
	assert.Equal(t, 2*time.Minute, op.cfg.Timeout)
}
