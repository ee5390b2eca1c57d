package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockClient struct {
	name     string
	pingErr  error
	closeErr error
	closed   *[]string
}

func (m *mockClient) Name() string                 { return m.name }
func (m *mockClient) Ping(_ context.Context) error { return m.pingErr }
func (m *mockClient) Close() error {
	if m.closed != nil {
		*m.closed = append(*m.closed, m.name)
	}
	return m.closeErr
}

func TestManager_Register(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Register("mongodb", &mockClient{name: "mongodb"}))

	assert.Error(t, m.Register("mongodb", &mockClient{name: "mongodb"}))
	assert.Error(t, m.Register("", &mockClient{}))
	assert.Error(t, m.Register("nil", nil))

	c, ok := m.Get("mongodb")
	require.True(t, ok)
	assert.Equal(t, "mongodb", c.Name())
}

// TestManager_HealthCheckAll 测试健康检查结果按名称排序并标记失败的客户端。
func TestManager_HealthCheckAll(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Register("redis", &mockClient{name: "redis", pingErr: errors.New("down")}))
	require.NoError(t, m.Register("mongodb", &mockClient{name: "mongodb"}))

	statuses := m.HealthCheckAll(context.Background())
	require.Len(t, statuses, 2)
	assert.Equal(t, "mongodb", statuses[0].Name)
	assert.True(t, statuses[0].Healthy)
	assert.Equal(t, "redis", statuses[1].Name)
	assert.False(t, statuses[1].Healthy)
	assert.EqualError(t, statuses[1].Error, "down")
}

// TestManager_CloseAll 测试按注册逆序关闭并聚合错误。
func TestManager_CloseAll(t *testing.T) {
	var closed []string
	m := NewManager()
	require.NoError(t, m.Register("a", &mockClient{name: "a", closed: &closed}))
	require.NoError(t, m.Register("b", &mockClient{name: "b", closed: &closed, closeErr: errors.New("boom")}))

	err := m.CloseAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close b: boom")
	assert.Equal(t, []string{"b", "a"}, closed)

	_, ok := m.Get("a")
	assert.False(t, ok)
	assert.NoError(t, m.CloseAll())
}
