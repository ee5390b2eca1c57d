package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// Manager 按名称登记存储客户端，统一健康检查与关闭。
type Manager struct {
	mu      sync.RWMutex
	clients map[string]Client
	order   []string
}

// NewManager creates a new storage manager instance.
func NewManager() *Manager {
	return &Manager{clients: make(map[string]Client)}
}

// Register registers a storage client with the given name.
func (m *Manager) Register(name string, client Client) error {
	if name == "" {
		return fmt.Errorf("storage: client name cannot be empty")
	}
	if client == nil {
		return fmt.Errorf("storage: client %q is nil", name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clients[name]; ok {
		return fmt.Errorf("storage: client %q already registered", name)
	}
	m.clients[name] = client
	m.order = append(m.order, name)
	return nil
}

// Get returns the client registered under name.
func (m *Manager) Get(name string) (Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[name]
	return c, ok
}

// HealthCheckAll pings every registered client concurrently.
// 返回结果按名称排序。
func (m *Manager) HealthCheckAll(ctx context.Context) []HealthStatus {
	m.mu.RLock()
	names := append([]string(nil), m.order...)
	clients := make([]Client, len(names))
	for i, n := range names {
		clients[i] = m.clients[n]
	}
	m.mu.RUnlock()

	statuses := make([]HealthStatus, len(names))
	var g errgroup.Group
	for i := range clients {
		g.Go(func() error {
			start := time.Now()
			err := clients[i].Ping(ctx)
			statuses[i] = HealthStatus{
				Name:    names[i],
				Healthy: err == nil,
				Latency: time.Since(start),
				Error:   err,
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(statuses, func(a, b int) bool { return statuses[a].Name < statuses[b].Name })
	return statuses
}

// CloseAll closes clients in reverse registration order and aggregates errors.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for i := len(m.order) - 1; i >= 0; i-- {
		name := m.order[i]
		if err := m.clients[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	m.clients = make(map[string]Client)
	m.order = nil
	return utilerrors.NewAggregate(errs)
}
