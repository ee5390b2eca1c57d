// Package storage defines the lifecycle contract shared by the backing stores
// (MongoDB, Redis) and a manager that owns their health checks and shutdown.
package storage

import (
	"context"
	"time"
)

// Client is the base interface that all storage clients must implement.
type Client interface {
	// Name returns the storage type name, e.g. "mongodb" or "redis".
	Name() string

	// Ping checks if the connection to the storage backend is alive.
	Ping(ctx context.Context) error

	// Close closes the connection gracefully. Safe to call multiple times.
	Close() error
}

// HealthStatus represents the result of a health check operation.
type HealthStatus struct {
	Name    string        `json:"name"`
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Error   error         `json:"-"`
}
