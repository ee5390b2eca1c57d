// Package store 定义聚类流水线的外部协作者接口及其实现。
package store

import (
	"context"

	"github.com/kart-io/sentinel-cluster/internal/model"
)

// RunStore 聚类任务记录的持久化。
type RunStore interface {
	// Create 创建任务记录，ID 为空时自动生成。
	Create(ctx context.Context, run *model.Clustering) error

	// Get 读取任务记录，不存在时返回 errors.ErrRunNotFound。
	Get(ctx context.Context, id string) (*model.Clustering, error)

	// UpdateStatus 更新任务状态。
	UpdateStatus(ctx context.Context, id string, status model.Status) error

	// UpdateProgress 更新完成百分比，写入前限制在 [0, 100]。
	UpdateProgress(ctx context.Context, id string, percent float64) error

	// Complete 一次性写入终态字段。
	Complete(ctx context.Context, id string, c model.Completion) error

	// Delete 删除任务记录。
	Delete(ctx context.Context, id string) error
}

// ClusterStore 簇记录的持久化。
type ClusterStore interface {
	InsertMany(ctx context.Context, clusters []*model.Cluster) error
	ListByClustering(ctx context.Context, clusteringID string) ([]*model.Cluster, error)
}

// EmbeddingStore 按 (归属 ID, 模型, 指令) 指纹缓存的向量存储。
type EmbeddingStore interface {
	// Find 返回给定归属 ID 中已有向量的记录，顺序不保证。
	Find(ctx context.Context, scope model.Scope, ownerIDs []string, modelID, instruction string) ([]*model.Embedding, error)

	// InsertMany 按指纹 upsert，已存在的指纹保持原记录不变，
	// 并把入参中对应记录的 ID 改写为已存储记录的 ID。
	InsertMany(ctx context.Context, embeddings []*model.Embedding) error
}

// ItemLoader 按项目和过滤条件加载待聚类条目。
type ItemLoader interface {
	LoadItems(ctx context.Context, projectID string, scope model.Scope, filters map[string]any, limit int) ([]model.Item, error)
}
