package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/kart-io/sentinel-cluster/internal/model"
	"github.com/kart-io/sentinel-cluster/pkg/errors"
	"github.com/kart-io/sentinel-cluster/pkg/id"
)

// MemoryStore 进程内实现，用于测试和无数据库的本地运行。
// 自身实现 RunStore、ClusterStore 和 ItemLoader，Embeddings 返回 EmbeddingStore 视图。
type MemoryStore struct {
	mu         sync.RWMutex
	runs       map[string]*model.Clustering
	clusters   map[string][]*model.Cluster
	embeddings map[model.Fingerprint]*model.Embedding
	items      []model.Item

	// ProgressLog 记录每次进度写入，便于断言。
	ProgressLog []float64
	// StatusLog 记录每次状态写入。
	StatusLog []model.Status
}

var (
	_ RunStore       = (*MemoryStore)(nil)
	_ ClusterStore   = (*MemoryStore)(nil)
	_ EmbeddingStore = memoryEmbeddings{}
	_ ItemLoader     = (*MemoryStore)(nil)
)

// NewMemoryStore 创建空的内存存储。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:       make(map[string]*model.Clustering),
		clusters:   make(map[string][]*model.Cluster),
		embeddings: make(map[model.Fingerprint]*model.Embedding),
	}
}

// AddItems 追加可加载的条目。
func (m *MemoryStore) AddItems(items ...model.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, items...)
}

// Create 实现 RunStore。
func (m *MemoryStore) Create(_ context.Context, run *model.Clustering) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if run.ID == "" {
		run.ID = id.New()
	}
	now := time.Now()
	run.CreatedAt, run.UpdatedAt = now, now
	cp := *run
	m.runs[run.ID] = &cp
	m.StatusLog = append(m.StatusLog, run.Status)
	return nil
}

// Get 实现 RunStore。
func (m *MemoryStore) Get(_ context.Context, runID string) (*model.Clustering, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[runID]
	if !ok {
		return nil, errors.ErrRunNotFound.WithMessagef("clustering %s not found", runID)
	}
	cp := *run
	return &cp, nil
}

func (m *MemoryStore) update(runID string, fn func(*model.Clustering)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return errors.ErrRunNotFound.WithMessagef("clustering %s not found", runID)
	}
	fn(run)
	run.UpdatedAt = time.Now()
	return nil
}

// UpdateStatus 实现 RunStore。
func (m *MemoryStore) UpdateStatus(_ context.Context, runID string, status model.Status) error {
	return m.update(runID, func(r *model.Clustering) {
		r.Status = status
		m.StatusLog = append(m.StatusLog, status)
	})
}

// UpdateProgress 实现 RunStore。
func (m *MemoryStore) UpdateProgress(_ context.Context, runID string, percent float64) error {
	return m.update(runID, func(r *model.Clustering) {
		p := model.ClampPercent(percent)
		r.PercentOfCompletion = &p
		m.ProgressLog = append(m.ProgressLog, p)
	})
}

// Complete 实现 RunStore。
func (m *MemoryStore) Complete(_ context.Context, runID string, c model.Completion) error {
	return m.update(runID, func(r *model.Clustering) {
		p := 100.0
		now := time.Now()
		r.NbClusters = c.NbClusters
		r.ClustersIDs = slices.Clone(c.ClustersIDs)
		r.PCA = slices.Clone(c.PCA)
		r.PercentOfCompletion = &p
		r.Status = model.StatusCompleted
		r.CompletedAt = &now
		m.ProgressLog = append(m.ProgressLog, p)
		m.StatusLog = append(m.StatusLog, model.StatusCompleted)
	})
}

// Delete 实现 RunStore。
func (m *MemoryStore) Delete(_ context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.runs, runID)
	delete(m.clusters, runID)
	return nil
}

// InsertMany 实现 ClusterStore。
func (m *MemoryStore) InsertMany(_ context.Context, clusters []*model.Cluster) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range clusters {
		cp := *c
		m.clusters[c.ClusteringID] = append(m.clusters[c.ClusteringID], &cp)
	}
	return nil
}

// ListByClustering 实现 ClusterStore。
func (m *MemoryStore) ListByClustering(_ context.Context, clusteringID string) ([]*model.Cluster, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.clusters[clusteringID]), nil
}

// memoryEmbeddings 是 MemoryStore 的 EmbeddingStore 视图。
type memoryEmbeddings struct {
	m *MemoryStore
}

// Embeddings 返回向量存储视图。
func (m *MemoryStore) Embeddings() EmbeddingStore {
	return memoryEmbeddings{m: m}
}

func (v memoryEmbeddings) Find(ctx context.Context, scope model.Scope, ownerIDs []string, modelID, instruction string) ([]*model.Embedding, error) {
	return v.m.FindEmbeddings(ctx, scope, ownerIDs, modelID, instruction)
}

func (v memoryEmbeddings) InsertMany(ctx context.Context, embeddings []*model.Embedding) error {
	return v.m.InsertEmbeddings(ctx, embeddings)
}

// FindEmbeddings 按指纹查找向量。
func (m *MemoryStore) FindEmbeddings(_ context.Context, _ model.Scope, ownerIDs []string, modelID, instruction string) ([]*model.Embedding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.Embedding, 0, len(ownerIDs))
	for _, owner := range ownerIDs {
		if e, ok := m.embeddings[model.Fingerprint{OwnerID: owner, Model: modelID, Instruction: instruction}]; ok {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// InsertEmbeddings 按指纹 upsert 向量，见 EmbeddingStore.InsertMany。
func (m *MemoryStore) InsertEmbeddings(_ context.Context, embeddings []*model.Embedding) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range embeddings {
		if err := e.Validate(); err != nil {
			return errors.ErrStoreFailure.WithCause(err)
		}
		fp := e.Fingerprint()
		if existing, ok := m.embeddings[fp]; ok {
			e.ID = existing.ID
			continue
		}
		if e.ID == "" {
			e.ID = id.New()
		}
		cp := *e
		m.embeddings[fp] = &cp
	}
	return nil
}

// EmbeddingCount 返回已存储的向量数量。
func (m *MemoryStore) EmbeddingCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.embeddings)
}

// RunCount 返回任务记录数量。
func (m *MemoryStore) RunCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runs)
}

// LoadItems 实现 ItemLoader，过滤条件被忽略。
func (m *MemoryStore) LoadItems(_ context.Context, projectID string, scope model.Scope, _ map[string]any, limit int) ([]model.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Item
	for _, it := range m.items {
		if it.ProjectID() != projectID || it.Scope() != scope {
			continue
		}
		out = append(out, it)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
