package biz

import (
	"context"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-cluster/internal/clustering/metrics"
	"github.com/kart-io/sentinel-cluster/internal/clustering/store"
	"github.com/kart-io/sentinel-cluster/internal/model"
	"github.com/kart-io/sentinel-cluster/pkg/id"
	"github.com/kart-io/sentinel-cluster/pkg/llm"
)

// EmbeddingResolver 为每个条目解析向量：指纹命中则复用，否则浓缩后向量化。
type EmbeddingResolver struct {
	store     store.EmbeddingStore
	condenser *Condenser
	config    *ResolverConfig
	metrics   *metrics.ClusteringMetrics
}

// NewEmbeddingResolver 创建向量解析器。
func NewEmbeddingResolver(es store.EmbeddingStore, condenser *Condenser, config *ResolverConfig, m *metrics.ClusteringMetrics) *EmbeddingResolver {
	if config == nil {
		config = DefaultResolverConfig()
	}
	if m == nil {
		m = metrics.Global()
	}
	return &EmbeddingResolver{store: es, condenser: condenser, config: config, metrics: m}
}

// LoadExisting 分页查询已有向量，返回命中的向量和需要新生成的条目。
// 命中的条目计为已解析，每页处理完推进一次进度。
func (r *EmbeddingResolver) LoadExisting(ctx context.Context, run *model.Clustering, items []model.Item, progress *Progress) ([]*model.Embedding, []model.Item, error) {
	batch := r.config.LookupBatchSize
	if batch <= 0 {
		batch = len(items)
	}

	var found []*model.Embedding
	var missing []model.Item
	for start := 0; start < len(items); start += batch {
		end := min(start+batch, len(items))
		page := items[start:end]

		ids := make([]string, len(page))
		for i, it := range page {
			ids[i] = it.ItemID()
		}
		stored, err := r.store.Find(ctx, run.Scope, ids, run.Model, run.Instruction)
		if err != nil {
			return nil, nil, err
		}

		hit := make(map[string]*model.Embedding, len(stored))
		for _, e := range stored {
			hit[e.OwnerID()] = e
		}
		for _, it := range page {
			if e, ok := hit[it.ItemID()]; ok {
				found = append(found, e)
				delete(hit, it.ItemID())
			} else {
				missing = append(missing, it)
			}
		}
		progress.Set(ctx, EmbeddingPercent(len(found), len(items)))
	}
	r.metrics.RecordEmbeddings(len(found), 0)

	logger.Infow("existing embeddings loaded",
		"run_id", run.ID,
		"cached", len(found),
		"missing", len(missing),
	)
	return found, missing, nil
}

// Generate 浓缩并向量化缺失的条目，新记录通过一次批量写入保存。
// done 为已解析的条目数，total 为总条目数，用于推进 0-50 区间的进度。
func (r *EmbeddingResolver) Generate(ctx context.Context, run *model.Clustering, missing []model.Item, embedder llm.EmbeddingProvider, progress *Progress, done, total int) ([]*model.Embedding, error) {
	if len(missing) == 0 {
		return nil, nil
	}

	condensed, err := r.condenser.Condense(ctx, missing, run.Instruction)
	if err != nil {
		return nil, err
	}
	if len(condensed) == 0 {
		return nil, nil
	}

	texts := make([]string, len(condensed))
	for i, c := range condensed {
		texts[i] = c.Text
	}

	vecs, err := NewVectorizer(embedder, r.config.EmbedBatchSize).Vectorize(ctx, texts, func(n int) {
		progress.Set(ctx, EmbeddingPercent(done+n, total))
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	created := make([]*model.Embedding, len(condensed))
	for i, c := range condensed {
		e := &model.Embedding{
			ID:          id.New(),
			OrgID:       c.Item.OrgID(),
			ProjectID:   c.Item.ProjectID(),
			Model:       run.Model,
			Instruction: run.Instruction,
			Text:        c.Text,
			Embeddings:  vecs[i],
			CreatedAt:   now,
		}
		e.SetOwner(run.Scope, c.Item.ItemID())
		created[i] = e
	}

	if err := r.store.InsertMany(ctx, created); err != nil {
		return nil, err
	}
	r.metrics.RecordEmbeddings(0, len(created))
	return created, nil
}
