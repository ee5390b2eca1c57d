package store

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-cluster/internal/model"
	"github.com/kart-io/sentinel-cluster/pkg/errors"
)

func TestMemoryStore_RunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	run := &model.Clustering{ProjectID: "p1", Status: model.StatusStarted}
	require.NoError(t, s.Create(ctx, run))
	require.NotEmpty(t, run.ID)

	require.NoError(t, s.UpdateStatus(ctx, run.ID, model.StatusGenerateClusters))
	require.NoError(t, s.UpdateProgress(ctx, run.ID, 140))

	got, err := s.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusGenerateClusters, got.Status)
	require.NotNil(t, got.PercentOfCompletion)
	assert.Equal(t, 100.0, *got.PercentOfCompletion)

	require.NoError(t, s.Complete(ctx, run.ID, model.Completion{NbClusters: 2, ClustersIDs: []string{"a", "b"}}))
	got, err = s.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, []string{"a", "b"}, got.ClustersIDs)
	assert.NotNil(t, got.CompletedAt)

	require.NoError(t, s.Delete(ctx, run.ID))
	_, err = s.Get(ctx, run.ID)
	assert.True(t, stderrors.Is(err, errors.ErrRunNotFound))
	assert.Equal(t, 0, s.RunCount())
}

func TestMemoryStore_UpdateMissingRun(t *testing.T) {
	err := NewMemoryStore().UpdateStatus(context.Background(), "missing", model.StatusCompleted)
	assert.True(t, stderrors.Is(err, errors.ErrRunNotFound))
}

// TestMemoryStore_EmbeddingFingerprint 测试同一指纹只保存一次，且重复写入沿用已存储的 ID。
func TestMemoryStore_EmbeddingFingerprint(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	es := s.Embeddings()

	first := &model.Embedding{Model: "m", Instruction: "i", Embeddings: []float64{1}}
	first.SetOwner(model.ScopeMessages, "t1")
	require.NoError(t, es.InsertMany(ctx, []*model.Embedding{first}))

	dup := &model.Embedding{ID: "other", Model: "m", Instruction: "i", Embeddings: []float64{2}}
	dup.SetOwner(model.ScopeMessages, "t1")
	require.NoError(t, es.InsertMany(ctx, []*model.Embedding{dup}))

	assert.Equal(t, 1, s.EmbeddingCount())
	assert.Equal(t, first.ID, dup.ID)

	found, err := es.Find(ctx, model.ScopeMessages, []string{"t1", "t2"}, "m", "i")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, []float64{1}, found[0].Embeddings)

	found, err = es.Find(ctx, model.ScopeMessages, []string{"t1"}, "m", "other instruction")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestMemoryStore_InsertInvalidEmbedding(t *testing.T) {
	err := NewMemoryStore().Embeddings().InsertMany(context.Background(), []*model.Embedding{{Embeddings: []float64{1}}})
	assert.True(t, stderrors.Is(err, errors.ErrStoreFailure))
}

func TestMemoryStore_LoadItems(t *testing.T) {
	s := NewMemoryStore()
	owner := model.Owner{Project: "p1"}
	s.AddItems(
		&model.Session{Owner: owner, ID: "s1"},
		&model.Session{Owner: owner, ID: "s2"},
		&model.Session{Owner: model.Owner{Project: "p2"}, ID: "s3"},
		&model.Message{Owner: owner, ID: "m1"},
	)

	items, err := s.LoadItems(context.Background(), "p1", model.ScopeSessions, nil, 0)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = s.LoadItems(context.Background(), "p1", model.ScopeSessions, nil, 1)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestMemoryStore_Clusters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.InsertMany(ctx, []*model.Cluster{{ID: "c1", ClusteringID: "r1"}, {ID: "c2", ClusteringID: "r2"}}))

	got, err := s.ListByClustering(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c1", got[0].ID)
}
