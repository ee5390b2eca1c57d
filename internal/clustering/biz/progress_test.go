package biz

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-cluster/internal/clustering/store"
	"github.com/kart-io/sentinel-cluster/internal/model"
)

func TestEmbeddingPercent(t *testing.T) {
	tests := []struct {
		done, total int
		want        float64
	}{
		{0, 10, 0},
		{5, 10, 25},
		{10, 10, 50},
		{12, 10, 50},
		{3, 0, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, EmbeddingPercent(tt.done, tt.total), 1e-9, "done=%d total=%d", tt.done, tt.total)
	}
}

func TestSummaryPercent(t *testing.T) {
	tests := []struct {
		done, total int
		want        float64
	}{
		{0, 4, 50},
		{1, 4, 60},
		{4, 4, 90},
		{6, 4, 90},
		{0, 0, 50},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, SummaryPercent(tt.done, tt.total), 1e-9, "done=%d total=%d", tt.done, tt.total)
	}
}

func TestProgress_Set(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	run := &model.Clustering{ProjectID: "p"}
	require.NoError(t, s.Create(ctx, run))

	p := NewProgress(s, run.ID)
	p.Set(ctx, 42)
	p.Set(ctx, 250)
	p.Set(ctx, -3)

	assert.Equal(t, []float64{42, 100}, s.ProgressLog)
	assert.Equal(t, 100.0, p.Current())
}

// TestProgress_SetConcurrentMonotonic 测试并发写入时落库的进度严格递增。
func TestProgress_SetConcurrentMonotonic(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	run := &model.Clustering{ProjectID: "p"}
	require.NoError(t, s.Create(ctx, run))

	p := NewProgress(s, run.ID)
	var wg sync.WaitGroup
	for i := 1; i <= 40; i++ {
		wg.Add(1)
		go func(done int) {
			defer wg.Done()
			p.Set(ctx, SummaryPercent(done, 40))
		}(i)
	}
	wg.Wait()

	require.NotEmpty(t, s.ProgressLog)
	for i := 1; i < len(s.ProgressLog); i++ {
		assert.Greater(t, s.ProgressLog[i], s.ProgressLog[i-1])
	}
	assert.Equal(t, 90.0, s.ProgressLog[len(s.ProgressLog)-1])
	assert.Equal(t, 90.0, p.Current())
}

// TestProgress_SetMissingRun 测试写入失败只记录日志。
func TestProgress_SetMissingRun(t *testing.T) {
	p := NewProgress(store.NewMemoryStore(), "missing")
	assert.NotPanics(t, func() { p.Set(context.Background(), 10) })
	assert.Equal(t, 10.0, p.Current())
}
