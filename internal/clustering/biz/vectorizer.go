package biz

import (
	"context"
	"fmt"

	"github.com/kart-io/sentinel-cluster/pkg/errors"
	"github.com/kart-io/sentinel-cluster/pkg/llm"
)

// Vectorizer 按批调用向量化供应商。
type Vectorizer struct {
	embedder  llm.EmbeddingProvider
	batchSize int
}

// NewVectorizer 创建向量化器，batchSize <= 0 时使用 1024。
func NewVectorizer(embedder llm.EmbeddingProvider, batchSize int) *Vectorizer {
	if batchSize <= 0 {
		batchSize = 1024
	}
	return &Vectorizer{embedder: embedder, batchSize: batchSize}
}

// Vectorize 返回与 texts 一一对应的向量；每完成一批调用 onBatch(已完成数)。
func (v *Vectorizer) Vectorize(ctx context.Context, texts []string, onBatch func(done int)) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))

	for start := 0; start < len(texts); start += v.batchSize {
		end := min(start+v.batchSize, len(texts))

		vecs, err := v.embedder.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, errors.ErrLLMFailure.WithCause(fmt.Errorf("embed batch [%d:%d]: %w", start, end, err))
		}
		if len(vecs) != end-start {
			return nil, errors.ErrLLMFailure.WithMessagef("embedding count mismatch: got %d, want %d", len(vecs), end-start)
		}
		for _, vec := range vecs {
			out = append(out, toFloat64(vec))
		}
		if onBatch != nil {
			onBatch(end)
		}
	}
	return out, nil
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
