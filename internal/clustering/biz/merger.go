package biz

import (
	"github.com/kart-io/sentinel-cluster/internal/model"
	"github.com/kart-io/sentinel-cluster/internal/pkg/textutil"
)

// MergeClusters 合并名称相近的簇。
//
// 每个名称分词后在全体词表上构成独热（出现即为 1）向量，计算两两余弦相似度，
// 仅保留上三角。反复取最大值 (i, j)：只要大于 threshold，i 吸收 j，
// 并将第 j 行和第 j 列清零。返回按原顺序排列的剩余簇以及被合并的簇数。
// 名称为占位标题 NoTitle 的簇不参与合并。
func MergeClusters(clusters []*model.Cluster, threshold float64) ([]*model.Cluster, int) {
	n := len(clusters)
	if n < 2 {
		return clusters, 0
	}

	sim := nameSimilarity(clusters)
	removed := make([]bool, n)
	merged := 0

	for {
		bi, bj, best := -1, -1, 0.0
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if sim[i][j] > best {
					bi, bj, best = i, j, sim[i][j]
				}
			}
		}
		if bi < 0 || best <= threshold {
			break
		}

		clusters[bi].Absorb(clusters[bj])
		removed[bj] = true
		merged++
		for k := 0; k < n; k++ {
			sim[bj][k] = 0
			sim[k][bj] = 0
		}
	}

	out := make([]*model.Cluster, 0, n-merged)
	for i, c := range clusters {
		if !removed[i] {
			out = append(out, c)
		}
	}
	return out, merged
}

// nameSimilarity 返回名称独热向量的余弦相似度矩阵，对角线及下三角为 0。
// 占位标题的簇得到零向量，与任何簇的相似度都为 0。
func nameSimilarity(clusters []*model.Cluster) [][]float64 {
	vocab := make(map[string]int)
	tokens := make([][]string, len(clusters))
	for i, c := range clusters {
		if c.Name == NoTitle {
			continue
		}
		tokens[i] = textutil.Tokenize(c.Name)
		for _, t := range tokens[i] {
			if _, ok := vocab[t]; !ok {
				vocab[t] = len(vocab)
			}
		}
	}

	vectors := make([][]float64, len(clusters))
	for i, toks := range tokens {
		v := make([]float64, len(vocab))
		for _, t := range toks {
			v[vocab[t]] = 1
		}
		vectors[i] = v
	}

	sim := make([][]float64, len(clusters))
	for i := range sim {
		sim[i] = make([]float64, len(clusters))
		for j := i + 1; j < len(clusters); j++ {
			sim[i][j] = textutil.CosineSimilarity(vectors[i], vectors[j])
		}
	}
	return sim
}
