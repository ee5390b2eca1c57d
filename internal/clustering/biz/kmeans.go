package biz

import (
	"context"
	"math"
	"math/rand"
	"slices"
	"time"

	"github.com/kart-io/sentinel-cluster/internal/pkg/textutil"
)

// KMeans 基于余弦相似度的 KMeans 聚类，k-means++ 初始化。
type KMeans struct {
	K             int
	MaxIterations int
	// ConvergenceThreshold 中心余弦相似度变化小于该值时停止。
	ConvergenceThreshold float64

	rng *rand.Rand
}

// NewKMeans 创建 KMeans 聚类器，seed 为 0 时按时间取种。
func NewKMeans(k, maxIterations int, seed int64) *KMeans {
	if maxIterations <= 0 {
		maxIterations = 50
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &KMeans{
		K:                    k,
		MaxIterations:        maxIterations,
		ConvergenceThreshold: 1e-4,
		//nolint:gosec // G404: 聚类初始化，非安全敏感场景
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Cluster 实现 Clusterer。
func (c *KMeans) Cluster(ctx context.Context, x [][]float64) ([]int, error) {
	n := len(x)
	k := min(max(c.K, 1), n)

	// 点数不超过簇数时每个点单独成簇
	if n <= k {
		labels := make([]int, n)
		for i := range labels {
			labels[i] = i
		}
		return labels, nil
	}

	centers := c.initializeCenters(x, k)
	var assignments []int
	for iter := 0; iter < c.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next := assignClusters(x, centers)
		if iter > 0 && slices.Equal(assignments, next) {
			break
		}
		assignments = next

		newCenters := updateCenters(x, assignments, centers)
		if c.centersConverged(centers, newCenters) {
			break
		}
		centers = newCenters
	}
	return assignments, nil
}

// initializeCenters k-means++：距离已有中心越远的点被选为下一个中心的概率越大。
func (c *KMeans) initializeCenters(x [][]float64, k int) [][]float64 {
	centers := make([][]float64, 0, k)
	centers = append(centers, x[c.rng.Intn(len(x))])

	distances := make([]float64, len(x))
	for len(centers) < k {
		total := 0.0
		for j, p := range x {
			minDist := 2.0 // 余弦距离最大为 2
			for _, center := range centers {
				if d := 1 - textutil.CosineSimilarity(p, center); d < minDist {
					minDist = d
				}
			}
			distances[j] = minDist * minDist
			total += distances[j]
		}

		if total == 0 {
			// 剩余点与已有中心重合
			centers = append(centers, x[c.rng.Intn(len(x))])
			continue
		}

		r := c.rng.Float64() * total
		cumulative := 0.0
		chosen := len(x) - 1
		for j, d := range distances {
			cumulative += d
			if cumulative >= r {
				chosen = j
				break
			}
		}
		centers = append(centers, x[chosen])
	}
	return centers
}

func assignClusters(x [][]float64, centers [][]float64) []int {
	assignments := make([]int, len(x))
	for i, p := range x {
		best, bestSim := 0, math.Inf(-1)
		for j, center := range centers {
			if sim := textutil.CosineSimilarity(p, center); sim > bestSim {
				best, bestSim = j, sim
			}
		}
		assignments[i] = best
	}
	return assignments
}

// updateCenters 重新计算每个簇的单位化均值向量，空簇保留原中心。
func updateCenters(x [][]float64, assignments []int, old [][]float64) [][]float64 {
	k, dim := len(old), len(x[0])
	sums := make([][]float64, k)
	counts := make([]int, k)
	for i := range sums {
		sums[i] = make([]float64, dim)
	}
	for i, p := range x {
		a := assignments[i]
		counts[a]++
		for d, v := range p {
			sums[a][d] += v
		}
	}

	centers := make([][]float64, k)
	for i := range sums {
		if counts[i] == 0 {
			centers[i] = old[i]
			continue
		}
		centers[i] = normalize(sums[i])
	}
	return centers
}

func normalize(v []float64) []float64 {
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

func (c *KMeans) centersConverged(old, next [][]float64) bool {
	for i := range old {
		if textutil.CosineSimilarity(old[i], next[i]) < 1-c.ConvergenceThreshold {
			return false
		}
	}
	return true
}
