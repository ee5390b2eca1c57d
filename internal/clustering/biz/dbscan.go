package biz

import (
	"context"
)

// DBSCAN 基于密度的聚类，欧氏距离。
// MinSamples 计入点自身；无法归入任何簇的点标记为 NoiseLabel。
type DBSCAN struct {
	Eps        float64
	MinSamples int
}

const unvisited = -2

// Cluster 实现 Clusterer。
func (d *DBSCAN) Cluster(ctx context.Context, x [][]float64) ([]int, error) {
	n := len(x)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = unvisited
	}

	neighbors := func(p int) []int {
		var out []int
		for q := 0; q < n; q++ {
			if euclidean(x[p], x[q]) <= d.Eps {
				out = append(out, q)
			}
		}
		return out
	}

	next := 0
	for p := 0; p < n; p++ {
		if labels[p] != unvisited {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		seeds := neighbors(p)
		if len(seeds) < d.MinSamples {
			labels[p] = NoiseLabel
			continue
		}

		label := next
		next++
		labels[p] = label

		for i := 0; i < len(seeds); i++ {
			q := seeds[i]
			if labels[q] == NoiseLabel {
				// 边界点
				labels[q] = label
				continue
			}
			if labels[q] != unvisited {
				continue
			}
			labels[q] = label
			if qn := neighbors(q); len(qn) >= d.MinSamples {
				seeds = append(seeds, qn...)
			}
		}
	}
	return labels, nil
}
