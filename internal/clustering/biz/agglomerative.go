package biz

import (
	"context"
	"math"
	"sort"
)

// Agglomerative Ward 层次聚类，切分为 K 个簇。
// 使用最近邻链算法和 Lance-Williams 更新，距离矩阵按上三角压缩存储。
type Agglomerative struct {
	K int
}

type merge struct {
	a, b   int
	height float64
}

// condensed 上三角压缩距离矩阵。
type condensed struct {
	n int
	d []float64
}

func newCondensed(x [][]float64) *condensed {
	n := len(x)
	c := &condensed{n: n, d: make([]float64, n*(n-1)/2)}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			c.d[c.index(i, j)] = squaredEuclidean(x[i], x[j])
		}
	}
	return c
}

func (c *condensed) index(i, j int) int {
	if i > j {
		i, j = j, i
	}
	return c.n*i - i*(i+1)/2 + j - i - 1
}

func (c *condensed) get(i, j int) float64     { return c.d[c.index(i, j)] }
func (c *condensed) set(i, j int, v float64) { c.d[c.index(i, j)] = v }

// Cluster 实现 Clusterer。
func (a *Agglomerative) Cluster(ctx context.Context, x [][]float64) ([]int, error) {
	n := len(x)
	if n == 0 {
		return nil, nil
	}
	k := min(max(a.K, 1), n)
	if n == 1 || k == n {
		labels := make([]int, n)
		for i := range labels {
			labels[i] = i
		}
		return labels, nil
	}

	merges, err := wardMerges(ctx, x)
	if err != nil {
		return nil, err
	}
	return cutTree(n, merges, k), nil
}

// wardMerges 返回 n-1 次合并，按高度升序。
func wardMerges(ctx context.Context, x [][]float64) ([]merge, error) {
	n := len(x)
	dist := newCondensed(x)
	size := make([]float64, n)
	active := make([]bool, n)
	for i := range size {
		size[i] = 1
		active[i] = true
	}

	merges := make([]merge, 0, n-1)
	chain := make([]int, 0, n)

	for remaining := n; remaining > 1; remaining-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(chain) == 0 {
			for i := 0; i < n; i++ {
				if active[i] {
					chain = append(chain, i)
					break
				}
			}
		}

		var p, q int
		for {
			p = chain[len(chain)-1]

			// 平局时优先链上的前一个元素，保证链终止
			best, bestDist := -1, math.Inf(1)
			if len(chain) > 1 {
				best = chain[len(chain)-2]
				bestDist = dist.get(p, best)
			}
			for i := 0; i < n; i++ {
				if !active[i] || i == p {
					continue
				}
				if d := dist.get(p, i); d < bestDist {
					best, bestDist = i, d
				}
			}

			if len(chain) > 1 && best == chain[len(chain)-2] {
				q = best
				chain = chain[:len(chain)-2]
				break
			}
			chain = append(chain, best)
		}

		if p > q {
			p, q = q, p
		}
		merges = append(merges, merge{a: p, b: q, height: dist.get(p, q)})

		// 合并后的簇保存在 q，p 失效
		dpq := dist.get(p, q)
		for i := 0; i < n; i++ {
			if !active[i] || i == p || i == q {
				continue
			}
			t := size[p] + size[q] + size[i]
			dist.set(q, i, ((size[p]+size[i])*dist.get(p, i)+(size[q]+size[i])*dist.get(q, i)-size[i]*dpq)/t)
		}
		active[p] = false
		size[q] += size[p]
	}

	sort.SliceStable(merges, func(i, j int) bool { return merges[i].height < merges[j].height })
	return merges, nil
}

// cutTree 应用最低的 n-k 次合并，按首次出现顺序给出标签。
func cutTree(n int, merges []merge, k int) []int {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	for _, m := range merges[:n-k] {
		ra, rb := find(m.a), find(m.b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	labels := make([]int, n)
	ids := make(map[int]int)
	for i := 0; i < n; i++ {
		root := find(i)
		l, ok := ids[root]
		if !ok {
			l = len(ids)
			ids[root] = l
		}
		labels[i] = l
	}
	return labels
}
