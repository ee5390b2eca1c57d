package biz

import (
	"context"
	"math"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-cluster/internal/model"
	"github.com/kart-io/sentinel-cluster/pkg/errors"
)

// NoiseLabel DBSCAN 中未归入任何簇的点。
const NoiseLabel = -1

// Clusterer 将 n×d 矩阵划分为带标签的组，返回与输入行一一对应的标签。
type Clusterer interface {
	Cluster(ctx context.Context, x [][]float64) ([]int, error)
}

// ResolveK 计算目标簇数：指定值优先，否则 max(minNb, n/avg)，最后不超过 n。
func ResolveK(nbClusters, n, minNbClusters, averageClusterSize int) int {
	k := nbClusters
	if k <= 0 {
		k = minNbClusters
		if averageClusterSize > 0 {
			k = max(minNbClusters, n/averageClusterSize)
		}
	}
	return max(min(k, n), 0)
}

// ClusteringEngine 选择算法并执行可选的 PCA 预降维。
type ClusteringEngine struct {
	config *ClustererConfig
}

// NewClusteringEngine 创建聚类引擎。
func NewClusteringEngine(config *ClustererConfig) *ClusteringEngine {
	if config == nil {
		config = DefaultClustererConfig()
	}
	return &ClusteringEngine{config: config}
}

// NewClusterer 按算法构造聚类器，不支持的算法返回 ErrUnsupportedMode。
func (e *ClusteringEngine) NewClusterer(mode model.Mode, nbClusters, n int) (Clusterer, error) {
	switch mode {
	case model.ModeDBSCAN:
		return &DBSCAN{Eps: e.config.Eps, MinSamples: e.config.MinSamples}, nil
	case model.ModeAgglomerative:
		return &Agglomerative{K: ResolveK(nbClusters, n, e.config.MinNbClusters, e.config.AverageClusterSize)}, nil
	case model.ModeKMeans:
		return NewKMeans(ResolveK(nbClusters, n, e.config.MinNbClusters, e.config.AverageClusterSize),
			e.config.KMeansMaxIterations, e.config.Seed), nil
	}
	return nil, errors.ErrUnsupportedMode.WithMessagef("unsupported clustering mode %q", mode)
}

// Cluster 对矩阵聚类。空矩阵返回 ErrNoEmbeddings。
func (e *ClusteringEngine) Cluster(ctx context.Context, mode model.Mode, x [][]float64, nbClusters int) ([]int, error) {
	if len(x) == 0 {
		return nil, errors.ErrNoEmbeddings
	}

	c, err := e.NewClusterer(mode, nbClusters, len(x))
	if err != nil {
		return nil, err
	}

	if dims := e.config.PCADimensions; dims > 0 && dims < len(x[0]) {
		reduced, err := PCA(x, dims)
		if err != nil {
			logger.Warnw("pca pre-reduction failed, clustering on raw vectors", "error", err.Error())
		} else {
			x = reduced
		}
	}

	labels, err := c.Cluster(ctx, x)
	if err != nil {
		return nil, errors.ErrClusteringFailed.WithCause(err)
	}
	return labels, nil
}

func squaredEuclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func euclidean(a, b []float64) float64 {
	return math.Sqrt(squaredEuclidean(a, b))
}
