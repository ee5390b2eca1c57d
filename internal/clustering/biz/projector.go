package biz

import (
	"github.com/kart-io/sentinel-cluster/internal/model"
)

// ProjectionDims 可视化投影维度。
const ProjectionDims = 3

// Project 对聚类矩阵做三维 PCA，为每个点附上最终簇 ID 和向量 ID。
func Project(x [][]float64, embeddings []*model.Embedding, clusters []*model.Cluster) ([]model.PCAPoint, error) {
	coords, err := PCA(x, ProjectionDims)
	if err != nil {
		return nil, err
	}

	owner := make(map[string]string)
	for _, c := range clusters {
		for _, eid := range c.EmbeddingsIDs {
			owner[eid] = c.ID
		}
	}

	points := make([]model.PCAPoint, len(coords))
	for i, p := range coords {
		eid := embeddings[i].ID
		points[i] = model.PCAPoint{
			X:           p[0],
			Y:           p[1],
			Z:           p[2],
			ClusterID:   owner[eid],
			EmbeddingID: eid,
		}
	}
	return points, nil
}
