package biz

import (
	"time"

	"github.com/kart-io/sentinel-cluster/internal/model"
	"github.com/kart-io/sentinel-cluster/pkg/id"
)

// AssembleClusters 按标签首次出现的顺序把行分组为簇。
// 噪声标签与其他标签一样形成一个簇。
func AssembleClusters(run *model.Clustering, labels []int, embeddings []*model.Embedding) []*model.Cluster {
	now := time.Now().UTC()
	byLabel := make(map[int]*model.Cluster)
	var clusters []*model.Cluster

	for row, label := range labels {
		c, ok := byLabel[label]
		if !ok {
			c = &model.Cluster{
				ID:            id.New(),
				ClusteringID:  run.ID,
				OrgID:         run.OrgID,
				ProjectID:     run.ProjectID,
				EmbeddingsIDs: []string{},
				CreatedAt:     now,
			}
			byLabel[label] = c
			clusters = append(clusters, c)
		}
		c.Size++
		if row < len(embeddings) && embeddings[row] != nil {
			c.AddMember(embeddings[row])
		}
	}
	return clusters
}
