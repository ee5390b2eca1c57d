package model

import (
	"time"
)

// Cluster 属于某次聚类任务的一个簇。
type Cluster struct {
	ID            string    `json:"id" bson:"_id"`
	ClusteringID  string    `json:"clustering_id" bson:"clustering_id"`
	OrgID         string    `json:"org_id,omitempty" bson:"org_id,omitempty"`
	ProjectID     string    `json:"project_id" bson:"project_id"`
	Size          int       `json:"size" bson:"size"`
	TasksIDs      []string  `json:"tasks_ids,omitempty" bson:"tasks_ids,omitempty"`
	SessionsIDs   []string  `json:"sessions_ids,omitempty" bson:"sessions_ids,omitempty"`
	UsersIDs      []string  `json:"users_ids,omitempty" bson:"users_ids,omitempty"`
	EmbeddingsIDs []string  `json:"embeddings_ids" bson:"embeddings_ids"`
	Name          string    `json:"name" bson:"name"`
	Description   string    `json:"description" bson:"description"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
}

// MemberIDs 返回所有成员 ID（消息、会话、用户依次拼接）。
func (c *Cluster) MemberIDs() []string {
	ids := make([]string, 0, len(c.TasksIDs)+len(c.SessionsIDs)+len(c.UsersIDs))
	ids = append(ids, c.TasksIDs...)
	ids = append(ids, c.SessionsIDs...)
	return append(ids, c.UsersIDs...)
}

// AddMember 按归属字段追加成员。
func (c *Cluster) AddMember(e *Embedding) {
	switch {
	case e.TaskID != "":
		c.TasksIDs = append(c.TasksIDs, e.TaskID)
	case e.SessionID != "":
		c.SessionsIDs = append(c.SessionsIDs, e.SessionID)
	case e.UserID != "":
		c.UsersIDs = append(c.UsersIDs, e.UserID)
	}
	c.EmbeddingsIDs = append(c.EmbeddingsIDs, e.ID)
}

// Absorb 吸收另一个簇：大小相加，成员做保序并集。
func (c *Cluster) Absorb(donor *Cluster) {
	c.Size += donor.Size
	c.TasksIDs = union(c.TasksIDs, donor.TasksIDs)
	c.SessionsIDs = union(c.SessionsIDs, donor.SessionsIDs)
	c.UsersIDs = union(c.UsersIDs, donor.UsersIDs)
	c.EmbeddingsIDs = union(c.EmbeddingsIDs, donor.EmbeddingsIDs)
	if c.Description == "" {
		c.Description = donor.Description
	}
	if c.Name == "" {
		c.Name = donor.Name
	}
}

func union(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
