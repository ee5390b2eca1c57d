// Package model 定义聚类流水线的数据模型。
package model

import (
	"time"
)

// Scope 聚类对象的粒度。
type Scope string

const (
	ScopeMessages Scope = "messages"
	ScopeSessions Scope = "sessions"
	ScopeUsers    Scope = "users"
)

// Valid 报告是否为受支持的粒度。
func (s Scope) Valid() bool {
	switch s {
	case ScopeMessages, ScopeSessions, ScopeUsers:
		return true
	}
	return false
}

// Mode 聚类算法。
type Mode string

const (
	ModeDBSCAN        Mode = "dbscan"
	ModeAgglomerative Mode = "agglomerative"
	ModeKMeans        Mode = "kmeans"
)

// OutputFormat 簇描述的生成方式。
type OutputFormat string

const (
	FormatTitleDescription  OutputFormat = "title_description"
	FormatUserPersona       OutputFormat = "user_persona"
	FormatQuestionAndAnswer OutputFormat = "question_and_answer"
)

// Status 聚类任务状态。
type Status string

const (
	StatusStarted                   Status = "started"
	StatusLoadingExistingEmbeddings Status = "loading_existing_embeddings"
	StatusGeneratingNewEmbeddings   Status = "generating_new_embeddings"
	StatusGenerateClusters          Status = "generate_clusters"
	StatusSummaries                 Status = "summaries"
	StatusGenerateDescriptions      Status = "generate_clusters_description_and_title"
	StatusMergingSimilarClusters    Status = "merging_similar_clusters"
	StatusSavingClusters            Status = "saving_clusters"
	StatusCompleted                 Status = "completed"
)

// Terminal 报告状态是否为终态。
func (s Status) Terminal() bool {
	return s == StatusCompleted
}

// Clustering 一次聚类执行（Run）。
type Clustering struct {
	ID        string `json:"id" bson:"_id"`
	OrgID     string `json:"org_id,omitempty" bson:"org_id,omitempty"`
	ProjectID string `json:"project_id" bson:"project_id"`
	Name      string `json:"name,omitempty" bson:"name,omitempty"`

	Scope       Scope  `json:"scope" bson:"scope"`
	Model       string `json:"model" bson:"model"`
	Instruction string `json:"instruction" bson:"instruction"`

	Status              Status   `json:"status" bson:"status"`
	PercentOfCompletion *float64 `json:"percent_of_completion,omitempty" bson:"percent_of_completion,omitempty"`

	Filters        map[string]any `json:"filters,omitempty" bson:"filters,omitempty"`
	Limit          int            `json:"limit" bson:"limit"`
	ClusteringMode Mode           `json:"clustering_mode" bson:"clustering_mode"`
	OutputFormat   OutputFormat   `json:"output_format" bson:"output_format"`
	MergeClusters  bool           `json:"merge_clusters" bson:"merge_clusters"`
	UserEmail      string         `json:"user_email,omitempty" bson:"user_email,omitempty"`

	NbClusters  int        `json:"nb_clusters" bson:"nb_clusters"`
	ClustersIDs []string   `json:"clusters_ids" bson:"clusters_ids"`
	PCA         []PCAPoint `json:"pca,omitempty" bson:"pca,omitempty"`

	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" bson:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
}

// Completion 完成时一次性写入的字段。
type Completion struct {
	NbClusters  int
	ClustersIDs []string
	PCA         []PCAPoint
}

// PCAPoint 三维可视化中的一个点。
type PCAPoint struct {
	X           float64 `json:"x" bson:"x"`
	Y           float64 `json:"y" bson:"y"`
	Z           float64 `json:"z" bson:"z"`
	ClusterID   string  `json:"cluster_id" bson:"cluster_id"`
	EmbeddingID string  `json:"embedding_id" bson:"embedding_id"`
}

// ClampPercent 将进度限制在 [0, 100]。
func ClampPercent(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
