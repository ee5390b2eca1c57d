package model

import (
	"github.com/kart-io/sentinel-cluster/pkg/errors"
	"github.com/kart-io/sentinel-cluster/pkg/validator"
)

// 请求默认值。
const (
	DefaultLimit       = 4000
	DefaultInstruction = "user intent"
)

// ClusteringRequest 触发一次聚类的请求。
type ClusteringRequest struct {
	ProjectID      string         `json:"project_id" mapstructure:"project-id" validate:"required,trimmed"`
	OrgID          string         `json:"org_id,omitempty" mapstructure:"org-id" validate:"omitempty,trimmed"`
	Scope          Scope          `json:"scope" mapstructure:"scope" validate:"required,oneof=messages sessions users"`
	Model          string         `json:"model" mapstructure:"model" validate:"required,nowhitespace"`
	Instruction    string         `json:"instruction,omitempty" mapstructure:"instruction"`
	Limit          int            `json:"limit,omitempty" mapstructure:"limit" validate:"gte=0"`
	NbClusters     int            `json:"nb_clusters,omitempty" mapstructure:"nb-clusters" validate:"gte=0"`
	ClusteringMode Mode           `json:"clustering_mode,omitempty" mapstructure:"clustering-mode" validate:"omitempty,oneof=dbscan agglomerative kmeans"`
	MergeClusters  bool           `json:"merge_clusters,omitempty" mapstructure:"merge-clusters"`
	OutputFormat   OutputFormat   `json:"output_format,omitempty" mapstructure:"output-format" validate:"omitempty,oneof=title_description user_persona question_and_answer"`
	ClusteringID   string         `json:"clustering_id,omitempty" mapstructure:"clustering-id" validate:"omitempty,ulid"`
	ClusteringName string         `json:"clustering_name,omitempty" mapstructure:"clustering-name"`
	UserEmail      string         `json:"user_email,omitempty" mapstructure:"user-email" validate:"omitempty,email"`
	Filters        map[string]any `json:"filters,omitempty" mapstructure:"filters"`
}

// Default 填充未设置的可选字段。
func (r *ClusteringRequest) Default() {
	if r.Limit == 0 {
		r.Limit = DefaultLimit
	}
	if r.Instruction == "" {
		r.Instruction = DefaultInstruction
	}
	if r.ClusteringMode == "" {
		r.ClusteringMode = ModeAgglomerative
	}
	if r.OutputFormat == "" {
		r.OutputFormat = FormatTitleDescription
	}
}

// Validate 校验请求，失败时返回 ErrInvalidRequest。
func (r *ClusteringRequest) Validate() error {
	if err := validator.Struct(r); err != nil {
		return errors.ErrInvalidRequest.WithCause(err)
	}
	return nil
}
