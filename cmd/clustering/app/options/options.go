// Package options contains flags and options for running a clustering job.
package options

import (
	"fmt"

	"github.com/spf13/pflag"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	clusteringsvc "github.com/kart-io/sentinel-cluster/internal/clustering"
	"github.com/kart-io/sentinel-cluster/internal/model"
	genericoptions "github.com/kart-io/sentinel-cluster/pkg/options"
	clusteringopts "github.com/kart-io/sentinel-cluster/pkg/options/clustering"
	llmopts "github.com/kart-io/sentinel-cluster/pkg/options/llm"
	logopts "github.com/kart-io/sentinel-cluster/pkg/options/logger"
	mongoopts "github.com/kart-io/sentinel-cluster/pkg/options/mongodb"
	poolopts "github.com/kart-io/sentinel-cluster/pkg/options/pool"
	redisopts "github.com/kart-io/sentinel-cluster/pkg/options/redis"
	tracingopts "github.com/kart-io/sentinel-cluster/pkg/options/tracing"
)

// ServerOptions contains the configuration options for the clustering job.
type ServerOptions struct {
	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// MongoOptions contains MongoDB configuration.
	MongoOptions *mongoopts.Options `json:"mongodb" mapstructure:"mongodb"`

	// RedisOptions contains Redis configuration for the vector cache and notifications.
	RedisOptions *redisopts.Options `json:"redis" mapstructure:"redis"`

	// EmbeddingOptions contains embedding provider configuration.
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// ChatOptions contains chat provider configuration.
	ChatOptions *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`

	PoolOptions    *poolopts.Options    `json:"pool" mapstructure:"pool"`
	TracingOptions *tracingopts.Options `json:"tracing" mapstructure:"tracing"`

	// ClusteringOptions contains pipeline tuning knobs.
	ClusteringOptions *clusteringopts.Options `json:"clustering" mapstructure:"clustering"`

	// RequestOptions describes the run to execute.
	RequestOptions *RequestOptions `json:"request" mapstructure:"request"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		LogOptions:        logopts.NewOptions(),
		MongoOptions:      mongoopts.NewOptions(),
		RedisOptions:      redisopts.NewOptions(),
		EmbeddingOptions:  llmopts.NewEmbeddingOptions(),
		ChatOptions:       llmopts.NewChatOptions(),
		PoolOptions:       poolopts.NewOptions(),
		TracingOptions:    tracingopts.NewOptions(),
		ClusteringOptions: clusteringopts.NewOptions(),
		RequestOptions:    NewRequestOptions(),
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss cliflag.NamedFlagSets) {
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.MongoOptions.AddFlags(fss.FlagSet("mongodb"))
	o.RedisOptions.AddFlags(fss.FlagSet("redis"))
	o.EmbeddingOptions.AddFlags(fss.FlagSet("embedding"))
	o.ChatOptions.AddFlags(fss.FlagSet("chat"))
	o.PoolOptions.AddFlags(fss.FlagSet("pool"))
	o.TracingOptions.AddFlags(fss.FlagSet("tracing"))
	o.ClusteringOptions.AddFlags(fss.FlagSet("clustering"))
	o.RequestOptions.AddFlags(fss.FlagSet("request"))
	return fss
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	if err := o.MongoOptions.Complete(); err != nil {
		return fmt.Errorf("mongodb: %w", err)
	}
	if err := o.EmbeddingOptions.Complete(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := o.ChatOptions.Complete(); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if err := o.PoolOptions.Complete(); err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	if err := o.TracingOptions.Complete(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	if err := o.ClusteringOptions.Complete(); err != nil {
		return fmt.Errorf("clustering: %w", err)
	}
	// 未指定模型时沿用 embedding 默认模型
	if o.RequestOptions.Model == "" {
		o.RequestOptions.Model = o.EmbeddingOptions.Model
	}
	return o.RequestOptions.Complete()
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	errs := genericoptions.ValidateAll(
		o.LogOptions,
		o.MongoOptions,
		o.EmbeddingOptions,
		o.ChatOptions,
		o.PoolOptions,
		o.TracingOptions,
		o.ClusteringOptions,
		o.RequestOptions,
	)
	// Redis 关闭时不校验其地址
	if o.RedisOptions.Enabled {
		errs = append(errs, o.RedisOptions.Validate()...)
	}
	return utilerrors.NewAggregate(errs)
}

// Config builds a clusteringsvc.Config based on ServerOptions.
func (o *ServerOptions) Config() (*clusteringsvc.Config, error) {
	req := o.RequestOptions.ClusteringRequest
	return &clusteringsvc.Config{
		LogOptions:        o.LogOptions,
		MongoOptions:      o.MongoOptions,
		RedisOptions:      o.RedisOptions,
		EmbeddingOptions:  o.EmbeddingOptions,
		ChatOptions:       o.ChatOptions,
		PoolOptions:       o.PoolOptions,
		TracingOptions:    o.TracingOptions,
		ClusteringOptions: o.ClusteringOptions,
		Request:           &req,
	}, nil
}

// RequestOptions 命令行描述的一次聚类请求。
// 过滤条件可在配置文件的 request.filters 下写嵌套结构，
// 也可用 --request.filter key=value 逐项传入。
type RequestOptions struct {
	model.ClusteringRequest `mapstructure:",squash"`

	Filter map[string]string `json:"filter,omitempty" mapstructure:"filter"`
}

// NewRequestOptions creates request options with an unset request.
func NewRequestOptions() *RequestOptions {
	return &RequestOptions{}
}

// AddFlags adds flags for the clustering request to the specified FlagSet.
func (o *RequestOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := genericoptions.Join(prefixes...) + "request."
	r := &o.ClusteringRequest
	fs.StringVar(&r.ProjectID, p+"project-id", r.ProjectID, "Project whose conversations are clustered.")
	fs.StringVar(&r.OrgID, p+"org-id", r.OrgID, "Organization of the project.")
	fs.StringVar((*string)(&r.Scope), p+"scope", string(r.Scope), "Item granularity (messages|sessions|users).")
	fs.StringVar(&r.Model, p+"model", r.Model, "Embedding model identifier.")
	fs.StringVar(&r.Instruction, p+"instruction", r.Instruction, "What the condensation should focus on.")
	fs.IntVar(&r.Limit, p+"limit", r.Limit, "Maximum number of items to load (0 uses the default).")
	fs.IntVar(&r.NbClusters, p+"nb-clusters", r.NbClusters, "Target cluster count (0 derives it from the item count).")
	fs.StringVar((*string)(&r.ClusteringMode), p+"clustering-mode", string(r.ClusteringMode), "Clustering algorithm (dbscan|agglomerative|kmeans).")
	fs.BoolVar(&r.MergeClusters, p+"merge-clusters", r.MergeClusters, "Merge clusters with similar names.")
	fs.StringVar((*string)(&r.OutputFormat), p+"output-format", string(r.OutputFormat), "Cluster description style (title_description|user_persona|question_and_answer).")
	fs.StringVar(&r.ClusteringID, p+"clustering-id", r.ClusteringID, "Reuse this run identifier (ULID).")
	fs.StringVar(&r.ClusteringName, p+"clustering-name", r.ClusteringName, "Display name of the run.")
	fs.StringVar(&r.UserEmail, p+"user-email", r.UserEmail, "Notify this address when a long run completes.")
	fs.StringToStringVar(&o.Filter, p+"filter", o.Filter, "Item filter as key=value pairs, merged into the item query.")
}

// Complete 把逐项过滤条件合并进请求，并填充默认值。
func (o *RequestOptions) Complete() error {
	if len(o.Filter) > 0 {
		if o.Filters == nil {
			o.Filters = make(map[string]any, len(o.Filter))
		}
		for k, v := range o.Filter {
			o.Filters[k] = v
		}
	}
	o.Default()
	return nil
}

// Validate validates the clustering request.
func (o *RequestOptions) Validate() []error {
	if err := o.ClusteringRequest.Validate(); err != nil {
		return []error{err}
	}
	return nil
}
