// Package pool provides worker pool options.
package pool

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-cluster/pkg/infra/pool"
	"github.com/kart-io/sentinel-cluster/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options 定义浓缩池与后台池的容量配置。
type Options struct {
	// CondenseCapacity 浓缩阶段并发 LLM 调用上限。
	CondenseCapacity int `json:"condense-capacity" mapstructure:"condense-capacity"`
	// BackgroundCapacity 后台任务（完成通知）并发上限。
	BackgroundCapacity int `json:"background-capacity" mapstructure:"background-capacity"`
	// ExpiryDuration 空闲 worker 过期时间。
	ExpiryDuration time.Duration `json:"expiry-duration" mapstructure:"expiry-duration"`
	// DrainTimeout 退出时等待后台任务完成的最长时间。
	DrainTimeout time.Duration `json:"drain-timeout" mapstructure:"drain-timeout"`
}

// NewOptions creates default pool options.
func NewOptions() *Options {
	condense := pool.CondensePoolConfig()
	background := pool.BackgroundPoolConfig()
	return &Options{
		CondenseCapacity:   condense.Capacity,
		BackgroundCapacity: background.Capacity,
		ExpiryDuration:     condense.ExpiryDuration,
		DrainTimeout:       30 * time.Second,
	}
}

// CondenseConfig 返回浓缩池配置。
func (o *Options) CondenseConfig() *pool.Config {
	cfg := pool.CondensePoolConfig()
	cfg.Capacity = o.CondenseCapacity
	cfg.ExpiryDuration = o.ExpiryDuration
	return cfg
}

// BackgroundConfig 返回后台池配置。
func (o *Options) BackgroundConfig() *pool.Config {
	cfg := pool.BackgroundPoolConfig()
	cfg.Capacity = o.BackgroundCapacity
	return cfg
}

// AddFlags adds flags for pool options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "pool."
	fs.IntVar(&o.CondenseCapacity, p+"condense-capacity", o.CondenseCapacity, "Maximum concurrent condensation calls.")
	fs.IntVar(&o.BackgroundCapacity, p+"background-capacity", o.BackgroundCapacity, "Maximum concurrent background tasks.")
	fs.DurationVar(&o.ExpiryDuration, p+"expiry-duration", o.ExpiryDuration, "Idle worker expiry.")
	fs.DurationVar(&o.DrainTimeout, p+"drain-timeout", o.DrainTimeout, "Time to wait for background tasks on shutdown.")
}

// Validate validates the pool options.
func (o *Options) Validate() []error {
	var errs []error
	if err := o.CondenseConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("condense pool: %w", err))
	}
	if err := o.BackgroundConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("background pool: %w", err))
	}
	if o.DrainTimeout < 0 {
		errs = append(errs, fmt.Errorf("pool: drain-timeout must not be negative"))
	}
	return errs
}

// Complete completes the pool options.
func (o *Options) Complete() error {
	if o.ExpiryDuration <= 0 {
		o.ExpiryDuration = pool.CondensePoolConfig().ExpiryDuration
	}
	return nil
}
