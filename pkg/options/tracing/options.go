// Package tracing OpenTelemetry 追踪参数。一次性任务默认关闭。
package tracing

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-cluster/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

type SamplerType string

const (
	SamplerAlwaysOn  SamplerType = "always_on"
	SamplerAlwaysOff SamplerType = "always_off"
	SamplerRatio     SamplerType = "ratio"
	// SamplerParentBased 有父 span 时沿用其决定，否则按比例采样
	SamplerParentBased SamplerType = "parent_based"
)

type ExporterType string

const (
	ExporterOTLPGRPC ExporterType = "otlp_grpc"
	ExporterOTLPHTTP ExporterType = "otlp_http"
	// ExporterStdout 实际写到 stderr，stdout 留给结果 JSON
	ExporterStdout ExporterType = "stdout"
	ExporterNoop   ExporterType = "noop"
)

var (
	exporterTypes = []ExporterType{ExporterOTLPGRPC, ExporterOTLPHTTP, ExporterStdout, ExporterNoop}
	samplerTypes  = []SamplerType{SamplerAlwaysOn, SamplerAlwaysOff, SamplerRatio, SamplerParentBased}
)

type Options struct {
	Enabled        bool              `json:"enabled" mapstructure:"enabled"`
	ServiceName    string            `json:"service-name" mapstructure:"service-name"`
	ServiceVersion string            `json:"service-version" mapstructure:"service-version"`
	Environment    string            `json:"environment" mapstructure:"environment"`
	ExporterType   ExporterType      `json:"exporter-type" mapstructure:"exporter-type"`
	Endpoint       string            `json:"endpoint" mapstructure:"endpoint"`
	Insecure       bool              `json:"insecure" mapstructure:"insecure"`
	Headers        map[string]string `json:"-" mapstructure:"headers"`
	SamplerType    SamplerType       `json:"sampler-type" mapstructure:"sampler-type"`
	SamplerRatio   float64           `json:"sampler-ratio" mapstructure:"sampler-ratio"`
	BatchTimeout   time.Duration     `json:"batch-timeout" mapstructure:"batch-timeout"`
	ExportTimeout  time.Duration     `json:"export-timeout" mapstructure:"export-timeout"`
}

func NewOptions() *Options {
	return &Options{
		ServiceName:    "sentinel-cluster",
		ServiceVersion: "dev",
		Environment:    "development",
		ExporterType:   ExporterStdout,
		Endpoint:       "localhost:4317",
		Insecure:       true,
		Headers:        map[string]string{},
		SamplerType:    SamplerParentBased,
		SamplerRatio:   1,
		BatchTimeout:   5 * time.Second,
		ExportTimeout:  30 * time.Second,
	}
}

func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "tracing."
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Emit a span per clustering run and phase.")
	fs.StringVar(&o.ServiceName, p+"service-name", o.ServiceName, "service.name resource attribute.")
	fs.StringVar(&o.Environment, p+"environment", o.Environment, "deployment.environment resource attribute.")
	fs.StringVar((*string)(&o.ExporterType), p+"exporter-type", string(o.ExporterType), "Span exporter (otlp_grpc, otlp_http, stdout, noop).")
	fs.StringVar(&o.Endpoint, p+"endpoint", o.Endpoint, "OTLP collector endpoint.")
	fs.BoolVar(&o.Insecure, p+"insecure", o.Insecure, "Talk to the collector without TLS.")
	fs.StringToStringVar(&o.Headers, p+"headers", o.Headers, "Extra OTLP headers, key=value.")
	fs.StringVar((*string)(&o.SamplerType), p+"sampler-type", string(o.SamplerType), "Sampler (always_on, always_off, ratio, parent_based).")
	fs.Float64Var(&o.SamplerRatio, p+"sampler-ratio", o.SamplerRatio, "Sampled fraction of root traces, 0 to 1.")
	fs.DurationVar(&o.BatchTimeout, p+"batch-timeout", o.BatchTimeout, "Longest wait before a batch is exported.")
	fs.DurationVar(&o.ExportTimeout, p+"export-timeout", o.ExportTimeout, "Timeout of a single export.")
}

// Validate 关闭时不做任何校验。
func (o *Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("tracing: "+format, args...))
		}
	}
	check(o.ServiceName != "", "service-name is required")
	check(slices.Contains(exporterTypes, o.ExporterType), "invalid exporter type %q", o.ExporterType)
	if o.ExporterType == ExporterOTLPGRPC || o.ExporterType == ExporterOTLPHTTP {
		check(o.Endpoint != "", "endpoint is required for %s", o.ExporterType)
	}
	check(slices.Contains(samplerTypes, o.SamplerType), "invalid sampler type %q", o.SamplerType)
	check(o.SamplerRatio >= 0 && o.SamplerRatio <= 1, "sampler-ratio %g out of [0, 1]", o.SamplerRatio)
	check(o.BatchTimeout > 0, "batch-timeout must be positive")
	check(o.ExportTimeout > 0, "export-timeout must be positive")
	return errs
}

func (o *Options) Complete() error {
	if o.Headers == nil {
		o.Headers = map[string]string{}
	}
	return nil
}
