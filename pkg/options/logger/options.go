// Package logger 全局日志参数，底层为 kart-io/logger。
package logger

import (
	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"
	"github.com/kart-io/logger/option"
	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-cluster/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

type Options struct {
	*option.LogOption
}

func NewOptions() *Options {
	return &Options{LogOption: option.DefaultLogOption()}
}

func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "log."
	fs.StringVar(&o.Engine, p+"engine", o.Engine, "Backend, zap or slog.")
	fs.StringVar(&o.Level, p+"level", o.Level, "Minimum level: DEBUG, INFO, WARN, ERROR or FATAL.")
	fs.StringVar(&o.Format, p+"format", o.Format, "Encoding, json or console.")
	fs.StringSliceVar(&o.OutputPaths, p+"output-paths", o.OutputPaths, "Log sinks; the run result is printed to stdout regardless.")
	fs.BoolVar(&o.Development, p+"development", o.Development, "Human friendly output with caller and stack traces.")
	fs.BoolVar(&o.DisableCaller, p+"disable-caller", o.DisableCaller, "Omit the caller field.")
	fs.BoolVar(&o.DisableStacktrace, p+"disable-stacktrace", o.DisableStacktrace, "Omit stack traces on errors.")
}

func (o *Options) Validate() []error {
	if err := o.LogOption.Validate(); err != nil {
		return []error{err}
	}
	return nil
}

func (o *Options) Complete() error { return nil }

// Init 构造 logger 并替换全局实例，每条日志带服务名与版本。
func (o *Options) Init(service, version string) error {
	o.AddInitialField("service.name", service)
	o.AddInitialField("service.version", version)

	l, err := o.build()
	if err != nil {
		return err
	}
	logger.SetGlobal(l)
	return nil
}

func (o *Options) build() (core.Logger, error) {
	return logger.New(o.LogOption)
}
