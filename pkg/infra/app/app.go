// Package app 把一次性作业包装成 cobra 命令。
//
// 参数来源优先级：命令行 > 环境变量 > 配置文件 > 默认值。
// 应用名决定配置文件名（<name>.yaml）与环境变量前缀。
//
//	app.NewApp(
//	    app.WithName("sentinel-cluster"),
//	    app.WithOptions(opts),
//	    app.WithRunFunc(run),
//	).Run()
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kart-io/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/kart-io/sentinel-cluster/pkg/errors"
)

// Options 命令参数需要实现的接口。
type Options interface {
	Flags() cliflag.NamedFlagSets
	Complete() error
	Validate() error
}

// RunFunc 参数就绪后执行的作业。
type RunFunc func(ctx context.Context) error

type Option func(*App)

func WithName(name string) Option { return func(a *App) { a.name = name } }

func WithShortDescription(desc string) Option { return func(a *App) { a.short = desc } }

func WithDescription(desc string) Option { return func(a *App) { a.long = desc } }

func WithOptions(opts Options) Option { return func(a *App) { a.opts = opts } }

func WithRunFunc(run RunFunc) Option { return func(a *App) { a.run = run } }

// WithNoVersion 不注册 --version。
func WithNoVersion() Option { return func(a *App) { a.noVersion = true } }

type App struct {
	name, short, long string
	opts              Options
	run               RunFunc
	noVersion         bool

	cmd *cobra.Command
	v   *viper.Viper
}

func NewApp(opts ...Option) *App {
	a := &App{name: filepath.Base(os.Args[0]), v: viper.New()}
	for _, o := range opts {
		o(a)
	}

	a.cmd = &cobra.Command{
		Use:          a.name,
		Short:        a.short,
		Long:         a.long,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         a.execute,
	}
	a.cmd.SetOut(os.Stdout)
	a.cmd.SetErr(os.Stderr)

	pfs := a.cmd.PersistentFlags()
	pfs.StringP("config", "c", "", "Path to the config file.")
	pfs.BoolP("help", "h", false, "Help for "+a.name)
	if !a.noVersion {
		version.AddFlags(pfs)
	}

	if a.opts != nil {
		a.addSections(a.opts.Flags())
	}
	return a
}

// addSections 注册分组参数，并让帮助信息按分组输出。
func (a *App) addSections(fss cliflag.NamedFlagSets) {
	for _, name := range fss.Order {
		a.cmd.Flags().AddFlagSet(fss.FlagSets[name])
	}

	a.cmd.SetUsageFunc(func(c *cobra.Command) error {
		fmt.Fprintf(c.OutOrStderr(), "Usage:\n  %s\n", c.UseLine())
		cliflag.PrintSections(c.OutOrStderr(), fss, 0)
		return nil
	})
	a.cmd.SetHelpFunc(func(c *cobra.Command, _ []string) {
		out := c.OutOrStdout()
		fmt.Fprintf(out, "%s\n\nUsage:\n  %s\n", c.Long, c.UseLine())
		cliflag.PrintSections(out, fss, 0)
		fmt.Fprintf(out, "\nGlobal flags:\n\n%s", c.PersistentFlags().FlagUsages())
	})
}

func (a *App) execute(cmd *cobra.Command, _ []string) error {
	if !a.noVersion {
		version.PrintAndExitIfRequested()
	}

	if a.opts != nil {
		path, _ := cmd.Flags().GetString("config")
		if err := a.load(cmd.Flags(), path); err != nil {
			return err
		}
		if err := a.opts.Complete(); err != nil {
			return err
		}
		if err := a.opts.Validate(); err != nil {
			return err
		}
	}

	if a.run == nil {
		return nil
	}
	return a.run(cmd.Context())
}

// load 依次读取配置文件与环境变量并写回 opts，最后重放显式传入的命令行参数。
func (a *App) load(fs *pflag.FlagSet, path string) error {
	if err := a.readConfigFile(path); err != nil {
		return err
	}

	a.v.SetEnvPrefix(EnvPrefix(a.name))
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	a.v.AutomaticEnv()

	explicit := map[string]string{}
	fs.Visit(func(f *pflag.Flag) { explicit[f.Name] = f.Value.String() })

	// 绑定后 AutomaticEnv 才能覆盖配置文件中不存在的键
	if err := a.v.BindPFlags(fs); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}
	if err := a.v.Unmarshal(a.opts); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}

	for name, val := range explicit {
		if err := fs.Set(name, val); err != nil {
			return fmt.Errorf("flag --%s: %w", name, err)
		}
	}
	return nil
}

// readConfigFile 未指定 path 时按应用名在常见目录查找，找不到不算错误。
func (a *App) readConfigFile(path string) error {
	if path != "" {
		a.v.SetConfigFile(path)
	} else {
		a.v.SetConfigName(a.name)
		a.v.SetConfigType("yaml")
		for _, dir := range []string{".", "./configs", filepath.Join(os.Getenv("HOME"), "."+a.name), "/etc/" + a.name} {
			a.v.AddConfigPath(dir)
		}
	}

	if err := a.v.ReadInConfig(); err != nil {
		if _, missing := err.(viper.ConfigFileNotFoundError); !missing {
			return fmt.Errorf("read config: %w", err)
		}
		return nil
	}

	// 配置值里的 ${VAR} / $VAR 用环境变量展开，未设置的变量原样保留
	for _, key := range a.v.AllKeys() {
		s, ok := a.v.Get(key).(string)
		if !ok || !strings.Contains(s, "$") {
			continue
		}
		a.v.Set(key, os.Expand(s, func(name string) string {
			if val, ok := os.LookupEnv(name); ok && val != "" {
				return val
			}
			return "${" + name + "}"
		}))
	}
	return nil
}

// EnvPrefix 应用名对应的环境变量前缀，sentinel-cluster 对应 SENTINEL_CLUSTER。
func EnvPrefix(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// Run 执行命令，失败时按错误码退出。
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitCode(err))
	}
}

// ExitCode 带错误码的失败使用 Errno.ExitCode，其余为 1。
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if e, ok := errors.As(err); ok && e.ExitCode() != 0 {
		return e.ExitCode()
	}
	return 1
}

func (a *App) RunContext(ctx context.Context) error { return a.cmd.ExecuteContext(ctx) }

func (a *App) Command() *cobra.Command { return a.cmd }
