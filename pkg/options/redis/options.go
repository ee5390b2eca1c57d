// Package redis 可选 Redis 的连接参数与向量缓存参数。
// 关闭时不启用向量缓存，完成通知退化为日志。
package redis

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-cluster/pkg/options"
	"github.com/kart-io/sentinel-cluster/pkg/utils/json"
)

var _ options.IOptions = (*Options)(nil)

// PasswordEnv 未配置密码时读取的环境变量。
const PasswordEnv = "REDIS_PASSWORD"

type Options struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     int    `json:"port" mapstructure:"port"`
	Password string `json:"-" mapstructure:"password"`
	Database int    `json:"database" mapstructure:"database"`

	MaxRetries   int           `json:"max-retries" mapstructure:"max-retries"`
	PoolSize     int           `json:"pool-size" mapstructure:"pool-size"`
	MinIdleConns int           `json:"min-idle-conns" mapstructure:"min-idle-conns"`
	DialTimeout  time.Duration `json:"dial-timeout" mapstructure:"dial-timeout"`
	ReadTimeout  time.Duration `json:"read-timeout" mapstructure:"read-timeout"`
	WriteTimeout time.Duration `json:"write-timeout" mapstructure:"write-timeout"`

	// CacheTTL 向量缓存条目的过期时间
	CacheTTL       time.Duration `json:"cache-ttl" mapstructure:"cache-ttl"`
	CacheKeyPrefix string        `json:"cache-key-prefix" mapstructure:"cache-key-prefix"`
}

func NewOptions() *Options {
	return &Options{
		Enabled:        true,
		Host:           "127.0.0.1",
		Port:           6379,
		MaxRetries:     3,
		PoolSize:       10,
		DialTimeout:    5 * time.Second,
		ReadTimeout:    3 * time.Second,
		WriteTimeout:   3 * time.Second,
		CacheTTL:       24 * time.Hour,
		CacheKeyPrefix: "cluster:emb:",
	}
}

func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "redis."
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Use Redis for the vector cache and completion notifications.")
	fs.StringVar(&o.Host, p+"host", o.Host, "Server host.")
	fs.IntVar(&o.Port, p+"port", o.Port, "Server port.")
	fs.StringVar(&o.Password, p+"password", o.Password, "Password; prefer $"+PasswordEnv+".")
	fs.IntVar(&o.Database, p+"database", o.Database, "Logical database index.")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "Command retries.")
	fs.IntVar(&o.PoolSize, p+"pool-size", o.PoolSize, "Connection pool size.")
	fs.IntVar(&o.MinIdleConns, p+"min-idle-conns", o.MinIdleConns, "Idle connections kept open.")
	fs.DurationVar(&o.DialTimeout, p+"dial-timeout", o.DialTimeout, "Dial timeout.")
	fs.DurationVar(&o.ReadTimeout, p+"read-timeout", o.ReadTimeout, "Read timeout.")
	fs.DurationVar(&o.WriteTimeout, p+"write-timeout", o.WriteTimeout, "Write timeout.")
	fs.DurationVar(&o.CacheTTL, p+"cache-ttl", o.CacheTTL, "Lifetime of cached embedding vectors.")
	fs.StringVar(&o.CacheKeyPrefix, p+"cache-key-prefix", o.CacheKeyPrefix, "Key prefix of cached embedding vectors.")
}

// Complete 从环境变量补全密码。
func (o *Options) Complete() error {
	if o.Password == "" {
		o.Password = os.Getenv(PasswordEnv)
	}
	return nil
}

// Validate 关闭时不做任何校验。
func (o *Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	var errs []error
	if o.Host == "" {
		errs = append(errs, errors.New("redis: host is required"))
	}
	if o.Port < 1 || o.Port > 65535 {
		errs = append(errs, fmt.Errorf("redis: invalid port %d", o.Port))
	}
	if o.Database < 0 {
		errs = append(errs, errors.New("redis: database must not be negative"))
	}
	if o.PoolSize < 1 {
		errs = append(errs, errors.New("redis: pool-size must be positive"))
	}
	if o.CacheTTL < 0 {
		errs = append(errs, errors.New("redis: cache-ttl must not be negative"))
	}
	return errs
}

func (o *Options) Addr() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

func (o *Options) String() string {
	return fmt.Sprintf("Redis{%s db=%d password=%s}", o.Addr(), o.Database, o.maskedPassword())
}

// MarshalJSON 输出脱敏后的连接信息。
func (o *Options) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"enabled":   o.Enabled,
		"host":      o.Host,
		"port":      o.Port,
		"password":  o.maskedPassword(),
		"database":  o.Database,
		"pool-size": o.PoolSize,
		"cache-ttl": o.CacheTTL.String(),
	})
}

func (o *Options) maskedPassword() string {
	if o.Password == "" {
		return ""
	}
	return "[REDACTED]"
}
