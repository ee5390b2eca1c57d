// Package mongodb 聚类数据所在 MongoDB 的连接参数。
package mongodb

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-cluster/pkg/options"
	"github.com/kart-io/sentinel-cluster/pkg/utils/json"
)

var _ options.IOptions = (*Options)(nil)

// PasswordEnv 未配置密码时读取的环境变量。
const PasswordEnv = "MONGODB_PASSWORD"

const redacted = "[REDACTED]"

// Options 连接参数。URI 非空时忽略 host/port/认证字段。
type Options struct {
	URI      string `json:"uri" mapstructure:"uri"`
	Host     string `json:"host" mapstructure:"host"`
	Port     int    `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"-" mapstructure:"password"`
	// Database 存放运行记录、簇、向量与会话数据
	Database   string `json:"database" mapstructure:"database"`
	AuthSource string `json:"auth-source" mapstructure:"auth-source"`
	ReplicaSet string `json:"replica-set" mapstructure:"replica-set"`
	Direct     bool   `json:"direct" mapstructure:"direct"`

	MaxPoolSize            uint64        `json:"max-pool-size" mapstructure:"max-pool-size"`
	MinPoolSize            uint64        `json:"min-pool-size" mapstructure:"min-pool-size"`
	MaxConnIdleTime        time.Duration `json:"max-conn-idle-time" mapstructure:"max-conn-idle-time"`
	ConnectTimeout         time.Duration `json:"connect-timeout" mapstructure:"connect-timeout"`
	ServerSelectionTimeout time.Duration `json:"server-selection-timeout" mapstructure:"server-selection-timeout"`
}

func NewOptions() *Options {
	return &Options{
		Host:                   "127.0.0.1",
		Port:                   27017,
		Database:               "clustering",
		AuthSource:             "admin",
		MaxPoolSize:            100,
		MaxConnIdleTime:        5 * time.Minute,
		ConnectTimeout:         10 * time.Second,
		ServerSelectionTimeout: 30 * time.Second,
	}
}

func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "mongodb."
	fs.StringVar(&o.URI, p+"uri", o.URI, "Connection string (mongodb://...); overrides host, port and credentials.")
	fs.StringVar(&o.Host, p+"host", o.Host, "Server host.")
	fs.IntVar(&o.Port, p+"port", o.Port, "Server port.")
	fs.StringVar(&o.Username, p+"username", o.Username, "Username.")
	fs.StringVar(&o.Password, p+"password", o.Password, "Password; prefer $"+PasswordEnv+".")
	fs.StringVar(&o.Database, p+"database", o.Database, "Database holding runs, clusters, embeddings and conversations.")
	fs.StringVar(&o.AuthSource, p+"auth-source", o.AuthSource, "Authentication database.")
	fs.StringVar(&o.ReplicaSet, p+"replica-set", o.ReplicaSet, "Replica set name.")
	fs.BoolVar(&o.Direct, p+"direct", o.Direct, "Connect directly to the host, skipping topology discovery.")
	fs.Uint64Var(&o.MaxPoolSize, p+"max-pool-size", o.MaxPoolSize, "Maximum pooled connections.")
	fs.Uint64Var(&o.MinPoolSize, p+"min-pool-size", o.MinPoolSize, "Minimum pooled connections.")
	fs.DurationVar(&o.MaxConnIdleTime, p+"max-conn-idle-time", o.MaxConnIdleTime, "Idle time before a pooled connection is closed.")
	fs.DurationVar(&o.ConnectTimeout, p+"connect-timeout", o.ConnectTimeout, "Dial timeout.")
	fs.DurationVar(&o.ServerSelectionTimeout, p+"server-selection-timeout", o.ServerSelectionTimeout, "Server selection timeout.")
}

// Complete 从环境变量补全密码。
func (o *Options) Complete() error {
	if o.Password == "" {
		o.Password = os.Getenv(PasswordEnv)
	}
	return nil
}

func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Database == "" {
		errs = append(errs, errors.New("mongodb: database is required"))
	}
	if o.URI == "" {
		if o.Host == "" {
			errs = append(errs, errors.New("mongodb: host is required without uri"))
		}
		if o.Port < 1 || o.Port > 65535 {
			errs = append(errs, fmt.Errorf("mongodb: invalid port %d", o.Port))
		}
	}
	if o.MaxPoolSize > 0 && o.MinPoolSize > o.MaxPoolSize {
		errs = append(errs, errors.New("mongodb: min-pool-size exceeds max-pool-size"))
	}
	return errs
}

// BuildURI 返回连接串，URI 已配置时原样返回。
func BuildURI(o *Options) string {
	if o.URI != "" {
		return o.URI
	}

	u := url.URL{Scheme: "mongodb", Host: o.Host, Path: "/" + o.Database}
	if o.Port != 0 {
		u.Host = net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
	}

	q := url.Values{}
	if o.Username != "" {
		u.User = url.User(o.Username)
		if o.Password != "" {
			u.User = url.UserPassword(o.Username, o.Password)
		}
		if o.AuthSource != "" {
			q.Set("authSource", o.AuthSource)
		}
	}
	if o.ReplicaSet != "" {
		q.Set("replicaSet", o.ReplicaSet)
	}
	if o.Direct {
		q.Set("directConnection", "true")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// String 日志用，密码已脱敏。
func (o *Options) String() string {
	if o.URI != "" {
		return "MongoDB{" + redactURI(o.URI) + "}"
	}
	return fmt.Sprintf("MongoDB{%s:%d/%s user=%s password=%s}",
		o.Host, o.Port, o.Database, o.Username, mask(o.Password))
}

// MarshalJSON 输出脱敏后的连接信息。
func (o *Options) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"uri":         redactURI(o.URI),
		"host":        o.Host,
		"port":        o.Port,
		"username":    o.Username,
		"password":    mask(o.Password),
		"database":    o.Database,
		"replica-set": o.ReplicaSet,
	})
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return redacted
}

func redactURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.User == nil {
		return uri
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), redacted)
	}
	return u.String()
}
