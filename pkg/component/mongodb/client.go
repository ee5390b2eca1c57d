// Package mongodb 建立聚类存储使用的 MongoDB 连接。
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	"go.mongodb.org/mongo-driver/mongo"
	mongoopts "go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	options "github.com/kart-io/sentinel-cluster/pkg/options/mongodb"
	"github.com/kart-io/sentinel-cluster/pkg/storage"
)

const (
	name = "mongodb"
	// appName 出现在服务端 currentOp 与慢查询日志中
	appName = "sentinel-cluster"

	disconnectTimeout = 10 * time.Second
)

// Client 登记到 storage.Manager 的 MongoDB 连接。
type Client struct {
	mc *mongo.Client
	db *mongo.Database
}

var _ storage.Client = (*Client)(nil)

// New 连接并确认主节点可达。
func New(ctx context.Context, opts *options.Options) (*Client, error) {
	if opts == nil {
		return nil, errors.New("mongodb: nil options")
	}
	if err := utilerrors.NewAggregate(opts.Validate()); err != nil {
		return nil, fmt.Errorf("mongodb: %w", err)
	}

	mc, err := mongo.Connect(ctx, ClientOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := mc.Ping(ctx, readpref.Primary()); err != nil {
		_ = mc.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	logger.Infow("mongodb connected", "mongodb", opts.String())
	return &Client{mc: mc, db: mc.Database(opts.Database)}, nil
}

// ClientOptions 把配置转换为驱动参数，零值项交给驱动默认。
func ClientOptions(opts *options.Options) *mongoopts.ClientOptions {
	co := mongoopts.Client().ApplyURI(options.BuildURI(opts)).SetAppName(appName)

	if opts.MaxPoolSize > 0 {
		co.SetMaxPoolSize(opts.MaxPoolSize)
	}
	if opts.MinPoolSize > 0 {
		co.SetMinPoolSize(opts.MinPoolSize)
	}
	for _, d := range []struct {
		v   time.Duration
		set func(time.Duration) *mongoopts.ClientOptions
	}{
		{opts.MaxConnIdleTime, co.SetMaxConnIdleTime},
		{opts.ConnectTimeout, co.SetConnectTimeout},
		{opts.ServerSelectionTimeout, co.SetServerSelectionTimeout},
	} {
		if d.v > 0 {
			d.set(d.v)
		}
	}
	return co
}

func (c *Client) Name() string { return name }

func (c *Client) Ping(ctx context.Context) error {
	return c.mc.Ping(ctx, readpref.Primary())
}

// Close 断开连接，重复调用返回 nil。
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	if err := c.mc.Disconnect(ctx); err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		return err
	}
	return nil
}

// Database 配置的业务库。
func (c *Client) Database() *mongo.Database { return c.db }
