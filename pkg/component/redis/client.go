// Package redis 连接可选的 Redis 实例，承载向量缓存与完成通知。
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	options "github.com/kart-io/sentinel-cluster/pkg/options/redis"
	"github.com/kart-io/sentinel-cluster/pkg/storage"
)

const name = "redis"

// Client 登记到 storage.Manager 的 Redis 连接。
type Client struct {
	rdb  goredis.UniversalClient
	desc string
}

var _ storage.Client = (*Client)(nil)

// New 建立连接并 PING 一次，失败时关闭连接。
func New(ctx context.Context, opts *options.Options) (*Client, error) {
	if opts == nil {
		return nil, errors.New("redis: nil options")
	}
	if err := utilerrors.NewAggregate(opts.Validate()); err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	rdb := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:        []string{opts.Addr()},
		Password:     opts.Password,
		DB:           opts.Database,
		MaxRetries:   opts.MaxRetries,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis %s: %w", opts.Addr(), err)
	}

	c := &Client{rdb: rdb, desc: opts.String()}
	logger.Infow("redis connected", "redis", c.desc)
	return c, nil
}

func (c *Client) Name() string { return name }

func (c *Client) Ping(ctx context.Context) error { return c.rdb.Ping(ctx).Err() }

// Close 多次调用只关闭一次。
func (c *Client) Close() error {
	err := c.rdb.Close()
	if errors.Is(err, goredis.ErrClosed) {
		return nil
	}
	return err
}

// Universal 返回给向量缓存与通知器使用的命令接口。
func (c *Client) Universal() goredis.UniversalClient { return c.rdb }
