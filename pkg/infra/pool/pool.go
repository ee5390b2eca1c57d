// Package pool 封装 ants 协程池，供聚类流水线的浓缩阶段与后台通知使用。
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
)

var (
	// ErrPoolClosed 池已释放后仍提交任务
	ErrPoolClosed = errors.New("worker pool: 已释放")
	// ErrInvalidPoolConfig 容量或排队上限不合法
	ErrInvalidPoolConfig = errors.New("worker pool: 配置不合法")
	// ErrPoolOverload 非阻塞池没有空闲 worker
	ErrPoolOverload = errors.New("worker pool: 无空闲 worker")
)

// Type 区分池的用途，仅用于日志与指标标签。
type Type string

const (
	// CondensePool 每个条目一次 LLM 浓缩调用
	CondensePool Type = "condense"
	// BackgroundPool 完成通知等不阻塞主流程的任务
	BackgroundPool Type = "background"
)

// Config 池配置。
type Config struct {
	Capacity       int           `json:"capacity" mapstructure:"capacity"`
	ExpiryDuration time.Duration `json:"expiry-duration" mapstructure:"expiry-duration"`
	PreAlloc       bool          `json:"pre-alloc" mapstructure:"pre-alloc"`
	// Nonblocking 为 true 时池满直接返回 ErrPoolOverload
	Nonblocking bool `json:"nonblocking" mapstructure:"nonblocking"`
	// MaxBlockingTasks 阻塞模式下排队上限，0 不限
	MaxBlockingTasks int               `json:"max-blocking-tasks" mapstructure:"max-blocking-tasks"`
	PanicHandler     func(interface{}) `json:"-" mapstructure:"-"`
}

// CondensePoolConfig 浓缩阶段必须覆盖全部条目，所以阻塞提交。
func CondensePoolConfig() *Config {
	return &Config{Capacity: 100, ExpiryDuration: 10 * time.Second}
}

// BackgroundPoolConfig 通知丢了也不影响结果，池满即拒绝。
func BackgroundPoolConfig() *Config {
	return &Config{
		Capacity:         8,
		ExpiryDuration:   time.Minute,
		Nonblocking:      true,
		MaxBlockingTasks: 100,
	}
}

// Validate 校验池配置。
func (c *Config) Validate() error {
	switch {
	case c.Capacity <= 0:
		return fmt.Errorf("%w: capacity=%d", ErrInvalidPoolConfig, c.Capacity)
	case c.MaxBlockingTasks < 0:
		return fmt.Errorf("%w: max-blocking-tasks=%d", ErrInvalidPoolConfig, c.MaxBlockingTasks)
	}
	return nil
}

func (c *Config) antsOptions(name string) []ants.Option {
	onPanic := c.PanicHandler
	if onPanic == nil {
		onPanic = func(v interface{}) {
			logger.Errorw("worker 任务 panic", "pool", name, "panic", v)
		}
	}
	return []ants.Option{
		ants.WithExpiryDuration(c.ExpiryDuration),
		ants.WithPreAlloc(c.PreAlloc),
		ants.WithNonblocking(c.Nonblocking),
		ants.WithMaxBlockingTasks(c.MaxBlockingTasks),
		ants.WithPanicHandler(onPanic),
	}
}

// Stats 池计数快照，在任务结束时写入运行日志。
type Stats struct {
	SubmittedTasks int64 `json:"submitted_tasks"`
	CompletedTasks int64 `json:"completed_tasks"`
	RejectedTasks  int64 `json:"rejected_tasks"`
	PanickedTasks  int64 `json:"panicked_tasks"`
}

// Pool 带计数的 ants 池。
type Pool struct {
	name string
	typ  Type
	ants *ants.Pool

	mu     sync.Mutex
	closed atomic.Bool

	submitted, completed, rejected, panicked atomic.Int64
}

// NewPool 按配置创建池，config 为 nil 时使用 CondensePoolConfig。
func NewPool(name string, typ Type, config *Config) (*Pool, error) {
	if config == nil {
		config = CondensePoolConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	ap, err := ants.NewPool(config.Capacity, config.antsOptions(name)...)
	if err != nil {
		return nil, fmt.Errorf("create pool %s: %w", name, err)
	}

	logger.Debugw("worker pool ready", "pool", name, "type", typ, "capacity", config.Capacity)
	return &Pool{name: name, typ: typ, ants: ap}, nil
}

func (p *Pool) Name() string { return p.name }
func (p *Pool) Type() Type   { return p.typ }
func (p *Pool) Cap() int     { return p.ants.Cap() }
func (p *Pool) Running() int { return p.ants.Running() }

// Submit 提交任务。panic 计数后交给 PanicHandler。
func (p *Pool) Submit(task func()) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	err := p.ants.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				p.panicked.Add(1)
				panic(r)
			}
			p.completed.Add(1)
		}()
		task()
	})

	switch {
	case err == nil:
		p.submitted.Add(1)
		return nil
	case errors.Is(err, ants.ErrPoolOverload):
		p.rejected.Add(1)
		return ErrPoolOverload
	case errors.Is(err, ants.ErrPoolClosed):
		return ErrPoolClosed
	default:
		return err
	}
}

// SubmitWithContext 任务开始执行前若 ctx 已取消则跳过。
func (p *Pool) SubmitWithContext(ctx context.Context, task func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.Submit(func() {
		if ctx.Err() == nil {
			task()
		}
	})
}

// ForEach 为下标 0..n-1 各提交一次 fn，返回前等待已提交的任务全部结束。
// ctx 取消或提交失败时不再提交后续下标，并返回该错误。
func (p *Pool) ForEach(ctx context.Context, n int, fn func(i int)) error {
	var (
		wg  sync.WaitGroup
		err error
	)
	for i := 0; i < n && err == nil; i++ {
		if err = ctx.Err(); err != nil {
			break
		}
		wg.Add(1)
		idx := i
		if err = p.Submit(func() {
			defer wg.Done()
			if ctx.Err() == nil {
				fn(idx)
			}
		}); err != nil {
			wg.Done()
		}
	}
	wg.Wait()
	return err
}

// Release 立即关闭池，重复调用无副作用。
func (p *Pool) Release() {
	if p.markClosed() {
		p.ants.Release()
	}
}

// ReleaseTimeout 等待在途任务结束后关闭池，超时返回错误。
func (p *Pool) ReleaseTimeout(timeout time.Duration) error {
	if !p.markClosed() {
		return nil
	}
	return p.ants.ReleaseTimeout(timeout)
}

func (p *Pool) markClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed.Load() {
		return false
	}
	p.closed.Store(true)
	return true
}

// Stats 返回计数快照。
func (p *Pool) Stats() Stats {
	return Stats{
		SubmittedTasks: p.submitted.Load(),
		CompletedTasks: p.completed.Load(),
		RejectedTasks:  p.rejected.Load(),
		PanickedTasks:  p.panicked.Load(),
	}
}
