// Package resilience 为 LLM 调用加上指数退避重试与熔断。
// 重试由 cenkalti/backoff 驱动，熔断器按供应商与用途各持一个。
package resilience

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-cluster/pkg/utils/httpclient"
)

// ErrBreakerOpen 熔断期间直接拒绝调用。
var ErrBreakerOpen = errors.New("llm circuit breaker open")

// Policy 重试与熔断参数。
type Policy struct {
	// Attempts 含首次调用
	Attempts        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// FailureThreshold 连续失败达到该值后熔断 Cooldown 时长
	FailureThreshold int
	Cooldown         time.Duration

	// Retryable 为空时使用 IsRetryable
	Retryable func(error) bool
}

func DefaultPolicy() *Policy {
	return &Policy{
		Attempts:         3,
		InitialInterval:  500 * time.Millisecond,
		MaxInterval:      10 * time.Second,
		FailureThreshold: 5,
		Cooldown:         time.Minute,
	}
}

func (p *Policy) retryable(err error) bool {
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return IsRetryable(err)
}

// IsRetryable 网络错误、意外断开以及 5xx/429 响应可重试；熔断与上下文错误不重试。
func IsRetryable(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, ErrBreakerOpen),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}

	var se *httpclient.StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	var ne net.Error
	return errors.As(err, &ne) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

// Do 在熔断器保护下按策略重试 fn。
func Do[T any](ctx context.Context, p *Policy, b *Breaker, fn func() (T, error)) (T, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	eb.MaxInterval = p.MaxInterval

	op := func() (T, error) {
		var zero T
		if err := b.allow(); err != nil {
			return zero, backoff.Permanent(err)
		}
		v, err := fn()
		b.record(err)
		if err != nil && !p.retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(max(p.Attempts, 1)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.Debugw("llm call retry", "breaker", b.name, "wait", wait, "error", err.Error())
		}),
	)
}

// State 熔断器状态。
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	return [...]string{"closed", "open", "half-open"}[s]
}

// Breaker 连续失败计数熔断器。冷却结束后只放行一个探测调用。
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	until    time.Time
}

func NewBreaker(name string, p *Policy) *Breaker {
	return &Breaker{
		name:      name,
		threshold: max(p.FailureThreshold, 1),
		cooldown:  p.Cooldown,
		now:       time.Now,
	}
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Before(b.until) {
			return ErrBreakerOpen
		}
		b.state = StateHalfOpen
		logger.Infow("circuit breaker probing", "breaker", b.name)
		return nil
	case StateHalfOpen:
		// 探测调用尚未返回
		return ErrBreakerOpen
	}
	return nil
}

func (b *Breaker) record(err error) {
	if errors.Is(err, context.Canceled) {
		b.mu.Lock()
		if b.state == StateHalfOpen {
			b.state = StateOpen
		}
		b.mu.Unlock()
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		if b.state != StateClosed {
			logger.Infow("circuit breaker closed", "breaker", b.name)
		}
		b.state, b.failures = StateClosed, 0
		return
	}

	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.threshold {
		if b.state != StateOpen {
			logger.Warnw("circuit breaker open", "breaker", b.name, "failures", b.failures, "error", err.Error())
		}
		b.state = StateOpen
		b.until = b.now().Add(b.cooldown)
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
