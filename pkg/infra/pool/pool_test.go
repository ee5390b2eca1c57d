package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewPool(t *testing.T) {
	p, err := NewPool("condense", CondensePool, CondensePoolConfig())
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}
	defer p.Release()

	if p.Name() != "condense" {
		t.Errorf("池名称不匹配: 期望 condense, 实际 %s", p.Name())
	}
	if p.Type() != CondensePool {
		t.Errorf("池类型不匹配: 实际 %s", p.Type())
	}
	if p.Cap() != 100 {
		t.Errorf("池容量不匹配: 期望 100, 实际 %d", p.Cap())
	}
}

func TestNewPool_InvalidConfig(t *testing.T) {
	_, err := NewPool("bad", BackgroundPool, &Config{Capacity: 0})
	if !errors.Is(err, ErrInvalidPoolConfig) {
		t.Fatalf("期望 ErrInvalidPoolConfig, 实际 %v", err)
	}
}

func TestPoolSubmit(t *testing.T) {
	p, err := NewPool("test", CondensePool, &Config{
		Capacity:       10,
		ExpiryDuration: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}
	defer p.Release()

	var counter atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		err := p.Submit(func() {
			defer wg.Done()
			counter.Add(1)
		})
		if err != nil {
			t.Errorf("提交任务失败: %v", err)
			wg.Done()
		}
	}

	wg.Wait()

	if counter.Load() != 100 {
		t.Errorf("任务执行数不匹配: 期望 100, 实际 %d", counter.Load())
	}
	if got := p.Stats().SubmittedTasks; got != 100 {
		t.Errorf("提交计数不匹配: 期望 100, 实际 %d", got)
	}
}

func TestPoolSubmitWithContext_Canceled(t *testing.T) {
	p, err := NewPool("test", CondensePool, &Config{Capacity: 2, ExpiryDuration: time.Second})
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}
	defer p.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.SubmitWithContext(ctx, func() {}); !errors.Is(err, context.Canceled) {
		t.Errorf("期望 context.Canceled, 实际 %v", err)
	}
}

// TestPoolForEach 测试 ForEach 覆盖全部下标且容量受限。
func TestPoolForEach(t *testing.T) {
	p, err := NewPool("test", CondensePool, &Config{Capacity: 4, ExpiryDuration: time.Second})
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}
	defer p.Release()

	results := make([]int, 50)
	var running, peak atomic.Int32

	err = p.ForEach(context.Background(), len(results), func(i int) {
		cur := running.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		results[i] = i * 2
		running.Add(-1)
	})
	if err != nil {
		t.Fatalf("ForEach 失败: %v", err)
	}

	for i, v := range results {
		if v != i*2 {
			t.Fatalf("下标 %d 结果错误: %d", i, v)
		}
	}
	if peak.Load() > 4 {
		t.Errorf("并发超过容量: %d", peak.Load())
	}
}

func TestPoolForEach_CanceledContext(t *testing.T) {
	p, err := NewPool("test", CondensePool, &Config{Capacity: 2, ExpiryDuration: time.Second})
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}
	defer p.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var called atomic.Int32
	err = p.ForEach(ctx, 10, func(int) { called.Add(1) })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("期望 context.Canceled, 实际 %v", err)
	}
	if called.Load() != 0 {
		t.Errorf("取消后不应执行任务, 实际执行 %d", called.Load())
	}
}

func TestPoolRelease(t *testing.T) {
	p, err := NewPool("test", BackgroundPool, BackgroundPoolConfig())
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}

	p.Release()
	p.Release()

	if err := p.Submit(func() {}); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("期望 ErrPoolClosed, 实际 %v", err)
	}
}

// TestPoolStats 测试 panic 与拒绝计数。
func TestPoolStats(t *testing.T) {
	recovered := make(chan struct{}, 1)
	p, err := NewPool("stats", BackgroundPool, &Config{
		Capacity:     1,
		Nonblocking:  true,
		PanicHandler: func(interface{}) { recovered <- struct{}{} },
	})
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}
	defer p.Release()

	if err := p.Submit(func() { panic("boom") }); err != nil {
		t.Fatalf("提交失败: %v", err)
	}
	select {
	case <-recovered:
	case <-time.After(time.Second):
		t.Fatal("PanicHandler 未被调用")
	}

	block := make(chan struct{})
	started := make(chan struct{})
	for {
		err := p.Submit(func() {
			close(started)
			<-block
		})
		if err == nil {
			break
		}
		// panic 后 worker 回收前可能短暂繁忙
		time.Sleep(time.Millisecond)
	}
	<-started
	if err := p.Submit(func() {}); !errors.Is(err, ErrPoolOverload) {
		t.Errorf("期望 ErrPoolOverload, 实际 %v", err)
	}
	close(block)

	s := p.Stats()
	if s.PanickedTasks != 1 {
		t.Errorf("panic 计数: 期望 1, 实际 %d", s.PanickedTasks)
	}
	if s.RejectedTasks < 1 {
		t.Errorf("拒绝计数应至少为 1, 实际 %d", s.RejectedTasks)
	}
}
