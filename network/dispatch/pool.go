package dispatch

import (
	"context"
	"sync"

	"github.com/YiuTerran/go-bidi/base/log"
	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"
)

// DefaultPoolSize 每个客户端会话/服务端的每个Remote同时执行的handler上限
const DefaultPoolSize = 256

// Pool 执行handler的协程池
// 同时运行的数量有上限，满了之后Go会阻塞调用方（即读循环），直到有handler结束
// size<=0时不限制数量，消息量大时协程数可能无限增长
type Pool struct {
	sem     *semaphore.Weighted
	size    int
	running atomic.Int64
	wg      sync.WaitGroup
}

func NewPool(size int) *Pool {
	p := &Pool{size: size}
	if size > 0 {
		p.sem = semaphore.NewWeighted(int64(size))
	}
	return p
}

// Go 异步执行f，f结束后执行cb，两者的panic都会被恢复
func (p *Pool) Go(f func(), cb func()) {
	// Background不会被取消，只会在拿到名额后返回
	_ = p.GoContext(context.Background(), f, cb)
}

// GoContext 同Go，等待名额时ctx被取消则放弃执行，f和cb都不会运行
func (p *Pool) GoContext(ctx context.Context, f func(), cb func()) error {
	if p.sem != nil {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return err
		}
	}
	p.wg.Add(1)
	p.running.Inc()
	go func() {
		defer func() {
			p.running.Dec()
			if p.sem != nil {
				p.sem.Release(1)
			}
			p.wg.Done()
			if cb != nil {
				runSafe(cb)
			}
		}()
		runSafe(f)
	}()
	return nil
}

func runSafe(f func()) {
	defer func() {
		if r := recover(); r != nil {
			log.PanicStack("dispatch pool", r)
		}
	}()
	f()
}

// Running 正在执行的任务数
func (p *Pool) Running() int64 {
	return p.running.Load()
}

func (p *Pool) Size() int {
	return p.size
}

// Wait 等待所有已提交的任务结束
func (p *Pool) Wait() {
	p.wg.Wait()
}
