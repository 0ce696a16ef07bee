package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/YiuTerran/go-bidi/base/log"
	"github.com/YiuTerran/go-bidi/network"
	"github.com/samber/lo"
)

// Handler 处理一个Envelope，src是消息来源（客户端会话或者服务端的Remote）
type Handler[T any] func(src T, e network.Envelope)

// Table 标识 -> handler，标识忽略大小写，后注册的覆盖先注册的
// 查找在读循环里同步完成，handler在协程池里执行
type Table[T any] struct {
	mu       sync.RWMutex
	handlers map[string]Handler[T]

	side     string
	pool     *Pool
	observer network.Observer
	fields   log.Fields
}

func NewTable[T any](side string, pool *Pool, observer network.Observer) *Table[T] {
	if pool == nil {
		pool = NewPool(DefaultPoolSize)
	}
	return &Table[T]{
		handlers: make(map[string]Handler[T]),
		side:     side,
		pool:     pool,
		observer: lo.Ternary[network.Observer](observer == nil, network.NopObserver{}, observer),
		fields:   log.Fields{"side": side}.WithPrefix("dispatch.Table"),
	}
}

func key(id string) string {
	return strings.ToLower(id)
}

// Register 保留标识返回ErrReservedIdentifier，表不变
func (t *Table[T]) Register(id string, h Handler[T]) error {
	if id == "" || h == nil {
		return fmt.Errorf("%w: handler id and func must not be empty", network.ErrInvalidArgument)
	}
	if network.IsReserved(id) {
		return fmt.Errorf("%w: %s", network.ErrReservedIdentifier, id)
	}
	t.mu.Lock()
	t.handlers[key(id)] = h
	t.mu.Unlock()
	return nil
}

func (t *Table[T]) Unregister(id string) {
	t.mu.Lock()
	delete(t.handlers, key(id))
	t.mu.Unlock()
}

func (t *Table[T]) Lookup(id string) (Handler[T], bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.handlers[key(id)]
	return h, ok
}

// IDs 已注册的标识（小写）
func (t *Table[T]) IDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return lo.Keys(t.handlers)
}

func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.handlers)
}

// Dispatch 找到handler后放到协程池执行，没有handler时丢弃并返回false
func (t *Table[T]) Dispatch(src T, e network.Envelope) bool {
	return t.DispatchThen(src, e, nil)
}

// DispatchThen 同Dispatch，handler结束后执行cb；没有handler时cb不会执行
func (t *Table[T]) DispatchThen(src T, e network.Envelope, cb func()) bool {
	return t.DispatchIn(context.Background(), nil, src, e, cb)
}

// DispatchIn 在指定的协程池里执行handler，pool为nil时使用表自带的
// 等待名额时ctx被取消则丢弃消息，返回false
func (t *Table[T]) DispatchIn(ctx context.Context, pool *Pool, src T, e network.Envelope, cb func()) bool {
	h, ok := t.Lookup(e.ID())
	if !ok {
		t.observer.Dropped(t.side, e.ID())
		t.fields.Debug("no handler for %s, dropped", e.ID())
		return false
	}
	if pool == nil {
		pool = t.pool
	}
	t.observer.Matched(t.side, e.ID())
	err := pool.GoContext(ctx, func() {
		defer func() {
			if r := recover(); r != nil {
				t.observer.Panicked(t.side, e.ID())
				log.PanicStack(fmt.Sprintf("handler %s", e.ID()), r)
			}
		}()
		h(src, e)
	}, cb)
	if err != nil {
		t.fields.Debug("%s not executed: %v", e.ID(), err)
		return false
	}
	return true
}

func (t *Table[T]) Pool() *Pool {
	return t.pool
}
