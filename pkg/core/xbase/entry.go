package xbase

import (
	"sync"
	"sync/atomic"

	"github.com/omeyang/xguard/pkg/util/xtime"
)

// ExitHandler Entry 退出时的回调。熔断器用它在探测请求被下游插槽
// 拦截时回滚状态机，调用方也可注册自定义清理逻辑。
type ExitHandler func(entry *Entry, ctx *EntryContext)

// Entry 准入凭证。每个成功的准入返回一个 Entry，
// 持有者必须在所有代码路径上恰好调用一次 Exit。
type Entry struct {
	res *ResourceWrapper
	ctx *EntryContext
	sc  *SlotChain

	// exited false→true 恰好一次，第二次 Exit 返回 ErrEntryExited。
	exited atomic.Bool

	mu           sync.Mutex
	exitHandlers []ExitHandler
}

// NewEntry 创建准入凭证并与上下文互相绑定。
func NewEntry(ctx *EntryContext, res *ResourceWrapper, sc *SlotChain) *Entry {
	e := &Entry{res: res, ctx: ctx, sc: sc}
	ctx.SetEntry(e)
	return e
}

// Resource 返回凭证对应的资源标识。
func (e *Entry) Resource() *ResourceWrapper {
	return e.res
}

// Context 返回凭证对应的执行上下文。
func (e *Entry) Context() *EntryContext {
	return e.ctx
}

// WhenExit 注册退出回调，回调在出口插槽执行之前按注册顺序运行。
func (e *Entry) WhenExit(handler ExitHandler) {
	if handler == nil {
		return
	}
	e.mu.Lock()
	e.exitHandlers = append(e.exitHandlers, handler)
	e.mu.Unlock()
}

// ExitOption Exit 可选配置函数。
type ExitOption func(*exitOptions)

type exitOptions struct {
	err  error
	rtMs uint64
}

// WithExitError 将业务错误记入上下文，熔断器据此统计异常。
func WithExitError(err error) ExitOption {
	return func(o *exitOptions) {
		o.err = err
	}
}

// WithExitRT 显式指定响应时间（毫秒）。
// 未指定时按 Entry 创建时刻到 Exit 时刻的间隔计算。
func WithExitRT(rtMs uint64) ExitOption {
	return func(o *exitOptions) {
		o.rtMs = rtMs
	}
}

// Exit 完结本次调用：逆序执行各出口插槽，回写成功/错误/耗时统计。
// 重复调用返回 ErrEntryExited 且不产生任何二次统计副作用。
func (e *Entry) Exit(opts ...ExitOption) error {
	if !e.exited.CompareAndSwap(false, true) {
		return ErrEntryExited
	}

	o := &exitOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	ctx := e.ctx
	if o.err != nil {
		ctx.SetError(o.err)
	}
	if o.rtMs > 0 {
		ctx.PutRt(o.rtMs)
	} else {
		ctx.PutRt(xtime.CurrentTimeMillis() - ctx.StartTime())
	}

	e.mu.Lock()
	handlers := e.exitHandlers
	e.exitHandlers = nil
	e.mu.Unlock()
	for _, h := range handlers {
		h(e, ctx)
	}

	if e.sc != nil {
		e.sc.Exit(ctx)
	}
	return nil
}
