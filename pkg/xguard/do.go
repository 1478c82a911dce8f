package xguard

import (
	"context"
	"fmt"
	"time"

	"github.com/omeyang/xguard/pkg/core/xbase"
)

// Do 作用域化的准入组合子：申请准入、执行 fn、保证恰好一次 Exit。
//
// 被拦截时返回 *xbase.BlockError（可用 errors.As 识别），fn 不执行。
// 匀速排队规则给出的建议等待在此兑现：等待可被 ctx 取消，取消时
// 退出准入并返回 ctx.Err()。fn 的返回错误被记入准入上下文供熔断器
// 统计，并原样返回。fn panic 时先完成 Exit 再继续抛出，保证并发数
// 与统计不泄漏。
func (g *Guard) Do(ctx context.Context, resource string, fn func(context.Context) error, opts ...EntryOption) error {
	if fn == nil {
		return ErrNilFunc
	}

	e, blockErr := g.Entry(resource, opts...)
	if blockErr != nil {
		return blockErr
	}

	if waitMs := e.Context().RuleCheckResult.WaitMs(); waitMs > 0 {
		timer := time.NewTimer(time.Duration(waitMs) * time.Millisecond)
		select {
		case <-ctx.Done():
			timer.Stop()
			_ = e.Exit(xbase.WithExitError(ctx.Err()))
			return ctx.Err()
		case <-timer.C:
		}
	}

	var err error
	defer func() {
		if r := recover(); r != nil {
			_ = e.Exit(xbase.WithExitError(fmt.Errorf("xguard: panic in fn: %v", r)))
			panic(r)
		}
		if err != nil {
			_ = e.Exit(xbase.WithExitError(err))
		} else {
			_ = e.Exit()
		}
	}()
	err = fn(ctx)
	return err
}
