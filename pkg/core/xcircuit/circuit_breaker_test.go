package xcircuit

import (
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xguard/pkg/core/xbase"
)

var errBoom = errors.New("boom")

// transitionRecorder 记录状态迁移序列的监听器。
type transitionRecorder struct {
	mu     sync.Mutex
	events []string
}

var _ StateChangeListener = (*transitionRecorder)(nil)

func (r *transitionRecorder) OnTransformToClosed(prev State, _ Rule) {
	r.record(prev, Closed)
}

func (r *transitionRecorder) OnTransformToOpen(prev State, _ Rule, _ any) {
	r.record(prev, Open)
}

func (r *transitionRecorder) OnTransformToHalfOpen(prev State, _ Rule) {
	r.record(prev, HalfOpen)
}

func (r *transitionRecorder) record(prev, next State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, prev.String()+"->"+next.String())
}

func (r *transitionRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func loadSingleBreaker(t *testing.T, g *Group, rule *Rule) CircuitBreaker {
	t.Helper()
	require.NoError(t, g.LoadRules([]*Rule{rule}))
	cbs := g.GetBreakers(rule.Resource)
	require.Len(t, cbs, 1)
	return cbs[0]
}

func newProbeContext() *xbase.EntryContext {
	ctx := xbase.NewEntryContext()
	ctx.Resource = xbase.NewResourceWrapper("r", xbase.Inbound)
	xbase.NewEntry(ctx, ctx.Resource, nil)
	return ctx
}

func TestErrorRatioBreakerTrip(t *testing.T) {
	g := NewGroup(slog.Default())
	cb := loadSingleBreaker(t, g, &Rule{
		Resource:         "r",
		Strategy:         ErrorRatio,
		RetryTimeoutMs:   60_000,
		MinRequestAmount: 5,
		StatIntervalMs:   10_000,
		Threshold:        0.5,
	})

	// 静默期：请求量不足 MinRequestAmount 时即便全错也不熔断。
	for i := 0; i < 4; i++ {
		cb.OnRequestComplete(1, errBoom)
	}
	assert.Equal(t, Closed, cb.CurrentState())
	assert.True(t, cb.TryPass(newProbeContext()))

	cb.OnRequestComplete(1, errBoom)
	assert.Equal(t, Open, cb.CurrentState())

	// 重试截止未到，入口直接拒绝。
	assert.False(t, cb.TryPass(newProbeContext()))
}

func TestErrorRatioBelowThresholdStaysClosed(t *testing.T) {
	g := NewGroup(slog.Default())
	cb := loadSingleBreaker(t, g, &Rule{
		Resource:         "r",
		Strategy:         ErrorRatio,
		RetryTimeoutMs:   60_000,
		MinRequestAmount: 5,
		StatIntervalMs:   10_000,
		Threshold:        0.5,
	})

	for i := 0; i < 8; i++ {
		cb.OnRequestComplete(1, nil)
	}
	cb.OnRequestComplete(1, errBoom)
	cb.OnRequestComplete(1, errBoom)
	// 2/10 < 0.5
	assert.Equal(t, Closed, cb.CurrentState())
}

func TestErrorCountBreakerTrip(t *testing.T) {
	g := NewGroup(slog.Default())
	cb := loadSingleBreaker(t, g, &Rule{
		Resource:         "r",
		Strategy:         ErrorCount,
		RetryTimeoutMs:   60_000,
		MinRequestAmount: 1,
		StatIntervalMs:   10_000,
		Threshold:        3,
	})

	cb.OnRequestComplete(1, errBoom)
	cb.OnRequestComplete(1, errBoom)
	assert.Equal(t, Closed, cb.CurrentState())
	cb.OnRequestComplete(1, errBoom)
	assert.Equal(t, Open, cb.CurrentState())
}

func TestSlowRtBreakerTrip(t *testing.T) {
	g := NewGroup(slog.Default())
	cb := loadSingleBreaker(t, g, &Rule{
		Resource:         "r",
		Strategy:         SlowRequestRatio,
		RetryTimeoutMs:   60_000,
		MinRequestAmount: 4,
		StatIntervalMs:   10_000,
		MaxAllowedRtMs:   10,
		Threshold:        0.5,
	})

	cb.OnRequestComplete(5, nil)
	cb.OnRequestComplete(5, nil)
	cb.OnRequestComplete(50, nil)
	assert.Equal(t, Closed, cb.CurrentState())
	cb.OnRequestComplete(50, nil)
	// 2/4 >= 0.5
	assert.Equal(t, Open, cb.CurrentState())
}

func TestOpenToHalfOpenSingleProbe(t *testing.T) {
	g := NewGroup(slog.Default())
	cb := loadSingleBreaker(t, g, &Rule{
		Resource:         "r",
		Strategy:         ErrorCount,
		RetryTimeoutMs:   1,
		MinRequestAmount: 1,
		StatIntervalMs:   10_000,
		Threshold:        1,
	})

	cb.OnRequestComplete(1, errBoom)
	require.Equal(t, Open, cb.CurrentState())
	time.Sleep(5 * time.Millisecond)

	// 重试截止已到：并发竞争下恰好一个调用拿到探测名额。
	const n = 16
	var wg sync.WaitGroup
	var passed int32
	var mu sync.Mutex
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if cb.TryPass(newProbeContext()) {
				mu.Lock()
				passed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), passed)
	assert.Equal(t, HalfOpen, cb.CurrentState())
}

func TestHalfOpenProbeOutcome(t *testing.T) {
	newHalfOpen := func(t *testing.T) CircuitBreaker {
		g := NewGroup(slog.Default())
		cb := loadSingleBreaker(t, g, &Rule{
			Resource:         "r",
			Strategy:         ErrorCount,
			RetryTimeoutMs:   1,
			MinRequestAmount: 1,
			StatIntervalMs:   10_000,
			Threshold:        1,
		})
		cb.OnRequestComplete(1, errBoom)
		time.Sleep(5 * time.Millisecond)
		require.True(t, cb.TryPass(newProbeContext()))
		require.Equal(t, HalfOpen, cb.CurrentState())
		return cb
	}

	t.Run("探测成功恢复 Closed 并清空窗口", func(t *testing.T) {
		cb := newHalfOpen(t)
		cb.OnRequestComplete(1, nil)
		assert.Equal(t, Closed, cb.CurrentState())

		// 窗口已清空：再来一个错误不会立即重新熔断（阈值为 1，
		// 若旧错误残留则累加后必然触发）。
		b := cb.(*errorCountBreaker)
		var residual int64
		for _, c := range b.stat.allCounters() {
			residual += c.errorCount.Load()
		}
		assert.Zero(t, residual)
	})

	t.Run("探测失败回到 Open", func(t *testing.T) {
		cb := newHalfOpen(t)
		cb.OnRequestComplete(1, errBoom)
		assert.Equal(t, Open, cb.CurrentState())
		assert.False(t, cb.TryPass(newProbeContext()))
	})
}

func TestHalfOpenProbeBlockedRollsBack(t *testing.T) {
	g := NewGroup(slog.Default())
	rec := &transitionRecorder{}
	g.RegisterStateChangeListener(rec)
	cb := loadSingleBreaker(t, g, &Rule{
		Resource:         "r",
		Strategy:         ErrorCount,
		RetryTimeoutMs:   1,
		MinRequestAmount: 1,
		StatIntervalMs:   10_000,
		Threshold:        1,
	})

	cb.OnRequestComplete(1, errBoom)
	time.Sleep(5 * time.Millisecond)

	ctx := newProbeContext()
	require.True(t, cb.TryPass(ctx))
	require.Equal(t, HalfOpen, cb.CurrentState())

	// 探测在后续插槽被拦截：Entry 从未真正执行，
	// 退出回调把状态机回滚为 Open。
	ctx.RuleCheckResult.ResetToBlocked(xbase.BlockTypeFlow)
	require.NoError(t, ctx.Entry().Exit())
	assert.Equal(t, Open, cb.CurrentState())

	events := rec.snapshot()
	assert.Contains(t, events, "Closed->Open")
	assert.Contains(t, events, "Open->HalfOpen")
	assert.Contains(t, events, "HalfOpen->Open")
}

func TestListenerNotificationOrder(t *testing.T) {
	g := NewGroup(slog.Default())
	rec := &transitionRecorder{}
	g.RegisterStateChangeListener(rec)
	cb := loadSingleBreaker(t, g, &Rule{
		Resource:         "r",
		Strategy:         ErrorCount,
		RetryTimeoutMs:   1,
		MinRequestAmount: 1,
		StatIntervalMs:   10_000,
		Threshold:        1,
	})

	cb.OnRequestComplete(1, errBoom)
	time.Sleep(5 * time.Millisecond)
	require.True(t, cb.TryPass(newProbeContext()))
	cb.OnRequestComplete(1, nil)

	assert.Equal(t, []string{
		"Closed->Open",
		"Open->HalfOpen",
		"HalfOpen->Closed",
	}, rec.snapshot())
}
