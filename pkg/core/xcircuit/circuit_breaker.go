package xcircuit

import (
	"sync/atomic"

	"github.com/omeyang/xguard/pkg/core/xbase"
	"github.com/omeyang/xguard/pkg/core/xstat"
	"github.com/omeyang/xguard/pkg/util/xtime"
)

// CircuitBreaker 单条熔断规则对应的熔断器。
type CircuitBreaker interface {
	// BoundRule 返回绑定的规则。
	BoundRule() *Rule
	// BoundStat 返回熔断器的统计窗口，供等价规则重载时复用。
	BoundStat() any
	// TryPass 入口判定：Closed 放行；Open 在重试截止后通过 CAS 竞争
	// 放行恰好一个探测；其余拒绝。
	TryPass(ctx *xbase.EntryContext) bool
	// CurrentState 返回当前状态。
	CurrentState() State
	// OnRequestComplete 出口回填：按策略统计本次调用并评估状态迁移。
	OnRequestComplete(rtMs uint64, err error)
}

// stateNotifier 状态迁移的通知出口，由 Group 实现。
type stateNotifier interface {
	notifyClosed(prev State, rule Rule)
	notifyOpen(prev State, rule Rule, snapshot any)
	notifyHalfOpen(prev State, rule Rule)
}

// breakerBase 三种策略共享的状态机骨架。
type breakerBase struct {
	rule           *Rule
	retryTimeoutMs uint32
	// nextRetryTimestampMs Open 态允许放行探测的最早时刻（Unix 毫秒）。
	nextRetryTimestampMs atomic.Uint64
	state                *atomicState
	notifier             stateNotifier
}

func newBreakerBase(r *Rule, notifier stateNotifier) breakerBase {
	return breakerBase{
		rule:           r,
		retryTimeoutMs: r.RetryTimeoutMs,
		state:          newAtomicState(Closed),
		notifier:       notifier,
	}
}

func (b *breakerBase) BoundRule() *Rule {
	return b.rule
}

func (b *breakerBase) CurrentState() State {
	return b.state.load()
}

func (b *breakerBase) retryTimeoutArrived() bool {
	return xtime.CurrentTimeMillis() >= b.nextRetryTimestampMs.Load()
}

func (b *breakerBase) updateNextRetryTimestamp() {
	b.nextRetryTimestampMs.Store(xtime.CurrentTimeMillis() + uint64(b.retryTimeoutMs))
}

// fromClosedToOpen Closed→Open。CAS 保证并发触发中只有一个成功者
// 更新截止时刻并发布通知。
func (b *breakerBase) fromClosedToOpen(snapshot any) bool {
	if !b.state.cas(Closed, Open) {
		return false
	}
	b.updateNextRetryTimestamp()
	if b.notifier != nil {
		b.notifier.notifyOpen(Closed, *b.rule, snapshot)
	}
	return true
}

// fromOpenToHalfOpen Open→HalfOpen：放行探测。赢得 CAS 的调用独占
// 探测名额，并在本次 Entry 上挂退出回调，探测在后续插槽被拦截时
// （Entry 从未真正执行）回滚为 Open，避免状态机卡死在半开。
func (b *breakerBase) fromOpenToHalfOpen(ctx *xbase.EntryContext) bool {
	if !b.state.cas(Open, HalfOpen) {
		return false
	}
	if b.notifier != nil {
		b.notifier.notifyHalfOpen(Open, *b.rule)
	}
	if entry := ctx.Entry(); entry != nil {
		entry.WhenExit(func(_ *xbase.Entry, c *xbase.EntryContext) {
			if c.IsBlocked() && b.state.cas(HalfOpen, Open) {
				b.updateNextRetryTimestamp()
				if b.notifier != nil {
					b.notifier.notifyOpen(HalfOpen, *b.rule, nil)
				}
			}
		})
	}
	return true
}

// fromHalfOpenToOpen 探测失败，HalfOpen→Open。
func (b *breakerBase) fromHalfOpenToOpen(snapshot any) bool {
	if !b.state.cas(HalfOpen, Open) {
		return false
	}
	b.updateNextRetryTimestamp()
	if b.notifier != nil {
		b.notifier.notifyOpen(HalfOpen, *b.rule, snapshot)
	}
	return true
}

// fromHalfOpenToClosed 探测成功，HalfOpen→Closed。
func (b *breakerBase) fromHalfOpenToClosed() bool {
	if !b.state.cas(HalfOpen, Closed) {
		return false
	}
	if b.notifier != nil {
		b.notifier.notifyClosed(HalfOpen, *b.rule)
	}
	return true
}

// TryPass 三种策略共用的入口判定。
func (b *breakerBase) TryPass(ctx *xbase.EntryContext) bool {
	switch b.state.load() {
	case Closed:
		return true
	case Open:
		return b.retryTimeoutArrived() && b.fromOpenToHalfOpen(ctx)
	default:
		// HalfOpen：探测名额已被占用。
		return false
	}
}

// ---- 慢调用比例 ----

// slowRequestCounter 慢调用统计桶负载。
type slowRequestCounter struct {
	slowCount  atomic.Int64
	totalCount atomic.Int64
}

func (c *slowRequestCounter) reset() {
	c.slowCount.Store(0)
	c.totalCount.Store(0)
}

// slowRequestLeapArray 以 slowRequestCounter 为负载的滑动窗口。
type slowRequestLeapArray struct {
	data *xstat.LeapArray
}

var _ xstat.BucketGenerator = (*slowRequestLeapArray)(nil)

func newSlowRequestLeapArray(sampleCount, intervalInMs uint32) (*slowRequestLeapArray, error) {
	sla := &slowRequestLeapArray{}
	la, err := xstat.NewLeapArray(sampleCount, intervalInMs, sla)
	if err != nil {
		return nil, err
	}
	sla.data = la
	return sla, nil
}

func (sla *slowRequestLeapArray) NewEmptyBucket() any {
	return &slowRequestCounter{}
}

func (sla *slowRequestLeapArray) ResetBucketTo(bw *xstat.BucketWrap, startTime uint64) *xstat.BucketWrap {
	bw.BucketStart.Store(startTime)
	bw.Value.Store(&slowRequestCounter{})
	return bw
}

func (sla *slowRequestLeapArray) currentCounter() *slowRequestCounter {
	bw, err := sla.data.CurrentBucket(sla)
	if err != nil {
		return nil
	}
	c, ok := bw.Value.Load().(*slowRequestCounter)
	if !ok {
		return nil
	}
	return c
}

func (sla *slowRequestLeapArray) allCounters() []*slowRequestCounter {
	buckets := sla.data.Values(xtime.CurrentTimeMillis())
	ret := make([]*slowRequestCounter, 0, len(buckets))
	for _, bw := range buckets {
		if c, ok := bw.Value.Load().(*slowRequestCounter); ok {
			ret = append(ret, c)
		}
	}
	return ret
}

// slowRtBreaker 慢调用比例熔断器。
type slowRtBreaker struct {
	breakerBase
	maxAllowedRtMs uint64
	maxSlowRatio   float64
	minRequestAmt  uint64
	stat           *slowRequestLeapArray
}

var _ CircuitBreaker = (*slowRtBreaker)(nil)

func newSlowRtBreaker(r *Rule, notifier stateNotifier, reused any) (*slowRtBreaker, error) {
	stat, ok := reused.(*slowRequestLeapArray)
	if !ok || stat == nil {
		var err error
		stat, err = newSlowRequestLeapArray(r.bucketCountOrDefault(), r.statIntervalOrDefault())
		if err != nil {
			return nil, err
		}
	}
	return &slowRtBreaker{
		breakerBase:    newBreakerBase(r, notifier),
		maxAllowedRtMs: r.MaxAllowedRtMs,
		maxSlowRatio:   r.Threshold,
		minRequestAmt:  r.MinRequestAmount,
		stat:           stat,
	}, nil
}

func (b *slowRtBreaker) BoundStat() any {
	return b.stat
}

func (b *slowRtBreaker) OnRequestComplete(rtMs uint64, _ error) {
	if c := b.stat.currentCounter(); c != nil {
		if rtMs > b.maxAllowedRtMs {
			c.slowCount.Add(1)
		}
		c.totalCount.Add(1)
	}

	var slow, total int64
	for _, c := range b.stat.allCounters() {
		slow += c.slowCount.Load()
		total += c.totalCount.Load()
	}

	// HalfOpen 态下本次完结即探测结果。
	if b.CurrentState() == HalfOpen {
		if rtMs > b.maxAllowedRtMs {
			b.fromHalfOpenToOpen(1.0)
		} else if b.fromHalfOpenToClosed() {
			b.resetMetric()
		}
		return
	}

	if uint64(total) < b.minRequestAmt {
		return
	}
	slowRatio := float64(slow) / float64(total)
	if slowRatio >= b.maxSlowRatio {
		b.fromClosedToOpen(slowRatio)
	}
}

func (b *slowRtBreaker) resetMetric() {
	for _, c := range b.stat.allCounters() {
		c.reset()
	}
}

// ---- 错误比例 / 错误计数 ----

// errorCounter 错误统计桶负载，错误比例与错误计数策略共用。
type errorCounter struct {
	errorCount atomic.Int64
	totalCount atomic.Int64
}

func (c *errorCounter) reset() {
	c.errorCount.Store(0)
	c.totalCount.Store(0)
}

// errorCounterLeapArray 以 errorCounter 为负载的滑动窗口。
type errorCounterLeapArray struct {
	data *xstat.LeapArray
}

var _ xstat.BucketGenerator = (*errorCounterLeapArray)(nil)

func newErrorCounterLeapArray(sampleCount, intervalInMs uint32) (*errorCounterLeapArray, error) {
	ela := &errorCounterLeapArray{}
	la, err := xstat.NewLeapArray(sampleCount, intervalInMs, ela)
	if err != nil {
		return nil, err
	}
	ela.data = la
	return ela, nil
}

func (ela *errorCounterLeapArray) NewEmptyBucket() any {
	return &errorCounter{}
}

func (ela *errorCounterLeapArray) ResetBucketTo(bw *xstat.BucketWrap, startTime uint64) *xstat.BucketWrap {
	bw.BucketStart.Store(startTime)
	bw.Value.Store(&errorCounter{})
	return bw
}

func (ela *errorCounterLeapArray) currentCounter() *errorCounter {
	bw, err := ela.data.CurrentBucket(ela)
	if err != nil {
		return nil
	}
	c, ok := bw.Value.Load().(*errorCounter)
	if !ok {
		return nil
	}
	return c
}

func (ela *errorCounterLeapArray) allCounters() []*errorCounter {
	buckets := ela.data.Values(xtime.CurrentTimeMillis())
	ret := make([]*errorCounter, 0, len(buckets))
	for _, bw := range buckets {
		if c, ok := bw.Value.Load().(*errorCounter); ok {
			ret = append(ret, c)
		}
	}
	return ret
}

// errorRatioBreaker 错误比例熔断器。
type errorRatioBreaker struct {
	breakerBase
	errorRatioThreshold float64
	minRequestAmt       uint64
	stat                *errorCounterLeapArray
}

var _ CircuitBreaker = (*errorRatioBreaker)(nil)

func newErrorRatioBreaker(r *Rule, notifier stateNotifier, reused any) (*errorRatioBreaker, error) {
	stat, ok := reused.(*errorCounterLeapArray)
	if !ok || stat == nil {
		var err error
		stat, err = newErrorCounterLeapArray(r.bucketCountOrDefault(), r.statIntervalOrDefault())
		if err != nil {
			return nil, err
		}
	}
	return &errorRatioBreaker{
		breakerBase:         newBreakerBase(r, notifier),
		errorRatioThreshold: r.Threshold,
		minRequestAmt:       r.MinRequestAmount,
		stat:                stat,
	}, nil
}

func (b *errorRatioBreaker) BoundStat() any {
	return b.stat
}

func (b *errorRatioBreaker) OnRequestComplete(_ uint64, err error) {
	if c := b.stat.currentCounter(); c != nil {
		if err != nil {
			c.errorCount.Add(1)
		}
		c.totalCount.Add(1)
	}

	var errCount, total int64
	for _, c := range b.stat.allCounters() {
		errCount += c.errorCount.Load()
		total += c.totalCount.Load()
	}

	if b.CurrentState() == HalfOpen {
		if err != nil {
			b.fromHalfOpenToOpen(1.0)
		} else if b.fromHalfOpenToClosed() {
			b.resetMetric()
		}
		return
	}

	if uint64(total) < b.minRequestAmt {
		return
	}
	errRatio := float64(errCount) / float64(total)
	if errRatio >= b.errorRatioThreshold {
		b.fromClosedToOpen(errRatio)
	}
}

func (b *errorRatioBreaker) resetMetric() {
	for _, c := range b.stat.allCounters() {
		c.reset()
	}
}

// errorCountBreaker 错误计数熔断器。
type errorCountBreaker struct {
	breakerBase
	errorCountThreshold uint64
	minRequestAmt       uint64
	stat                *errorCounterLeapArray
}

var _ CircuitBreaker = (*errorCountBreaker)(nil)

func newErrorCountBreaker(r *Rule, notifier stateNotifier, reused any) (*errorCountBreaker, error) {
	stat, ok := reused.(*errorCounterLeapArray)
	if !ok || stat == nil {
		var err error
		stat, err = newErrorCounterLeapArray(r.bucketCountOrDefault(), r.statIntervalOrDefault())
		if err != nil {
			return nil, err
		}
	}
	return &errorCountBreaker{
		breakerBase:         newBreakerBase(r, notifier),
		errorCountThreshold: uint64(r.Threshold),
		minRequestAmt:       r.MinRequestAmount,
		stat:                stat,
	}, nil
}

func (b *errorCountBreaker) BoundStat() any {
	return b.stat
}

func (b *errorCountBreaker) OnRequestComplete(_ uint64, err error) {
	if c := b.stat.currentCounter(); c != nil {
		if err != nil {
			c.errorCount.Add(1)
		}
		c.totalCount.Add(1)
	}

	var errCount, total int64
	for _, c := range b.stat.allCounters() {
		errCount += c.errorCount.Load()
		total += c.totalCount.Load()
	}

	if b.CurrentState() == HalfOpen {
		if err != nil {
			b.fromHalfOpenToOpen(errCount)
		} else if b.fromHalfOpenToClosed() {
			b.resetMetric()
		}
		return
	}

	if uint64(total) < b.minRequestAmt {
		return
	}
	if uint64(errCount) >= b.errorCountThreshold {
		b.fromClosedToOpen(errCount)
	}
}

func (b *errorCountBreaker) resetMetric() {
	for _, c := range b.stat.allCounters() {
		c.reset()
	}
}

// newCircuitBreaker 按策略构造熔断器，reusedStat 为可复用的统计窗口
// （类型不匹配时忽略并新建）。
func newCircuitBreaker(r *Rule, notifier stateNotifier, reusedStat any) (CircuitBreaker, error) {
	switch r.Strategy {
	case SlowRequestRatio:
		return newSlowRtBreaker(r, notifier, reusedStat)
	case ErrorRatio:
		return newErrorRatioBreaker(r, notifier, reusedStat)
	case ErrorCount:
		return newErrorCountBreaker(r, notifier, reusedStat)
	default:
		return nil, ErrUnsupportedStrategy
	}
}
