package xflow

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/omeyang/xguard/pkg/core/xbase"
	"github.com/omeyang/xguard/pkg/util/xtime"
)

// throttlingChecker 匀速排队检查器（漏桶）。
//
// 以纳秒精度维护"最近一次放行的虚拟时刻"，每次放行把该时刻向后推
// 一个请求间隔；推后的时刻落在当前时间之前则立即放行，落在最大排队
// 时长之内则放行并返回建议等待时长，否则拦截。
// 检查器自身不等待：等待与否是调用方的调度决定。
type throttlingChecker struct {
	owner *TrafficShapingController
	rule  *Rule

	maxQueueingTimeNs int64
	statIntervalNs    int64

	lastPassedTime atomic.Int64
}

var _ TrafficShapingChecker = (*throttlingChecker)(nil)

func newThrottlingChecker(owner *TrafficShapingController, rule *Rule) *throttlingChecker {
	interval := rule.StatIntervalInMs
	if interval == 0 {
		interval = DefaultStatIntervalMs
	}
	return &throttlingChecker{
		owner:             owner,
		rule:              rule,
		maxQueueingTimeNs: xtime.MillisToNanos(uint64(rule.MaxQueueingTimeMs)),
		statIntervalNs:    xtime.MillisToNanos(uint64(interval)),
	}
}

func (c *throttlingChecker) BoundOwner() *TrafficShapingController {
	return c.owner
}

func (c *throttlingChecker) DoCheck(_ xbase.StatNode, batchCount uint32, threshold float64) *xbase.TokenResult {
	if batchCount == 0 {
		return nil
	}
	if threshold <= 0 || float64(batchCount) > threshold {
		return xbase.NewTokenResultBlocked(xbase.BlockTypeFlow,
			xbase.WithRule(c.rule),
			xbase.WithBlockMsg("flow throttling check blocked, request cannot fit the rate"),
			xbase.WithSnapshotValue(threshold))
	}

	// 本次请求占用的时间片：batch / threshold × 统计周期。
	intervalCost := int64(math.Round(float64(batchCount) / threshold * float64(c.statIntervalNs)))
	now := xtime.CurrentTimeNano()

	expected := c.lastPassedTime.Load() + intervalCost
	if expected <= now {
		// 竞争下多个放行者可能同时走到这里，Store 较晚者覆盖较早者，
		// 偏差不超过一个请求间隔。
		c.lastPassedTime.Store(now)
		return nil
	}

	estimated := c.lastPassedTime.Load() + intervalCost - now
	if estimated > c.maxQueueingTimeNs {
		return c.blockedWithEstimate(estimated)
	}

	// 原子抢占时间片后复核：并发抢占可能把排队时长推过上限，
	// 超限者退还时间片。
	oldTime := c.lastPassedTime.Add(intervalCost)
	estimated = oldTime - now
	if estimated > c.maxQueueingTimeNs {
		c.lastPassedTime.Add(-intervalCost)
		return c.blockedWithEstimate(estimated)
	}
	if estimated > 0 {
		waitMs := uint64(math.Ceil(float64(estimated) / float64(time.Millisecond)))
		return xbase.NewTokenResultShouldWait(waitMs)
	}
	return nil
}

func (c *throttlingChecker) blockedWithEstimate(estimatedNs int64) *xbase.TokenResult {
	return xbase.NewTokenResultBlocked(xbase.BlockTypeFlow,
		xbase.WithRule(c.rule),
		xbase.WithBlockMsg("flow throttling check blocked, estimated queueing time exceeds max"),
		xbase.WithSnapshotValue(xtime.NanosToMillis(estimatedNs)))
}
