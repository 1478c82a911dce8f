package xhotspot

import (
	"math"
	"runtime"
	"sync/atomic"

	"github.com/omeyang/xguard/pkg/core/xbase"
	"github.com/omeyang/xguard/pkg/util/xtime"
)

// throttlingTrafficShapingController QPS 口径、匀速排队行为的控制器。
//
// 每个参数值各自维护最近一次放行时刻：本批的期望放行时刻为上次
// 放行时刻加上按阈值折算的时间片，未到期望时刻且在最大排队时长内
// 的返回建议等待时间，超出排队上限的直接拒绝。等待是建议性的，
// 控制器本身不阻塞。
type throttlingTrafficShapingController struct {
	baseTrafficShapingController
	maxQueueingTimeMs int64
}

var _ TrafficShapingController = (*throttlingTrafficShapingController)(nil)

func (c *throttlingTrafficShapingController) PerformChecking(arg any, batchCount int64) *xbase.TokenResult {
	tokenCount := c.thresholdFor(arg)
	if tokenCount <= 0 {
		return c.blocked(arg)
	}
	// 本批占用的时间片（毫秒）。
	intervalCostTime := int64(math.Round(float64(batchCount*c.durationInSec*1000) / float64(tokenCount)))

	for {
		currentTimeInMs := int64(xtime.CurrentTimeMillis())
		lastPassTimePtr := c.metric.RuleTimeCounter.AddIfAbsent(arg, &currentTimeInMs)
		if lastPassTimePtr == nil {
			// 首次出现的参数值直接放行。
			return nil
		}

		lastPassTime := atomic.LoadInt64(lastPassTimePtr)
		expectedTime := lastPassTime + intervalCostTime
		if expectedTime > currentTimeInMs && expectedTime-currentTimeInMs > c.maxQueueingTimeMs {
			return c.blocked(arg)
		}

		if atomic.CompareAndSwapInt64(lastPassTimePtr, lastPassTime, currentTimeInMs) {
			awaitTime := expectedTime - currentTimeInMs
			if awaitTime > 0 {
				// 片刻前移到期望时刻，后来者在此基础上继续排队。
				atomic.StoreInt64(lastPassTimePtr, expectedTime)
				return xbase.NewTokenResultShouldWait(uint64(awaitTime))
			}
			return nil
		}
		runtime.Gosched()
	}
}

func (c *throttlingTrafficShapingController) blocked(arg any) *xbase.TokenResult {
	return xbase.NewTokenResultBlocked(xbase.BlockTypeHotSpotParam,
		xbase.WithRule(c.rule),
		xbase.WithSnapshotValue(arg))
}
