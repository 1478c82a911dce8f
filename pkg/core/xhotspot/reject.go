package xhotspot

import (
	"runtime"
	"sync/atomic"

	"github.com/omeyang/xguard/pkg/core/xbase"
	"github.com/omeyang/xguard/pkg/util/xtime"
)

// rejectTrafficShapingController QPS 口径、直接拒绝行为的控制器。
//
// 每个参数值是一个独立的令牌桶：容量为阈值加突发容忍量，整个补充
// 周期过去后按流逝时间比例补充令牌。取令牌与补令牌都是对缓存内
// *int64 的 CAS，无锁且无后台任务。
type rejectTrafficShapingController struct {
	baseTrafficShapingController
	burstCount int64
}

var _ TrafficShapingController = (*rejectTrafficShapingController)(nil)

func (c *rejectTrafficShapingController) PerformChecking(arg any, batchCount int64) *xbase.TokenResult {
	tokenCount := c.thresholdFor(arg)
	if tokenCount <= 0 {
		return c.blocked(arg)
	}
	maxCount := tokenCount + c.burstCount
	if batchCount > maxCount {
		return c.blocked(arg)
	}
	intervalMs := c.durationInSec * 1000

	for {
		currentTimeInMs := int64(xtime.CurrentTimeMillis())
		lastAddTokenTimePtr := c.metric.RuleTimeCounter.AddIfAbsent(arg, &currentTimeInMs)
		if lastAddTokenTimePtr == nil {
			// 首次出现：建桶并立即消费本批令牌。
			leftCount := maxCount - batchCount
			c.metric.RuleTokenCounter.AddIfAbsent(arg, &leftCount)
			return nil
		}

		passTime := currentTimeInMs - atomic.LoadInt64(lastAddTokenTimePtr)
		if passTime > intervalMs {
			// 补充周期已过，按流逝时间补充令牌。
			leftCount := maxCount - batchCount
			oldQpsPtr := c.metric.RuleTokenCounter.AddIfAbsent(arg, &leftCount)
			if oldQpsPtr == nil {
				// 令牌计数器曾被 LRU 逐出，按新桶处理。
				atomic.StoreInt64(lastAddTokenTimePtr, currentTimeInMs)
				return nil
			}
			restQps := atomic.LoadInt64(oldQpsPtr)
			toAddTokenNum := passTime * tokenCount / intervalMs
			var newQps int64
			if toAddTokenNum+restQps > maxCount {
				newQps = maxCount - batchCount
			} else {
				newQps = toAddTokenNum + restQps - batchCount
			}
			if newQps < 0 {
				return c.blocked(arg)
			}
			if atomic.CompareAndSwapInt64(oldQpsPtr, restQps, newQps) {
				atomic.StoreInt64(lastAddTokenTimePtr, currentTimeInMs)
				return nil
			}
			runtime.Gosched()
		} else {
			oldQpsPtr := c.metric.RuleTokenCounter.Get(arg)
			if oldQpsPtr != nil {
				oldRestToken := atomic.LoadInt64(oldQpsPtr)
				if oldRestToken-batchCount < 0 {
					return c.blocked(arg)
				}
				if atomic.CompareAndSwapInt64(oldQpsPtr, oldRestToken, oldRestToken-batchCount) {
					return nil
				}
			}
			runtime.Gosched()
		}
	}
}

func (c *rejectTrafficShapingController) blocked(arg any) *xbase.TokenResult {
	return xbase.NewTokenResultBlocked(xbase.BlockTypeHotSpotParam,
		xbase.WithRule(c.rule),
		xbase.WithSnapshotValue(arg))
}
