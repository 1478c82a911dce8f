package xflow

import (
	"github.com/omeyang/xguard/pkg/core/xbase"
)

// directCalculator 恒定阈值计算器。
type directCalculator struct {
	owner     *TrafficShapingController
	threshold float64
}

var _ TrafficShapingCalculator = (*directCalculator)(nil)

func newDirectCalculator(owner *TrafficShapingController, threshold float64) *directCalculator {
	return &directCalculator{owner: owner, threshold: threshold}
}

func (c *directCalculator) BoundOwner() *TrafficShapingController {
	return c.owner
}

func (c *directCalculator) CalculateAllowedTokens(uint32) float64 {
	return c.threshold
}

// rejectChecker 直接拒绝检查器：当前指标加上本次请求量越过阈值即拦截。
type rejectChecker struct {
	owner *TrafficShapingController
	rule  *Rule
}

var _ TrafficShapingChecker = (*rejectChecker)(nil)

func newRejectChecker(owner *TrafficShapingController, rule *Rule) *rejectChecker {
	return &rejectChecker{owner: owner, rule: rule}
}

func (c *rejectChecker) BoundOwner() *TrafficShapingController {
	return c.owner
}

func (c *rejectChecker) DoCheck(resStat xbase.StatNode, batchCount uint32, threshold float64) *xbase.TokenResult {
	var current float64
	if c.rule.MetricType == Concurrency {
		if resStat != nil {
			current = float64(resStat.CurrentConcurrency())
		}
	} else {
		// 阈值语义：统计周期内的许可通过量（默认周期 1s 即 QPS）。
		if m := c.owner.readStat(); m != nil {
			current = float64(m.GetSum(xbase.MetricEventPass))
		} else if resStat != nil {
			current = float64(resStat.GetSum(xbase.MetricEventPass))
		}
	}
	if current+float64(batchCount) > threshold {
		return xbase.NewTokenResultBlocked(xbase.BlockTypeFlow,
			xbase.WithRule(c.rule),
			xbase.WithBlockMsg("flow reject check blocked"),
			xbase.WithSnapshotValue(current))
	}
	return nil
}
