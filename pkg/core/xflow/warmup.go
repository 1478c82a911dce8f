package xflow

import (
	"math"
	"sync/atomic"

	"github.com/omeyang/xguard/pkg/core/xbase"
	"github.com/omeyang/xguard/pkg/util/xtime"
)

// warmUpCalculator 预热阈值计算器（令牌桶形式）。
//
// 桶内令牌在空闲期自然积累并向容量上限 maxToken 衰减靠拢；
// 令牌存量高于警戒线 warningToken 说明系统处于冷态，许可阈值被压低，
// 随着通过流量消耗令牌、存量降到警戒线下，阈值爬升回 threshold。
// 以存量表达冷热避免了显式的空闲时长探测。
type warmUpCalculator struct {
	owner *TrafficShapingController

	threshold         float64
	warmUpPeriodInSec uint32
	coldFactor        uint32

	warningToken uint64
	maxToken     uint64
	slope        float64

	storedTokens   atomic.Int64
	lastFilledTime atomic.Uint64
}

var _ TrafficShapingCalculator = (*warmUpCalculator)(nil)

func newWarmUpCalculator(owner *TrafficShapingController, rule *Rule) *warmUpCalculator {
	coldFactor := rule.WarmUpColdFactor
	if coldFactor <= 1 {
		coldFactor = DefaultWarmUpColdFactor
	}
	warningToken := uint64(float64(rule.WarmUpPeriodSec) * rule.Threshold / float64(coldFactor-1))
	maxToken := warningToken + uint64(2*float64(rule.WarmUpPeriodSec)*rule.Threshold/float64(1+coldFactor))
	slope := float64(coldFactor-1) / rule.Threshold / float64(maxToken-warningToken)

	return &warmUpCalculator{
		owner:             owner,
		threshold:         rule.Threshold,
		warmUpPeriodInSec: rule.WarmUpPeriodSec,
		coldFactor:        coldFactor,
		warningToken:      warningToken,
		maxToken:          maxToken,
		slope:             slope,
	}
}

func (c *warmUpCalculator) BoundOwner() *TrafficShapingController {
	return c.owner
}

// CalculateAllowedTokens 返回调用时刻的许可阈值。
// 存量高于警戒线时阈值随存量沿斜率压低，最低为 threshold/coldFactor；
// 低于警戒线时即视为已预热完成，恢复满阈值。
func (c *warmUpCalculator) CalculateAllowedTokens(uint32) float64 {
	var previousQps float64
	if m := c.owner.readStat(); m != nil {
		previousQps = m.GetPreviousQPS(xbase.MetricEventPass)
	}
	c.syncToken(previousQps)

	restToken := c.storedTokens.Load()
	if restToken < 0 {
		restToken = 0
	}
	if uint64(restToken) >= c.warningToken {
		aboveToken := uint64(restToken) - c.warningToken
		return math.Nextafter(1.0/(float64(aboveToken)*c.slope+1.0/c.threshold), math.MaxFloat64)
	}
	return c.threshold
}

// syncToken 按秒对齐补充令牌并扣除上一秒的通过量。
// lastFilledTime 的秒对齐保证每个自然秒只结算一次。
func (c *warmUpCalculator) syncToken(passQps float64) {
	ms := xtime.CurrentTimeMillis()
	ms = ms - ms%1000
	oldLastFillTime := c.lastFilledTime.Load()
	if ms <= oldLastFillTime {
		return
	}

	oldValue := c.storedTokens.Load()
	newValue := c.coolDownTokens(ms, passQps)
	if c.storedTokens.CompareAndSwap(oldValue, newValue) {
		if current := c.storedTokens.Add(-int64(passQps)); current < 0 {
			c.storedTokens.Store(0)
		}
		c.lastFilledTime.Store(ms)
	}
}

// coolDownTokens 计算补充后的令牌存量。
// 冷态（存量低于警戒线）总是补充；热态仅在通过速率已降到冷速率
// 之下时补充（流量消退，系统重新趋冷）。
func (c *warmUpCalculator) coolDownTokens(currentTime uint64, passQps float64) int64 {
	oldValue := c.storedTokens.Load()
	if oldValue < 0 {
		oldValue = 0
	}
	newValue := oldValue

	refill := func() int64 {
		elapsed := currentTime - c.lastFilledTime.Load()
		return oldValue + int64(float64(elapsed)*c.threshold/1000.0)
	}
	switch {
	case uint64(oldValue) < c.warningToken:
		newValue = refill()
	case uint64(oldValue) > c.warningToken:
		if passQps < c.threshold/float64(c.coldFactor) {
			newValue = refill()
		}
	}
	if newValue > int64(c.maxToken) {
		newValue = int64(c.maxToken)
	}
	return newValue
}
