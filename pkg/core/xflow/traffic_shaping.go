package xflow

import (
	"github.com/omeyang/xguard/pkg/core/xbase"
	"github.com/omeyang/xguard/pkg/core/xstat"
)

// TrafficShapingCalculator 根据规则阈值与策略计算调用时刻的实际许可阈值。
type TrafficShapingCalculator interface {
	BoundOwner() *TrafficShapingController
	CalculateAllowedTokens(batchCount uint32) float64
}

// TrafficShapingChecker 将当前指标与许可阈值比较，产出令牌结果。
type TrafficShapingChecker interface {
	BoundOwner() *TrafficShapingController
	DoCheck(resStat xbase.StatNode, batchCount uint32, threshold float64) *xbase.TokenResult
}

// TrafficShapingController 单条流控规则的运行载体：
// 阈值计算器 × 检查器，外加规则的统计数据源。
type TrafficShapingController struct {
	flowCalculator TrafficShapingCalculator
	flowChecker    TrafficShapingChecker

	rule *Rule
	// boundMetric 规则的 QPS 数据源。规则使用默认统计周期时为资源
	// 节点的秒级视图；指定了 StatIntervalInMs 时为派生的自定义跨度视图。
	boundMetric xbase.ReadStat
}

// NewTrafficShapingController 按规则组装控制器。
// node 为规则作用资源的统计节点（载入时解析，一次绑定）。
func NewTrafficShapingController(rule *Rule, node xbase.StatNode) (*TrafficShapingController, error) {
	boundMetric, err := resolveBoundMetric(rule, node)
	if err != nil {
		return nil, err
	}
	tsc := &TrafficShapingController{rule: rule, boundMetric: boundMetric}

	switch rule.TokenCalculateStrategy {
	case WarmUp:
		tsc.flowCalculator = newWarmUpCalculator(tsc, rule)
	default:
		tsc.flowCalculator = newDirectCalculator(tsc, rule.Threshold)
	}

	switch rule.ControlBehavior {
	case Throttling:
		tsc.flowChecker = newThrottlingChecker(tsc, rule)
	default:
		tsc.flowChecker = newRejectChecker(tsc, rule)
	}
	return tsc, nil
}

// resolveBoundMetric 解析规则的统计数据源。
func resolveBoundMetric(rule *Rule, node xbase.StatNode) (xbase.ReadStat, error) {
	if rule.StatIntervalInMs == 0 {
		return node.GenerateReadStat(xstat.DefaultSampleCount, xstat.DefaultIntervalMs)
	}
	interval := rule.StatIntervalInMs
	fineBucket := xstat.DefaultIntervalMsTotal / xstat.DefaultSampleCountTotal
	sampleCount := uint32(1)
	if interval%fineBucket == 0 {
		sampleCount = interval / fineBucket
	}
	// 对齐不满足时由视图构造报错，使整批规则载入失败。
	return node.GenerateReadStat(sampleCount, interval)
}

// BoundRule 返回绑定的规则。
func (t *TrafficShapingController) BoundRule() *Rule {
	return t.rule
}

// FlowCalculator 返回阈值计算器。
func (t *TrafficShapingController) FlowCalculator() TrafficShapingCalculator {
	return t.flowCalculator
}

// FlowChecker 返回检查器。
func (t *TrafficShapingController) FlowChecker() TrafficShapingChecker {
	return t.flowChecker
}

// readStat 返回规则的 QPS 数据源。
func (t *TrafficShapingController) readStat() xbase.ReadStat {
	return t.boundMetric
}

// PerformChecking 执行一次流量校验。
func (t *TrafficShapingController) PerformChecking(resStat xbase.StatNode, batchCount uint32) *xbase.TokenResult {
	allowedTokens := t.flowCalculator.CalculateAllowedTokens(batchCount)
	return t.flowChecker.DoCheck(resStat, batchCount, allowedTokens)
}
