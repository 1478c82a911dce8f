package xsystem

import (
	"math"

	"github.com/omeyang/xguard/pkg/core/xbase"
	"github.com/omeyang/xguard/pkg/core/xstat"
)

// RuleCheckSlotOrder 系统保护检查槽在规则检查阶段的固定序号。
const RuleCheckSlotOrder uint32 = 4000

var _ xbase.RuleCheckSlot = (*AdaptiveSlot)(nil)

// AdaptiveSlot 系统自适应保护检查槽。只检查入站流量，
// 逐维度对照全局入站统计与系统采样值，任一维度越线即拦截。
type AdaptiveSlot struct {
	manager   *RuleManager
	collector *Collector
	storage   *xstat.NodeStorage
}

// NewAdaptiveSlot 创建系统保护检查槽。collector 可为 nil，
// 此时 Load 与 CpuUsage 维度始终处于降级模式。
func NewAdaptiveSlot(manager *RuleManager, collector *Collector, storage *xstat.NodeStorage) (*AdaptiveSlot, error) {
	if manager == nil {
		return nil, ErrNilManager
	}
	if storage == nil {
		return nil, ErrNilStorage
	}
	return &AdaptiveSlot{manager: manager, collector: collector, storage: storage}, nil
}

func (s *AdaptiveSlot) Order() uint32 {
	return RuleCheckSlotOrder
}

func (s *AdaptiveSlot) Check(ctx *xbase.EntryContext) *xbase.TokenResult {
	result := ctx.RuleCheckResult
	if ctx.Resource.Classification() != xbase.Inbound {
		return result
	}

	inbound := s.storage.InboundNode()

	if r := s.manager.getRuleOf(InboundQPS); r != nil {
		qps := inbound.GetQPS(xbase.MetricEventPass)
		if qps >= r.TriggerCount {
			return blocked(result, r, qps)
		}
	}
	if r := s.manager.getRuleOf(Concurrency); r != nil {
		concurrency := float64(inbound.CurrentConcurrency())
		if concurrency >= r.TriggerCount {
			return blocked(result, r, concurrency)
		}
	}
	if r := s.manager.getRuleOf(AvgRT); r != nil {
		rt := inbound.AvgRT()
		if rt >= r.TriggerCount {
			return blocked(result, r, rt)
		}
	}
	if r := s.manager.getRuleOf(Load); r != nil && s.collector != nil {
		v := s.collector.CurrentLoad()
		// NaN：采样失败或未启动，降级跳过本维度。
		if !math.IsNaN(v) && v >= r.TriggerCount && !s.allowByBbr(r, inbound) {
			return blocked(result, r, v)
		}
	}
	if r := s.manager.getRuleOf(CpuUsage); r != nil && s.collector != nil {
		v := s.collector.CurrentCpuUsage()
		if !math.IsNaN(v) && v >= r.TriggerCount && !s.allowByBbr(r, inbound) {
			return blocked(result, r, v)
		}
	}
	return result
}

// allowByBbr BBR 自适应判定：以近期每秒最大完结量与最小响应时间
// 估算系统可承载的并发（Little 定律），当前并发未超出估算容量时
// 仍然放行。NoAdaptive 策略直接判不放行。
func (s *AdaptiveSlot) allowByBbr(r *Rule, inbound *xstat.ResourceNode) bool {
	if r.Strategy != BBR {
		return false
	}
	concurrency := float64(inbound.CurrentConcurrency())
	if concurrency <= 1 {
		return true
	}
	minRt := inbound.MinRT()
	maxComplete := float64(inbound.GetMaxOfSingleBucket(xbase.MetricEventComplete))
	return concurrency <= maxComplete*minRt/1000.0
}

func blocked(result *xbase.TokenResult, r *Rule, snapshot float64) *xbase.TokenResult {
	result.ResetToBlocked(xbase.BlockTypeSystem,
		xbase.WithRule(r),
		xbase.WithSnapshotValue(snapshot))
	return result
}
