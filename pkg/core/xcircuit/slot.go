package xcircuit

import (
	"github.com/omeyang/xguard/pkg/core/xbase"
)

const (
	// RuleCheckSlotOrder 熔断检查槽在规则检查阶段的固定序号。
	RuleCheckSlotOrder uint32 = 3000
	// MetricStatSlotOrder 熔断统计槽在统计阶段的固定序号。
	MetricStatSlotOrder uint32 = 2000
)

var _ xbase.RuleCheckSlot = (*Slot)(nil)

// Slot 熔断检查槽。资源上任一熔断器拒绝即拦截。
type Slot struct {
	group *Group
}

// NewSlot 创建熔断检查槽。
func NewSlot(group *Group) (*Slot, error) {
	if group == nil {
		return nil, ErrNilGroup
	}
	return &Slot{group: group}, nil
}

func (s *Slot) Order() uint32 {
	return RuleCheckSlotOrder
}

func (s *Slot) Check(ctx *xbase.EntryContext) *xbase.TokenResult {
	res := ctx.Resource.Name()
	result := ctx.RuleCheckResult
	if len(res) == 0 {
		return result
	}

	for _, cb := range s.group.GetBreakers(res) {
		if cb == nil {
			continue
		}
		if !cb.TryPass(ctx) {
			result.ResetToBlocked(xbase.BlockTypeCircuitBreaking,
				xbase.WithRule(cb.BoundRule()),
				xbase.WithSnapshotValue(cb.CurrentState().String()))
			return result
		}
	}
	return result
}

var _ xbase.StatSlot = (*MetricStatSlot)(nil)

// MetricStatSlot 熔断统计槽。调用完结时把 rt 与业务错误回填给资源上的
// 每个熔断器，驱动各自的统计窗口与状态迁移。
type MetricStatSlot struct {
	group *Group
}

// NewMetricStatSlot 创建熔断统计槽。
func NewMetricStatSlot(group *Group) (*MetricStatSlot, error) {
	if group == nil {
		return nil, ErrNilGroup
	}
	return &MetricStatSlot{group: group}, nil
}

func (s *MetricStatSlot) Order() uint32 {
	return MetricStatSlotOrder
}

func (s *MetricStatSlot) OnEntryPassed(_ *xbase.EntryContext) {
	// 熔断统计只关心完结事件。
}

func (s *MetricStatSlot) OnEntryBlocked(_ *xbase.EntryContext, _ *xbase.BlockError) {
	// 被拦截的调用从未执行，不计入熔断统计。
}

func (s *MetricStatSlot) OnCompleted(ctx *xbase.EntryContext) {
	res := ctx.Resource.Name()
	if len(res) == 0 {
		return
	}
	rt := ctx.Rt()
	err := ctx.Err()
	for _, cb := range s.group.GetBreakers(res) {
		if cb != nil {
			cb.OnRequestComplete(rt, err)
		}
	}
}
