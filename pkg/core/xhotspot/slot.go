package xhotspot

import (
	"sync/atomic"

	"github.com/omeyang/xguard/pkg/core/xbase"
)

const (
	// RuleCheckSlotOrder 热点检查槽在规则检查阶段的固定序号。
	RuleCheckSlotOrder uint32 = 5000
	// ConcurrencyStatSlotOrder 热点并发统计槽在统计阶段的固定序号。
	ConcurrencyStatSlotOrder uint32 = 3000
)

var _ xbase.RuleCheckSlot = (*Slot)(nil)

// Slot 热点参数检查槽。对每条规则提取对应下标的参数值并检查，
// 未携带该参数的调用不受规则约束。
type Slot struct {
	manager *RuleManager
}

// NewSlot 创建热点检查槽。
func NewSlot(manager *RuleManager) (*Slot, error) {
	if manager == nil {
		return nil, ErrNilManager
	}
	return &Slot{manager: manager}, nil
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

	batch := int64(ctx.Input.BatchCount)
	for _, tsc := range s.manager.getControllers(res) {
		if tsc == nil {
			continue
		}
		arg := tsc.ExtractArgs(ctx)
		if arg == nil {
			continue
		}
		r := tsc.PerformChecking(arg, batch)
		if r == nil {
			continue
		}
		switch r.Status() {
		case xbase.ResultStatusBlocked:
			return r
		case xbase.ResultStatusShouldWait:
			if r.WaitMs() > result.WaitMs() {
				result.ResetToShouldWait(r.WaitMs())
			}
		}
	}
	return result
}

var _ xbase.StatSlot = (*ConcurrencyStatSlot)(nil)

// ConcurrencyStatSlot 热点并发统计槽：通过时递增、完结时递减
// 并发口径规则的参数值并发计数。
type ConcurrencyStatSlot struct {
	manager *RuleManager
}

// NewConcurrencyStatSlot 创建热点并发统计槽。
func NewConcurrencyStatSlot(manager *RuleManager) (*ConcurrencyStatSlot, error) {
	if manager == nil {
		return nil, ErrNilManager
	}
	return &ConcurrencyStatSlot{manager: manager}, nil
}

func (s *ConcurrencyStatSlot) Order() uint32 {
	return ConcurrencyStatSlotOrder
}

func (s *ConcurrencyStatSlot) OnEntryPassed(ctx *xbase.EntryContext) {
	s.addConcurrency(ctx, 1)
}

func (s *ConcurrencyStatSlot) OnEntryBlocked(_ *xbase.EntryContext, _ *xbase.BlockError) {
	// 被拦截的调用不占用并发。
}

func (s *ConcurrencyStatSlot) OnCompleted(ctx *xbase.EntryContext) {
	s.addConcurrency(ctx, -1)
}

func (s *ConcurrencyStatSlot) addConcurrency(ctx *xbase.EntryContext, delta int64) {
	res := ctx.Resource.Name()
	if len(res) == 0 {
		return
	}
	for _, tsc := range s.manager.getControllers(res) {
		if tsc == nil || tsc.BoundRule().MetricType != Concurrency {
			continue
		}
		arg := tsc.ExtractArgs(ctx)
		if arg == nil {
			continue
		}
		if ptr := tsc.BoundMetric().ConcurrencyCounter.Get(arg); ptr != nil {
			atomic.AddInt64(ptr, delta)
		}
	}
}
