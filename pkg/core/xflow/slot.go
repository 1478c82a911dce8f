package xflow

import (
	"github.com/omeyang/xguard/pkg/core/xbase"
)

// RuleCheckSlotOrder 流控检查槽在规则检查阶段的固定序号。
const RuleCheckSlotOrder uint32 = 2000

var _ xbase.RuleCheckSlot = (*Slot)(nil)

// Slot 流控检查槽。逐条评估资源上的流控规则，
// 第一条拒绝即短路；多条匀速排队规则取最大等待时间。
type Slot struct {
	manager *RuleManager
}

// NewSlot 创建流控检查槽。
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

	tcs := s.manager.getControllers(res)
	for _, tsc := range tcs {
		if tsc == nil {
			continue
		}
		r := tsc.PerformChecking(ctx.StatNode, ctx.Input.BatchCount)
		if r == nil {
			continue
		}
		switch r.Status() {
		case xbase.ResultStatusBlocked:
			return r
		case xbase.ResultStatusShouldWait:
			// 多条匀速规则叠加时取最长的等待。
			if r.WaitMs() > result.WaitMs() {
				result.ResetToShouldWait(r.WaitMs())
			}
		}
	}
	return result
}
