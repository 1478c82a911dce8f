package xstat

import (
	"github.com/omeyang/xguard/pkg/core/xbase"
)

// 插槽优先级。统计准备在一切规则检查之前，统计回写在出口逆序时最后执行。
const (
	PrepareSlotOrder uint32 = 1000
	StatSlotOrder    uint32 = 1000
)

// ResourceNodeBuilderSlot 统计准备插槽：解析资源统计节点并挂载到上下文。
type ResourceNodeBuilderSlot struct {
	storage *NodeStorage
}

var _ xbase.StatPrepareSlot = (*ResourceNodeBuilderSlot)(nil)

// NewResourceNodeBuilderSlot 创建统计准备插槽。
func NewResourceNodeBuilderSlot(storage *NodeStorage) *ResourceNodeBuilderSlot {
	return &ResourceNodeBuilderSlot{storage: storage}
}

// Order 实现 xbase.BaseSlot。
func (s *ResourceNodeBuilderSlot) Order() uint32 {
	return PrepareSlotOrder
}

// Prepare 实现 xbase.StatPrepareSlot。
func (s *ResourceNodeBuilderSlot) Prepare(ctx *xbase.EntryContext) {
	ctx.StatNode = s.storage.GetOrCreateNode(ctx.Resource.Name())
}

// StatisticSlot 统计插槽：记录通过/拦截/完结/错误/耗时与并发数，
// 入站流量同时写入全局入站聚合节点。
//
// 入口侧记录的 pass 与后续插槽拦截时记录的 block 是独立计数器，
// 位置无关，先行记录无需回滚。
type StatisticSlot struct {
	storage *NodeStorage
}

var _ xbase.StatSlot = (*StatisticSlot)(nil)

// NewStatisticSlot 创建统计插槽。
func NewStatisticSlot(storage *NodeStorage) *StatisticSlot {
	return &StatisticSlot{storage: storage}
}

// Order 实现 xbase.BaseSlot。
func (s *StatisticSlot) Order() uint32 {
	return StatSlotOrder
}

// OnEntryPassed 实现 xbase.StatSlot：记录通过并累加并发。
func (s *StatisticSlot) OnEntryPassed(ctx *xbase.EntryContext) {
	batch := int64(ctx.Input.BatchCount)
	if node := ctx.StatNode; node != nil {
		node.AddCount(xbase.MetricEventPass, batch)
		node.IncreaseConcurrency()
	}
	if ctx.Resource.Classification() == xbase.Inbound {
		in := s.storage.InboundNode()
		in.AddCount(xbase.MetricEventPass, batch)
		in.IncreaseConcurrency()
	}
}

// OnEntryBlocked 实现 xbase.StatSlot：记录拦截。
func (s *StatisticSlot) OnEntryBlocked(ctx *xbase.EntryContext, _ *xbase.BlockError) {
	batch := int64(ctx.Input.BatchCount)
	if node := ctx.StatNode; node != nil {
		node.AddCount(xbase.MetricEventBlock, batch)
	}
	if ctx.Resource.Classification() == xbase.Inbound {
		s.storage.InboundNode().AddCount(xbase.MetricEventBlock, batch)
	}
}

// OnCompleted 实现 xbase.StatSlot：记录完结、耗时、错误并回收并发。
func (s *StatisticSlot) OnCompleted(ctx *xbase.EntryContext) {
	batch := int64(ctx.Input.BatchCount)
	rt := int64(ctx.Rt())
	if node := ctx.StatNode; node != nil {
		node.AddCount(xbase.MetricEventRt, rt)
		node.AddCount(xbase.MetricEventComplete, batch)
		if ctx.Err() != nil {
			node.AddCount(xbase.MetricEventError, batch)
		}
		node.DecreaseConcurrency()
	}
	if ctx.Resource.Classification() == xbase.Inbound {
		in := s.storage.InboundNode()
		in.AddCount(xbase.MetricEventRt, rt)
		in.AddCount(xbase.MetricEventComplete, batch)
		if ctx.Err() != nil {
			in.AddCount(xbase.MetricEventError, batch)
		}
		in.DecreaseConcurrency()
	}
}
