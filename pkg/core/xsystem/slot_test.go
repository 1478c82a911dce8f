package xsystem

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xguard/pkg/core/xbase"
	"github.com/omeyang/xguard/pkg/core/xstat"
)

type slotFixture struct {
	manager *RuleManager
	storage *xstat.NodeStorage
	slot    *AdaptiveSlot
}

func newSlotFixture(t *testing.T) *slotFixture {
	t.Helper()
	m := NewRuleManager(slog.Default())
	storage := xstat.NewNodeStorage()
	s, err := NewAdaptiveSlot(m, nil, storage)
	require.NoError(t, err)
	return &slotFixture{manager: m, storage: storage, slot: s}
}

func newInboundContext() *xbase.EntryContext {
	ctx := xbase.NewEntryContext()
	ctx.Resource = xbase.NewResourceWrapper("api", xbase.Inbound)
	return ctx
}

func TestNewAdaptiveSlotValidation(t *testing.T) {
	storage := xstat.NewNodeStorage()
	_, err := NewAdaptiveSlot(nil, nil, storage)
	assert.ErrorIs(t, err, ErrNilManager)
	_, err = NewAdaptiveSlot(NewRuleManager(slog.Default()), nil, nil)
	assert.ErrorIs(t, err, ErrNilStorage)

	s, err := NewAdaptiveSlot(NewRuleManager(slog.Default()), nil, storage)
	require.NoError(t, err)
	assert.Equal(t, RuleCheckSlotOrder, s.Order())
}

func TestAdaptiveSlotOutboundBypasses(t *testing.T) {
	f := newSlotFixture(t)
	require.NoError(t, f.manager.LoadRules([]*Rule{
		{MetricType: Concurrency, TriggerCount: 0},
	}))

	ctx := xbase.NewEntryContext()
	ctx.Resource = xbase.NewResourceWrapper("downstream", xbase.Outbound)
	r := f.slot.Check(ctx)
	require.NotNil(t, r)
	assert.True(t, r.IsPass())
}

func TestAdaptiveSlotInboundQPS(t *testing.T) {
	f := newSlotFixture(t)
	require.NoError(t, f.manager.LoadRules([]*Rule{
		{MetricType: InboundQPS, TriggerCount: 10},
	}))

	r := f.slot.Check(newInboundContext())
	assert.True(t, r.IsPass())

	f.storage.InboundNode().AddCount(xbase.MetricEventPass, 10)
	r = f.slot.Check(newInboundContext())
	require.True(t, r.IsBlocked())
	assert.Equal(t, xbase.BlockTypeSystem, r.BlockError().BlockType())
}

func TestAdaptiveSlotConcurrency(t *testing.T) {
	f := newSlotFixture(t)
	require.NoError(t, f.manager.LoadRules([]*Rule{
		{MetricType: Concurrency, TriggerCount: 2},
	}))

	inbound := f.storage.InboundNode()
	inbound.IncreaseConcurrency()
	assert.True(t, f.slot.Check(newInboundContext()).IsPass())

	inbound.IncreaseConcurrency()
	assert.True(t, f.slot.Check(newInboundContext()).IsBlocked())

	inbound.DecreaseConcurrency()
	assert.True(t, f.slot.Check(newInboundContext()).IsPass())
}

func TestAdaptiveSlotAvgRT(t *testing.T) {
	f := newSlotFixture(t)
	require.NoError(t, f.manager.LoadRules([]*Rule{
		{MetricType: AvgRT, TriggerCount: 50},
	}))

	inbound := f.storage.InboundNode()
	inbound.AddCount(xbase.MetricEventComplete, 2)
	inbound.AddCount(xbase.MetricEventRt, 60)
	// 平均 30ms，未越线。
	assert.True(t, f.slot.Check(newInboundContext()).IsPass())

	inbound.AddCount(xbase.MetricEventRt, 140)
	// 平均 100ms，越线。
	assert.True(t, f.slot.Check(newInboundContext()).IsBlocked())
}

func TestAdaptiveSlotDegradedWithoutCollector(t *testing.T) {
	// 未注入采集器时 Load 与 CpuUsage 维度降级跳过，不会误拦截。
	f := newSlotFixture(t)
	require.NoError(t, f.manager.LoadRules([]*Rule{
		{MetricType: Load, TriggerCount: 0},
		{MetricType: CpuUsage, TriggerCount: 0},
	}))
	assert.True(t, f.slot.Check(newInboundContext()).IsPass())
}

func TestAllowByBbr(t *testing.T) {
	f := newSlotFixture(t)
	inbound := f.storage.InboundNode()
	rule := &Rule{MetricType: Load, TriggerCount: 1, Strategy: BBR}

	t.Run("NoAdaptive 不放行", func(t *testing.T) {
		plain := &Rule{MetricType: Load, TriggerCount: 1}
		assert.False(t, f.slot.allowByBbr(plain, inbound))
	})

	t.Run("低并发总是放行", func(t *testing.T) {
		assert.True(t, f.slot.allowByBbr(rule, inbound))
	})

	t.Run("并发超出估算容量不放行", func(t *testing.T) {
		// 无任何完结样本时估算容量为 0。
		inbound.IncreaseConcurrency()
		inbound.IncreaseConcurrency()
		defer func() {
			inbound.DecreaseConcurrency()
			inbound.DecreaseConcurrency()
		}()
		assert.False(t, f.slot.allowByBbr(rule, inbound))
	})
}
