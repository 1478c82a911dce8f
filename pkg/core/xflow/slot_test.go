package xflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xguard/pkg/core/xbase"
)

func newTestContext(m *RuleManager, resource string) *xbase.EntryContext {
	ctx := xbase.NewEntryContext()
	ctx.Resource = xbase.NewResourceWrapper(resource, xbase.Inbound)
	ctx.StatNode = m.storage.GetOrCreateNode(resource)
	return ctx
}

func TestNewSlotValidation(t *testing.T) {
	_, err := NewSlot(nil)
	assert.ErrorIs(t, err, ErrNilManager)

	s, err := NewSlot(newTestManager(t))
	require.NoError(t, err)
	assert.Equal(t, RuleCheckSlotOrder, s.Order())
}

func TestSlotCheckNoRulesPasses(t *testing.T) {
	m := newTestManager(t)
	s, err := NewSlot(m)
	require.NoError(t, err)

	ctx := newTestContext(m, "unguarded")
	r := s.Check(ctx)
	require.NotNil(t, r)
	assert.True(t, r.IsPass())
}

func TestSlotCheckBlocks(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.LoadRules([]*Rule{
		{Resource: "api", MetricType: QPS, Threshold: 2},
	}))
	s, err := NewSlot(m)
	require.NoError(t, err)

	ctx := newTestContext(m, "api")
	node := ctx.StatNode
	node.AddCount(xbase.MetricEventPass, 2)

	r := s.Check(ctx)
	require.NotNil(t, r)
	assert.True(t, r.IsBlocked())
	require.NotNil(t, r.BlockError())
	assert.Equal(t, xbase.BlockTypeFlow, r.BlockError().BlockType())
}

func TestSlotCheckShouldWaitKeepsMax(t *testing.T) {
	m := newTestManager(t)
	// 两条匀速规则：10/s 与 5/s，排队时取间隔更长者的建议等待。
	require.NoError(t, m.LoadRules([]*Rule{
		{Resource: "api", MetricType: QPS, ControlBehavior: Throttling, Threshold: 10, MaxQueueingTimeMs: 1000},
		{Resource: "api", MetricType: QPS, ControlBehavior: Throttling, Threshold: 5, MaxQueueingTimeMs: 1000},
	}))
	s, err := NewSlot(m)
	require.NoError(t, err)

	first := newTestContext(m, "api")
	r := s.Check(first)
	require.NotNil(t, r)
	assert.True(t, r.IsPass())

	second := newTestContext(m, "api")
	r = s.Check(second)
	require.NotNil(t, r)
	require.Equal(t, xbase.ResultStatusShouldWait, r.Status())
	// 5/s 规则的 200ms 间隔占主导。
	assert.Greater(t, r.WaitMs(), uint64(100))
	assert.LessOrEqual(t, r.WaitMs(), uint64(200))
}

func TestSlotCheckEmptyResourceName(t *testing.T) {
	m := newTestManager(t)
	s, err := NewSlot(m)
	require.NoError(t, err)

	ctx := xbase.NewEntryContext()
	ctx.Resource = xbase.NewResourceWrapper("", xbase.Inbound)
	r := s.Check(ctx)
	require.NotNil(t, r)
	assert.True(t, r.IsPass())
}
