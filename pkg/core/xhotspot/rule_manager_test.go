package xhotspot

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleManagerLoadRulesAllOrNothing(t *testing.T) {
	m := NewRuleManager(slog.Default())
	require.NoError(t, m.LoadRules([]*Rule{
		{Resource: "a", MetricType: Concurrency, ParamIndex: 0, Threshold: 10},
	}))
	require.Len(t, m.GetRules(), 1)

	err := m.LoadRules([]*Rule{
		{Resource: "b", MetricType: Concurrency, ParamIndex: 0, Threshold: 10},
		{Resource: "c", MetricType: QPS, ParamIndex: 0, Threshold: 10}, // 缺 DurationInSec
	})
	require.Error(t, err)
	rules := m.GetRules()
	require.Len(t, rules, 1)
	assert.Equal(t, "a", rules[0].Resource)
	assert.Empty(t, m.getControllers("b"))
}

func TestRuleManagerReuse(t *testing.T) {
	m := NewRuleManager(slog.Default())
	require.NoError(t, m.LoadRules([]*Rule{
		{Resource: "a", MetricType: QPS, ParamIndex: 0, Threshold: 10, DurationInSec: 1},
	}))
	before := m.getControllers("a")
	require.Len(t, before, 1)

	t.Run("等价规则整体复用", func(t *testing.T) {
		require.NoError(t, m.LoadRules([]*Rule{
			{ID: "renamed", Resource: "a", MetricType: QPS, ParamIndex: 0, Threshold: 10, DurationInSec: 1},
		}))
		after := m.getControllers("a")
		require.Len(t, after, 1)
		assert.Same(t, before[0], after[0])
	})

	t.Run("阈值变化复用计数器重建控制器", func(t *testing.T) {
		require.NoError(t, m.LoadRules([]*Rule{
			{Resource: "a", MetricType: QPS, ParamIndex: 0, Threshold: 20, DurationInSec: 1},
		}))
		after := m.getControllers("a")
		require.Len(t, after, 1)
		assert.NotSame(t, before[0], after[0])
		assert.Same(t, before[0].BoundMetric(), after[0].BoundMetric())
	})

	t.Run("下标变化全部重建", func(t *testing.T) {
		require.NoError(t, m.LoadRules([]*Rule{
			{Resource: "a", MetricType: QPS, ParamIndex: 1, Threshold: 20, DurationInSec: 1},
		}))
		after := m.getControllers("a")
		require.Len(t, after, 1)
		assert.NotSame(t, before[0].BoundMetric(), after[0].BoundMetric())
	})
}

func TestRuleManagerClearRules(t *testing.T) {
	m := NewRuleManager(slog.Default())
	require.NoError(t, m.LoadRules([]*Rule{
		{Resource: "a", MetricType: Concurrency, ParamIndex: 0, Threshold: 10},
	}))
	m.ClearRules()
	assert.Empty(t, m.GetRules())
	assert.Empty(t, m.getControllers("a"))
}
