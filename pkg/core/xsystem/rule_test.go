package xsystem

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRule(t *testing.T) {
	cases := []struct {
		name    string
		rule    *Rule
		wantErr bool
	}{
		{"nil rule", nil, true},
		{"unknown metric type", &Rule{MetricType: MetricType(99), TriggerCount: 1}, true},
		{"negative trigger count", &Rule{MetricType: Load, TriggerCount: -1}, true},
		{"cpu usage above one", &Rule{MetricType: CpuUsage, TriggerCount: 1.5}, true},
		{"bbr on qps", &Rule{MetricType: InboundQPS, TriggerCount: 100, Strategy: BBR}, true},
		{"bbr on load", &Rule{MetricType: Load, TriggerCount: 8, Strategy: BBR}, false},
		{"bbr on cpu", &Rule{MetricType: CpuUsage, TriggerCount: 0.8, Strategy: BBR}, false},
		{"plain qps", &Rule{MetricType: InboundQPS, TriggerCount: 100}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateRule(tc.rule)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRuleManagerKeepsStrictestPerMetric(t *testing.T) {
	m := NewRuleManager(slog.Default())
	require.NoError(t, m.LoadRules([]*Rule{
		{MetricType: InboundQPS, TriggerCount: 200},
		{MetricType: InboundQPS, TriggerCount: 100},
		{MetricType: InboundQPS, TriggerCount: 300},
		{MetricType: Load, TriggerCount: 8},
	}))

	r := m.getRuleOf(InboundQPS)
	require.NotNil(t, r)
	assert.InDelta(t, 100.0, r.TriggerCount, 0.001)

	r = m.getRuleOf(Load)
	require.NotNil(t, r)
	assert.InDelta(t, 8.0, r.TriggerCount, 0.001)

	assert.Nil(t, m.getRuleOf(Concurrency))
	assert.Len(t, m.GetRules(), 2)
}

func TestRuleManagerAllOrNothing(t *testing.T) {
	m := NewRuleManager(slog.Default())
	require.NoError(t, m.LoadRules([]*Rule{
		{MetricType: InboundQPS, TriggerCount: 100},
	}))

	err := m.LoadRules([]*Rule{
		{MetricType: Load, TriggerCount: 8},
		{MetricType: CpuUsage, TriggerCount: 2.0},
	})
	require.Error(t, err)
	require.NotNil(t, m.getRuleOf(InboundQPS))
	assert.Nil(t, m.getRuleOf(Load))
}

func TestRuleManagerClear(t *testing.T) {
	m := NewRuleManager(slog.Default())
	require.NoError(t, m.LoadRules([]*Rule{
		{MetricType: InboundQPS, TriggerCount: 100},
	}))
	m.ClearRules()
	assert.Empty(t, m.GetRules())
	assert.Nil(t, m.getRuleOf(InboundQPS))
}
