package xguard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xguard/pkg/core/xbase"
	"github.com/omeyang/xguard/pkg/core/xcircuit"
	"github.com/omeyang/xguard/pkg/core/xflow"
	"github.com/omeyang/xguard/pkg/core/xhotspot"
	"github.com/omeyang/xguard/pkg/core/xsystem"
)

func newGuard(t *testing.T, opts ...Option) *Guard {
	t.Helper()
	g, err := New(opts...)
	require.NoError(t, err)
	return g
}

func TestEntryEmptyResource(t *testing.T) {
	g := newGuard(t)
	e, blockErr := g.Entry("")
	assert.Nil(t, e)
	require.NotNil(t, blockErr)
	assert.Equal(t, xbase.BlockTypeUnknown, blockErr.BlockType())
}

func TestEntryWithoutRulesPasses(t *testing.T) {
	g := newGuard(t)
	e, blockErr := g.Entry("api")
	require.Nil(t, blockErr)
	require.NotNil(t, e)
	require.NoError(t, e.Exit())

	snap, ok := g.Snapshot("api")
	require.True(t, ok)
	assert.Equal(t, int64(1), snap.MinutePass)
	assert.Equal(t, int64(1), snap.MinuteComplete)
	assert.Equal(t, int32(0), snap.Concurrency)
}

func TestEntryFlowControlEndToEnd(t *testing.T) {
	g := newGuard(t)
	require.NoError(t, g.LoadFlowRules([]*xflow.Rule{
		{Resource: "api", MetricType: xflow.QPS, Threshold: 10},
	}))

	passed, blocked := 0, 0
	for i := 0; i < 15; i++ {
		e, blockErr := g.Entry("api")
		if blockErr != nil {
			blocked++
			assert.Equal(t, xbase.BlockTypeFlow, blockErr.BlockType())
			continue
		}
		passed++
		require.NoError(t, e.Exit())
	}
	assert.Equal(t, 10, passed)
	assert.Equal(t, 5, blocked)

	snap, ok := g.Snapshot("api")
	require.True(t, ok)
	assert.Equal(t, int64(10), snap.MinutePass)
	assert.Equal(t, int64(5), snap.MinuteBlock)
}

func TestEntryConcurrencyTracking(t *testing.T) {
	g := newGuard(t)
	e1, blockErr := g.Entry("api")
	require.Nil(t, blockErr)
	e2, blockErr := g.Entry("api")
	require.Nil(t, blockErr)

	snap, ok := g.Snapshot("api")
	require.True(t, ok)
	assert.Equal(t, int32(2), snap.Concurrency)

	require.NoError(t, e1.Exit())
	require.NoError(t, e2.Exit())
	snap, _ = g.Snapshot("api")
	assert.Equal(t, int32(0), snap.Concurrency)
}

func TestEntryCircuitBreakerEndToEnd(t *testing.T) {
	g := newGuard(t)
	require.NoError(t, g.LoadCircuitRules([]*xcircuit.Rule{{
		Resource:         "api",
		Strategy:         xcircuit.ErrorCount,
		RetryTimeoutMs:   60_000,
		MinRequestAmount: 1,
		StatIntervalMs:   10_000,
		Threshold:        2,
	}}))

	fail := func() {
		e, blockErr := g.Entry("api")
		require.Nil(t, blockErr)
		require.NoError(t, e.Exit(xbase.WithExitError(errors.New("downstream failed"))))
	}
	fail()
	fail()

	_, blockErr := g.Entry("api")
	require.NotNil(t, blockErr)
	assert.Equal(t, xbase.BlockTypeCircuitBreaking, blockErr.BlockType())
}

func TestEntryHotSpotEndToEnd(t *testing.T) {
	g := newGuard(t)
	require.NoError(t, g.LoadHotSpotRules([]*xhotspot.Rule{{
		Resource:      "api",
		MetricType:    xhotspot.QPS,
		ParamIndex:    0,
		Threshold:     1,
		DurationInSec: 60,
	}}))

	e, blockErr := g.Entry("api", WithArgs("hot"))
	require.Nil(t, blockErr)
	require.NoError(t, e.Exit())

	_, blockErr = g.Entry("api", WithArgs("hot"))
	require.NotNil(t, blockErr)
	assert.Equal(t, xbase.BlockTypeHotSpotParam, blockErr.BlockType())
	assert.Equal(t, "hot", blockErr.TriggeredValue())

	// 其他参数值不受影响；不携带参数的调用不受规则约束。
	e, blockErr = g.Entry("api", WithArgs("cold"))
	require.Nil(t, blockErr)
	require.NoError(t, e.Exit())
	e, blockErr = g.Entry("api")
	require.Nil(t, blockErr)
	require.NoError(t, e.Exit())
}

func TestEntrySystemRuleOnlyInbound(t *testing.T) {
	g := newGuard(t)
	require.NoError(t, g.LoadSystemRules([]*xsystem.Rule{
		{MetricType: xsystem.Concurrency, TriggerCount: 1},
	}))

	// 出站流量不受系统保护约束。
	e, blockErr := g.Entry("downstream")
	require.Nil(t, blockErr)
	defer func() { _ = e.Exit() }()

	// 入站流量越线拦截：并发 1 >= 水位线 1。
	in, blockErr := g.Entry("api", WithTrafficType(xbase.Inbound))
	require.Nil(t, blockErr)
	_, blockErr2 := g.Entry("api", WithTrafficType(xbase.Inbound))
	require.NotNil(t, blockErr2)
	assert.Equal(t, xbase.BlockTypeSystem, blockErr2.BlockType())
	require.NoError(t, in.Exit())
}

func TestEntryBatchCount(t *testing.T) {
	g := newGuard(t)
	require.NoError(t, g.LoadFlowRules([]*xflow.Rule{
		{Resource: "api", MetricType: xflow.QPS, Threshold: 10},
	}))

	e, blockErr := g.Entry("api", WithBatchCount(8))
	require.Nil(t, blockErr)
	require.NoError(t, e.Exit())

	// 剩余额度 2，批量 5 放不下。
	_, blockErr = g.Entry("api", WithBatchCount(5))
	require.NotNil(t, blockErr)

	e, blockErr = g.Entry("api", WithBatchCount(2))
	require.Nil(t, blockErr)
	require.NoError(t, e.Exit())
}

func TestRuleAccessors(t *testing.T) {
	g := newGuard(t)
	require.NoError(t, g.LoadFlowRules([]*xflow.Rule{
		{Resource: "a", MetricType: xflow.QPS, Threshold: 10},
	}))
	require.NoError(t, g.LoadSystemRules([]*xsystem.Rule{
		{MetricType: xsystem.Load, TriggerCount: 8},
	}))

	assert.Len(t, g.FlowRules(), 1)
	assert.Len(t, g.SystemRules(), 1)
	assert.Empty(t, g.CircuitRules())
	assert.Empty(t, g.HotSpotRules())
	assert.NotNil(t, g.NodeStorage())
	assert.NotNil(t, g.Logger())
}

func TestSnapshots(t *testing.T) {
	g := newGuard(t)
	for _, res := range []string{"b", "a", "c"} {
		e, blockErr := g.Entry(res)
		require.Nil(t, blockErr)
		require.NoError(t, e.Exit())
	}

	_, ok := g.Snapshot("never-seen")
	assert.False(t, ok)

	snaps := g.Snapshots()
	require.Len(t, snaps, 3)
	assert.Equal(t, "a", snaps[0].Resource)
	assert.Equal(t, "b", snaps[1].Resource)
	assert.Equal(t, "c", snaps[2].Resource)
}
