package xbase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPrepareSlot struct {
	order uint32
	log   *[]string
	name  string
}

func (s *recordingPrepareSlot) Order() uint32 { return s.order }
func (s *recordingPrepareSlot) Prepare(_ *EntryContext) {
	*s.log = append(*s.log, s.name)
}

type fakeCheckSlot struct {
	order uint32
	log   *[]string
	name  string
	block bool
	panic bool
}

func (s *fakeCheckSlot) Order() uint32 { return s.order }
func (s *fakeCheckSlot) Check(ctx *EntryContext) *TokenResult {
	*s.log = append(*s.log, s.name)
	if s.panic {
		panic("slot defect")
	}
	if s.block {
		ctx.RuleCheckResult.ResetToBlocked(BlockTypeFlow)
	}
	return ctx.RuleCheckResult
}

type recordingStatSlot struct {
	order   uint32
	log     *[]string
	name    string
	passed  int
	blocked int
	done    int
}

func (s *recordingStatSlot) Order() uint32 { return s.order }
func (s *recordingStatSlot) OnEntryPassed(_ *EntryContext) {
	s.passed++
	*s.log = append(*s.log, s.name+":pass")
}
func (s *recordingStatSlot) OnEntryBlocked(_ *EntryContext, _ *BlockError) {
	s.blocked++
	*s.log = append(*s.log, s.name+":block")
}
func (s *recordingStatSlot) OnCompleted(_ *EntryContext) {
	s.done++
	*s.log = append(*s.log, s.name+":done")
}

func newChainContext() *EntryContext {
	ctx := NewEntryContext()
	ctx.Resource = NewResourceWrapper("chain-res", Inbound)
	return ctx
}

func TestSlotChainOrdering(t *testing.T) {
	// 插槽按声明的 Order 排序执行，与注册顺序无关。
	var log []string
	sc := NewSlotChain(nil)
	sc.AddRuleCheckSlot(&fakeCheckSlot{order: 3000, log: &log, name: "c3000"})
	sc.AddRuleCheckSlot(&fakeCheckSlot{order: 2000, log: &log, name: "c2000"})
	sc.AddStatPrepareSlot(&recordingPrepareSlot{order: 1000, log: &log, name: "p1000"})

	result := sc.Entry(newChainContext())
	require.True(t, result.IsPass())
	assert.Equal(t, []string{"p1000", "c2000", "c3000"}, log)
}

func TestSlotChainBlockShortCircuit(t *testing.T) {
	var log []string
	sc := NewSlotChain(nil)
	sc.AddRuleCheckSlot(&fakeCheckSlot{order: 2000, log: &log, name: "blocker", block: true})
	sc.AddRuleCheckSlot(&fakeCheckSlot{order: 3000, log: &log, name: "after"})
	stat := &recordingStatSlot{order: 1000, log: &log, name: "stat"}
	sc.AddStatSlot(stat)

	ctx := newChainContext()
	result := sc.Entry(ctx)

	require.True(t, result.IsBlocked())
	assert.NotContains(t, log, "after")
	assert.Equal(t, 1, stat.blocked)
	assert.Equal(t, 0, stat.passed)

	// 拦截的调用没有出口统计。
	sc.Exit(ctx)
	assert.Equal(t, 0, stat.done)
}

func TestSlotChainExitReverseOrder(t *testing.T) {
	var log []string
	sc := NewSlotChain(nil)
	first := &recordingStatSlot{order: 1000, log: &log, name: "s1"}
	second := &recordingStatSlot{order: 2000, log: &log, name: "s2"}
	sc.AddStatSlot(first)
	sc.AddStatSlot(second)

	ctx := newChainContext()
	require.True(t, sc.Entry(ctx).IsPass())
	sc.Exit(ctx)

	assert.Equal(t, []string{"s1:pass", "s2:pass", "s2:done", "s1:done"}, log)
}

func TestSlotChainPanicFailsOpen(t *testing.T) {
	// 插槽缺陷不拦截业务流量。
	var log []string
	sc := NewSlotChain(nil)
	sc.AddRuleCheckSlot(&fakeCheckSlot{order: 2000, log: &log, name: "boom", panic: true})

	ctx := newChainContext()
	result := sc.Entry(ctx)
	require.NotNil(t, result)
	assert.True(t, result.IsPass())
}
