package xstat

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xguard/pkg/core/xbase"
)

func TestBaseStatNodeWritesBothWindows(t *testing.T) {
	n := NewBaseStatNode()
	n.AddCount(xbase.MetricEventPass, 7)

	// 秒级速率与分钟级总量来自两个独立窗口。
	assert.InDelta(t, 7.0, n.GetQPS(xbase.MetricEventPass), 1e-9)
	assert.Equal(t, int64(7), n.GetSum(xbase.MetricEventPass))
	assert.Equal(t, int64(7), n.GetMaxOfSingleBucket(xbase.MetricEventPass))
}

func TestBaseStatNodeConcurrency(t *testing.T) {
	n := NewBaseStatNode()

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n.IncreaseConcurrency()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(workers), n.CurrentConcurrency())

	for i := 0; i < workers; i++ {
		n.DecreaseConcurrency()
	}
	assert.Zero(t, n.CurrentConcurrency())
}

func TestGenerateReadStat(t *testing.T) {
	n := NewBaseStatNode()

	t.Run("default view reused", func(t *testing.T) {
		rs, err := n.GenerateReadStat(DefaultSampleCount, DefaultIntervalMs)
		require.NoError(t, err)
		assert.Same(t, n.metric, rs)
	})

	t.Run("custom aligned view", func(t *testing.T) {
		rs, err := n.GenerateReadStat(4, 2000)
		require.NoError(t, err)
		require.NotNil(t, rs)

		n.AddCount(xbase.MetricEventPass, 3)
		assert.Equal(t, int64(3), rs.GetSum(xbase.MetricEventPass))
	})

	t.Run("misaligned view rejected", func(t *testing.T) {
		_, err := n.GenerateReadStat(8, 2000)
		assert.ErrorIs(t, err, ErrWindowNotAligned)
	})
}

func TestNodeStorage(t *testing.T) {
	s := NewNodeStorage()

	t.Run("get before create", func(t *testing.T) {
		assert.Nil(t, s.GetNode("absent"))
	})

	t.Run("create is idempotent", func(t *testing.T) {
		n1 := s.GetOrCreateNode("res-a")
		n2 := s.GetOrCreateNode("res-a")
		assert.Same(t, n1, n2)
		assert.Equal(t, "res-a", n1.ResourceName())
	})

	t.Run("concurrent create single instance", func(t *testing.T) {
		const workers = 16
		nodes := make([]*ResourceNode, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				nodes[idx] = s.GetOrCreateNode("res-b")
			}(i)
		}
		wg.Wait()
		for i := 1; i < workers; i++ {
			assert.Same(t, nodes[0], nodes[i])
		}
	})

	t.Run("inbound node is stable", func(t *testing.T) {
		assert.Same(t, s.InboundNode(), s.InboundNode())
	})

	t.Run("resource names sorted", func(t *testing.T) {
		s.GetOrCreateNode("zz")
		s.GetOrCreateNode("aa")
		names := s.ResourceNames()
		require.GreaterOrEqual(t, len(names), 2)
		assert.IsNonDecreasing(t, names)
	})
}
