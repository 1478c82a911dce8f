package xstat

import (
	"math"
	"sync/atomic"

	"github.com/omeyang/xguard/pkg/core/xbase"
)

// MetricBucket 单个时间桶内的指标计数：按事件维度的原子计数器，
// 外加桶内最小响应时间。
type MetricBucket struct {
	counters [xbase.MetricEventTotal]atomic.Int64
	minRt    atomic.Int64
}

// NewMetricBucket 创建空桶负载。
func NewMetricBucket() *MetricBucket {
	mb := &MetricBucket{}
	mb.minRt.Store(math.MaxInt64)
	return mb
}

// Add 为事件累加计数。MetricEventRt 同时维护桶内最小响应时间。
func (mb *MetricBucket) Add(event xbase.MetricEvent, count int64) {
	if event < 0 || event >= xbase.MetricEventTotal {
		return
	}
	if event == xbase.MetricEventRt {
		mb.addRt(count)
		return
	}
	mb.counters[event].Add(count)
}

// addRt 累加响应时间并更新桶内最小值。
// 最小值的检查与写入之间存在良性竞争：并发写者可能短暂写入
// 略大的值，对分钟尺度的 BBR 估算无实质影响。
func (mb *MetricBucket) addRt(rt int64) {
	mb.counters[xbase.MetricEventRt].Add(rt)
	if rt < mb.minRt.Load() {
		mb.minRt.Store(rt)
	}
}

// Get 返回事件当前计数。
func (mb *MetricBucket) Get(event xbase.MetricEvent) int64 {
	if event < 0 || event >= xbase.MetricEventTotal {
		return 0
	}
	return mb.counters[event].Load()
}

// MinRt 返回桶内最小响应时间（毫秒）；桶内无完结调用时为 math.MaxInt64。
func (mb *MetricBucket) MinRt() int64 {
	return mb.minRt.Load()
}

// Reset 原子清零全部计数。
func (mb *MetricBucket) Reset() {
	for i := range mb.counters {
		mb.counters[i].Store(0)
	}
	mb.minRt.Store(math.MaxInt64)
}
