package xstat

import (
	"math"

	"github.com/omeyang/xguard/pkg/core/xbase"
	"github.com/omeyang/xguard/pkg/util/xtime"
)

// SlidingWindowMetric 底层 BucketLeapArray 之上的只读聚合视图。
// 视图有自己的 (sampleCount, intervalInMs)，跨度不得细于底层桶宽、
// 不得超过底层窗口；同一底层窗口可以派生多个跨度不同的视图
// （秒级 QPS 视图与分钟级总量视图共用一份桶数据）。
type SlidingWindowMetric struct {
	sampleCount  uint32
	intervalInMs uint32
	real         *BucketLeapArray
}

var _ xbase.ReadStat = (*SlidingWindowMetric)(nil)

// NewSlidingWindowMetric 创建只读视图并校验与底层窗口的对齐关系。
func NewSlidingWindowMetric(sampleCount, intervalInMs uint32, real *BucketLeapArray) (*SlidingWindowMetric, error) {
	if real == nil {
		return nil, ErrWindowNotAligned
	}
	if sampleCount == 0 {
		return nil, ErrInvalidSampleCount
	}
	if intervalInMs == 0 || intervalInMs%sampleCount != 0 {
		return nil, ErrInvalidInterval
	}
	bucketLength := intervalInMs / sampleCount
	parentBucketLength := real.BucketLengthInMs()
	if bucketLength%parentBucketLength != 0 || intervalInMs > real.IntervalInMs() {
		return nil, ErrWindowNotAligned
	}
	return &SlidingWindowMetric{
		sampleCount:  sampleCount,
		intervalInMs: intervalInMs,
		real:         real,
	}, nil
}

// IntervalInMs 返回视图跨度（毫秒）。
func (m *SlidingWindowMetric) IntervalInMs() uint32 {
	return m.intervalInMs
}

// getBucketStartRange 返回视图窗口覆盖的底层桶起始时刻闭区间。
func (m *SlidingWindowMetric) getBucketStartRange(now uint64) (start, end uint64) {
	parentBucketLength := m.real.BucketLengthInMs()
	end = calculateStartTime(now, parentBucketLength)
	start = end - uint64(m.intervalInMs) + uint64(parentBucketLength)
	return start, end
}

func (m *SlidingWindowMetric) sumWithTime(now uint64, event xbase.MetricEvent) int64 {
	start, end := m.getBucketStartRange(now)
	var sum int64
	for _, bw := range m.real.ValuesConditional(now, func(ws uint64) bool {
		return ws >= start && ws <= end
	}) {
		mb, ok := bw.Value.Load().(*MetricBucket)
		if !ok {
			continue
		}
		sum += mb.Get(event)
	}
	return sum
}

// GetSum 实现 xbase.ReadStat。
func (m *SlidingWindowMetric) GetSum(event xbase.MetricEvent) int64 {
	return m.sumWithTime(xtime.CurrentTimeMillis(), event)
}

// GetQPS 实现 xbase.ReadStat：当前窗口的每秒速率。
func (m *SlidingWindowMetric) GetQPS(event xbase.MetricEvent) float64 {
	return m.getQPSWithTime(xtime.CurrentTimeMillis(), event)
}

func (m *SlidingWindowMetric) getQPSWithTime(now uint64, event xbase.MetricEvent) float64 {
	return float64(m.sumWithTime(now, event)) / m.intervalInSecond()
}

// GetPreviousQPS 实现 xbase.ReadStat：上一个底层桶折算的每秒速率。
// 预热流控需要"刚刚过去"的稳定通过速率，而当前桶尚在填充中。
func (m *SlidingWindowMetric) GetPreviousQPS(event xbase.MetricEvent) float64 {
	now := xtime.CurrentTimeMillis()
	parentBucketLength := m.real.BucketLengthInMs()
	prevStart := calculateStartTime(now, parentBucketLength) - uint64(parentBucketLength)
	var sum int64
	for _, bw := range m.real.ValuesConditional(now, func(ws uint64) bool {
		return ws == prevStart
	}) {
		mb, ok := bw.Value.Load().(*MetricBucket)
		if !ok {
			continue
		}
		sum += mb.Get(event)
	}
	return float64(sum) * 1000.0 / float64(parentBucketLength)
}

// GetMaxOfSingleBucket 实现 xbase.ReadStat：窗口内单桶最大计数。
func (m *SlidingWindowMetric) GetMaxOfSingleBucket(event xbase.MetricEvent) int64 {
	now := xtime.CurrentTimeMillis()
	start, end := m.getBucketStartRange(now)
	var maxCount int64
	for _, bw := range m.real.ValuesConditional(now, func(ws uint64) bool {
		return ws >= start && ws <= end
	}) {
		mb, ok := bw.Value.Load().(*MetricBucket)
		if !ok {
			continue
		}
		if c := mb.Get(event); c > maxCount {
			maxCount = c
		}
	}
	return maxCount
}

// MinRT 实现 xbase.ReadStat：窗口内最小响应时间（毫秒）。
// 窗口内没有完结调用时返回 math.MaxFloat64。
func (m *SlidingWindowMetric) MinRT() float64 {
	now := xtime.CurrentTimeMillis()
	start, end := m.getBucketStartRange(now)
	minRt := int64(math.MaxInt64)
	for _, bw := range m.real.ValuesConditional(now, func(ws uint64) bool {
		return ws >= start && ws <= end
	}) {
		mb, ok := bw.Value.Load().(*MetricBucket)
		if !ok {
			continue
		}
		if r := mb.MinRt(); r < minRt {
			minRt = r
		}
	}
	if minRt == math.MaxInt64 {
		return math.MaxFloat64
	}
	return float64(minRt)
}

// AvgRT 实现 xbase.ReadStat：窗口内平均响应时间（毫秒）。
func (m *SlidingWindowMetric) AvgRT() float64 {
	now := xtime.CurrentTimeMillis()
	complete := m.sumWithTime(now, xbase.MetricEventComplete)
	if complete <= 0 {
		return 0
	}
	return float64(m.sumWithTime(now, xbase.MetricEventRt)) / float64(complete)
}

func (m *SlidingWindowMetric) intervalInSecond() float64 {
	return float64(m.intervalInMs) / 1000.0
}
