package xstat

import (
	"github.com/omeyang/xguard/pkg/core/xbase"
	"github.com/omeyang/xguard/pkg/util/xtime"
)

// BucketLeapArray 以 MetricBucket 为负载的读写滑动窗口，
// 是资源统计节点与流控独立统计的存储层。
type BucketLeapArray struct {
	data *LeapArray
}

var _ BucketGenerator = (*BucketLeapArray)(nil)

// NewBucketLeapArray 创建指标滑动窗口。
func NewBucketLeapArray(sampleCount, intervalInMs uint32) (*BucketLeapArray, error) {
	bla := &BucketLeapArray{}
	la, err := NewLeapArray(sampleCount, intervalInMs, bla)
	if err != nil {
		return nil, err
	}
	bla.data = la
	return bla, nil
}

// NewEmptyBucket 实现 BucketGenerator。
func (bla *BucketLeapArray) NewEmptyBucket() any {
	return NewMetricBucket()
}

// ResetBucketTo 实现 BucketGenerator：换入全新空桶。
func (bla *BucketLeapArray) ResetBucketTo(bw *BucketWrap, startTime uint64) *BucketWrap {
	bw.BucketStart.Store(startTime)
	bw.Value.Store(NewMetricBucket())
	return bw
}

// BucketLengthInMs 返回桶宽（毫秒）。
func (bla *BucketLeapArray) BucketLengthInMs() uint32 {
	return bla.data.BucketLengthInMs()
}

// SampleCount 返回桶数。
func (bla *BucketLeapArray) SampleCount() uint32 {
	return bla.data.SampleCount()
}

// IntervalInMs 返回窗口跨度（毫秒）。
func (bla *BucketLeapArray) IntervalInMs() uint32 {
	return bla.data.IntervalInMs()
}

// AddCount 向当前桶累加事件计数。
func (bla *BucketLeapArray) AddCount(event xbase.MetricEvent, count int64) {
	bla.addCountWithTime(xtime.CurrentTimeMillis(), event, count)
}

// addCountWithTime 指定时刻累加；时钟回拨时丢弃本次计数。
// 回拨窗口内的计数无处可记（目标区间在历史里），丢弃优于污染现窗口。
func (bla *BucketLeapArray) addCountWithTime(now uint64, event xbase.MetricEvent, count int64) {
	bw, err := bla.data.currentBucketOfTime(now, bla)
	if err != nil {
		return
	}
	mb, ok := bw.Value.Load().(*MetricBucket)
	if !ok {
		return
	}
	mb.Add(event, count)
}

// Count 返回事件在当前窗口内的总计数。
func (bla *BucketLeapArray) Count(event xbase.MetricEvent) int64 {
	return bla.CountWithTime(xtime.CurrentTimeMillis(), event)
}

// CountWithTime 返回事件在 now 时刻窗口内的总计数。
func (bla *BucketLeapArray) CountWithTime(now uint64, event xbase.MetricEvent) int64 {
	var sum int64
	for _, bw := range bla.data.Values(now) {
		mb, ok := bw.Value.Load().(*MetricBucket)
		if !ok {
			continue
		}
		sum += mb.Get(event)
	}
	return sum
}

// Values 返回 now 时刻窗口内的有效桶。
func (bla *BucketLeapArray) Values(now uint64) []*BucketWrap {
	return bla.data.Values(now)
}

// ValuesConditional 带起始时刻谓词的有效桶筛选。
func (bla *BucketLeapArray) ValuesConditional(now uint64, predicate func(bucketStart uint64) bool) []*BucketWrap {
	return bla.data.ValuesConditional(now, predicate)
}
