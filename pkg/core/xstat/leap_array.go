package xstat

import (
	"runtime"
	"sync/atomic"

	"github.com/omeyang/xguard/pkg/util/xtime"
)

// BucketWrap 环形数组中的一个时间桶。
// BucketStart 标记桶当前代表的对齐起始时刻（Unix 毫秒），
// Value 持有泛化的桶负载（由 BucketGenerator 决定具体类型）。
// 两个字段均原子访问，桶对象本身在数组构造后不再更换。
type BucketWrap struct {
	BucketStart atomic.Uint64
	Value       atomic.Value
}

// BucketGenerator 桶负载的生成与重置策略。
// 不同的统计（指标计数、熔断器错误计数、慢调用计数）以不同的
// 负载类型复用同一个 LeapArray。
type BucketGenerator interface {
	// NewEmptyBucket 创建空负载。
	NewEmptyBucket() any
	// ResetBucketTo 将桶重置为 startTime 起始的空桶。
	// 仅由赢得重置竞争的单个写者调用。
	ResetBucketTo(bw *BucketWrap, startTime uint64) *BucketWrap
}

// LeapArray 定长环形时间桶数组：sampleCount 个桶、桶宽 bucketLengthInMs，
// 总跨度 intervalInMs = sampleCount × bucketLengthInMs。
//
// 过期桶在首次触达时惰性重置，从不被后台清扫；因此某个桶在过期后、
// 下次触达前可能仍保留陈旧数据，Values 会按起始时刻将其排除。
type LeapArray struct {
	bucketLengthInMs uint32
	sampleCount      uint32
	intervalInMs     uint32
	array            []*BucketWrap
}

// NewLeapArray 创建环形数组并以当前时刻为基准预填各槽位的起始时刻。
// 要求 intervalInMs 能被 sampleCount 整除。
func NewLeapArray(sampleCount, intervalInMs uint32, bg BucketGenerator) (*LeapArray, error) {
	if sampleCount == 0 {
		return nil, ErrInvalidSampleCount
	}
	if intervalInMs == 0 || intervalInMs%sampleCount != 0 {
		return nil, ErrInvalidInterval
	}
	bucketLength := intervalInMs / sampleCount

	la := &LeapArray{
		bucketLengthInMs: bucketLength,
		sampleCount:      sampleCount,
		intervalInMs:     intervalInMs,
		array:            make([]*BucketWrap, sampleCount),
	}

	// 预填：每个槽位赋予映射到该槽的、不晚于当前时刻的最近对齐起始。
	// 这样首次访问当前桶无需走空桶初始化分支。
	now := xtime.CurrentTimeMillis()
	idx := la.calculateTimeIdx(now)
	curStart := calculateStartTime(now, bucketLength)
	n := int(sampleCount)
	for i := 0; i < n; i++ {
		bw := &BucketWrap{}
		offset := (idx - i + n) % n
		bw.BucketStart.Store(curStart - uint64(bucketLength)*uint64(offset))
		bw.Value.Store(bg.NewEmptyBucket())
		la.array[i] = bw
	}
	return la, nil
}

// BucketLengthInMs 返回桶宽（毫秒）。
func (la *LeapArray) BucketLengthInMs() uint32 {
	return la.bucketLengthInMs
}

// SampleCount 返回桶数。
func (la *LeapArray) SampleCount() uint32 {
	return la.sampleCount
}

// IntervalInMs 返回窗口总跨度（毫秒）。
func (la *LeapArray) IntervalInMs() uint32 {
	return la.intervalInMs
}

// calculateTimeIdx 桶下标：floor(now / 桶宽) mod 桶数。
func (la *LeapArray) calculateTimeIdx(now uint64) int {
	return int((now / uint64(la.bucketLengthInMs)) % uint64(la.sampleCount))
}

// calculateStartTime 对齐到桶宽的起始时刻。
func calculateStartTime(now uint64, bucketLengthInMs uint32) uint64 {
	return now - now%uint64(bucketLengthInMs)
}

// CurrentBucket 解析当前时刻对应的桶。
func (la *LeapArray) CurrentBucket(bg BucketGenerator) (*BucketWrap, error) {
	return la.currentBucketOfTime(xtime.CurrentTimeMillis(), bg)
}

// currentBucketOfTime 解析 now 对应的桶，需要时执行惰性重置。
//
// 重置竞争：同一槽位的并发写者对 BucketStart 做 CAS，唯一赢家调用
// ResetBucketTo，输家让出调度后重读；桶绝不会被重复重置。
func (la *LeapArray) currentBucketOfTime(now uint64, bg BucketGenerator) (*BucketWrap, error) {
	idx := la.calculateTimeIdx(now)
	windowStart := calculateStartTime(now, la.bucketLengthInMs)

	for {
		bw := la.array[idx]
		old := bw.BucketStart.Load()
		switch {
		case old == windowStart:
			// 桶即当前区间，直接使用。
			return bw, nil
		case old < windowStart:
			// 桶已过期，竞争重置权。
			if bw.BucketStart.CompareAndSwap(old, windowStart) {
				bg.ResetBucketTo(bw, windowStart)
				return bw, nil
			}
			runtime.Gosched()
		default:
			// old > windowStart：时钟回拨。
			return nil, ErrTimeBehindStart
		}
	}
}

// Values 返回 now 时刻窗口内所有仍然有效的桶。
// 起始时刻落在 (now-intervalInMs, now] 之外的桶（含未来桶）被排除，
// 即使它们尚未被物理重置。
func (la *LeapArray) Values(now uint64) []*BucketWrap {
	return la.ValuesConditional(now, func(uint64) bool { return true })
}

// ValuesConditional 在有效性过滤之上再按起始时刻做谓词筛选。
func (la *LeapArray) ValuesConditional(now uint64, predicate func(bucketStart uint64) bool) []*BucketWrap {
	ret := make([]*BucketWrap, 0, la.sampleCount)
	for _, bw := range la.array {
		start := bw.BucketStart.Load()
		if la.isBucketDeprecated(now, start) || !predicate(start) {
			continue
		}
		ret = append(ret, bw)
	}
	return ret
}

// isBucketDeprecated 桶是否已滑出 [now-intervalInMs, now] 窗口。
func (la *LeapArray) isBucketDeprecated(now, bucketStart uint64) bool {
	if bucketStart > now {
		return true
	}
	return now-bucketStart >= uint64(la.intervalInMs)
}
