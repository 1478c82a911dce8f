package xstat

import (
	"sync/atomic"

	"github.com/omeyang/xguard/pkg/core/xbase"
)

// 默认窗口参数。
const (
	// DefaultSampleCountTotal 细粒度窗口桶数（10 秒 / 500ms 桶）。
	DefaultSampleCountTotal uint32 = 20
	// DefaultIntervalMsTotal 细粒度窗口跨度（毫秒）。
	DefaultIntervalMsTotal uint32 = 10000

	// DefaultSampleCount 秒级只读视图桶数。
	DefaultSampleCount uint32 = 2
	// DefaultIntervalMs 秒级只读视图跨度（毫秒）。
	DefaultIntervalMs uint32 = 1000

	// MinuteSampleCount 分钟级粗粒度窗口桶数（逐秒桶）。
	MinuteSampleCount uint32 = 60
	// MinuteIntervalMs 分钟级粗粒度窗口跨度（毫秒）。
	MinuteIntervalMs uint32 = 60000
)

// BaseStatNode 资源统计节点：一个细粒度窗口（承接秒级 QPS 视图）、
// 一个逐秒粗粒度窗口（承接分钟级总量），外加原子实时并发数。
//
// 并发数只在准入成功时加一、在对应 Exit 时减一；
// 泄漏一个 Entry 的后果被限定为该并发计数偏移一个单位。
type BaseStatNode struct {
	concurrency atomic.Int32

	// arr 细粒度窗口（默认 10s / 500ms 桶）。
	arr *BucketLeapArray
	// metric 秒级只读视图，QPS 类规则的数据源。
	metric *SlidingWindowMetric

	// minuteArr 逐秒粗粒度窗口（60s / 1s 桶），分钟级阈值与快照的数据源。
	minuteArr    *BucketLeapArray
	minuteMetric *SlidingWindowMetric
}

var _ xbase.StatNode = (*BaseStatNode)(nil)

// NewBaseStatNode 以默认窗口参数创建统计节点。
// 默认参数均为满足对齐校验的常量，构造不会失败。
func NewBaseStatNode() *BaseStatNode {
	arr, _ := NewBucketLeapArray(DefaultSampleCountTotal, DefaultIntervalMsTotal)
	metric, _ := NewSlidingWindowMetric(DefaultSampleCount, DefaultIntervalMs, arr)
	minuteArr, _ := NewBucketLeapArray(MinuteSampleCount, MinuteIntervalMs)
	minuteMetric, _ := NewSlidingWindowMetric(MinuteSampleCount, MinuteIntervalMs, minuteArr)
	return &BaseStatNode{
		arr:          arr,
		metric:       metric,
		minuteArr:    minuteArr,
		minuteMetric: minuteMetric,
	}
}

// AddCount 同时写入细粒度与分钟级两个窗口。
func (n *BaseStatNode) AddCount(event xbase.MetricEvent, count int64) {
	n.arr.AddCount(event, count)
	n.minuteArr.AddCount(event, count)
}

// GetQPS 秒级视图的每秒速率。
func (n *BaseStatNode) GetQPS(event xbase.MetricEvent) float64 {
	return n.metric.GetQPS(event)
}

// GetPreviousQPS 上一个细粒度桶折算的每秒速率。
func (n *BaseStatNode) GetPreviousQPS(event xbase.MetricEvent) float64 {
	return n.metric.GetPreviousQPS(event)
}

// GetSum 分钟级窗口内的事件总计数。
func (n *BaseStatNode) GetSum(event xbase.MetricEvent) int64 {
	return n.minuteMetric.GetSum(event)
}

// GetMaxOfSingleBucket 分钟级窗口内单秒最大计数。
func (n *BaseStatNode) GetMaxOfSingleBucket(event xbase.MetricEvent) int64 {
	return n.minuteMetric.GetMaxOfSingleBucket(event)
}

// MinRT 秒级窗口内最小响应时间（毫秒）。
func (n *BaseStatNode) MinRT() float64 {
	return n.metric.MinRT()
}

// AvgRT 秒级窗口内平均响应时间（毫秒）。
func (n *BaseStatNode) AvgRT() float64 {
	return n.metric.AvgRT()
}

// CurrentConcurrency 实时并发数。
func (n *BaseStatNode) CurrentConcurrency() int32 {
	return n.concurrency.Load()
}

// IncreaseConcurrency 并发数加一。
func (n *BaseStatNode) IncreaseConcurrency() {
	n.concurrency.Add(1)
}

// DecreaseConcurrency 并发数减一。
func (n *BaseStatNode) DecreaseConcurrency() {
	n.concurrency.Add(-1)
}

// GenerateReadStat 基于细粒度窗口派生自定义跨度的只读视图。
// 与默认秒级视图参数一致时直接复用现有视图。
func (n *BaseStatNode) GenerateReadStat(sampleCount, intervalInMs uint32) (xbase.ReadStat, error) {
	if sampleCount == DefaultSampleCount && intervalInMs == DefaultIntervalMs {
		return n.metric, nil
	}
	return NewSlidingWindowMetric(sampleCount, intervalInMs, n.arr)
}

// MinuteStat 返回分钟级只读视图，供快照与指标导出使用。
func (n *BaseStatNode) MinuteStat() xbase.ReadStat {
	return n.minuteMetric
}

// SecondStat 返回秒级只读视图。
func (n *BaseStatNode) SecondStat() xbase.ReadStat {
	return n.metric
}
