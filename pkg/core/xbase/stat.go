package xbase

// MetricEvent 统计事件类别，滑动窗口中每个桶按事件维度计数。
type MetricEvent int8

const (
	// MetricEventPass 准入通过。
	MetricEventPass MetricEvent = iota
	// MetricEventBlock 准入被拦截。
	MetricEventBlock
	// MetricEventComplete 调用完结（Exit）。
	MetricEventComplete
	// MetricEventError 调用以业务错误完结。
	MetricEventError
	// MetricEventRt 响应时间累计（毫秒）。
	MetricEventRt

	// MetricEventTotal 事件类别总数，用于定长计数数组。
	MetricEventTotal
)

// ReadStat 只读统计视图。
type ReadStat interface {
	// GetQPS 返回事件在当前窗口内的每秒速率。
	GetQPS(event MetricEvent) float64
	// GetPreviousQPS 返回事件在上一个采样桶内折算的每秒速率。
	GetPreviousQPS(event MetricEvent) float64
	// GetSum 返回事件在当前窗口内的总计数。
	GetSum(event MetricEvent) int64
	// GetMaxOfSingleBucket 返回单个桶内该事件的最大计数。
	GetMaxOfSingleBucket(event MetricEvent) int64
	// MinRT 返回当前窗口内观测到的最小响应时间（毫秒）。
	MinRT() float64
	// AvgRT 返回当前窗口内的平均响应时间（毫秒）。
	AvgRT() float64
}

// WriteStat 只写统计视图。
type WriteStat interface {
	// AddCount 为事件累加计数。
	AddCount(event MetricEvent, count int64)
}

// StatNode 单个资源的统计聚合：读写窗口计数加实时并发。
type StatNode interface {
	ReadStat
	WriteStat

	// CurrentConcurrency 返回实时并发数。
	CurrentConcurrency() int32
	// IncreaseConcurrency 并发数加一，仅在准入成功时调用。
	IncreaseConcurrency()
	// DecreaseConcurrency 并发数减一，与 Exit 一一对应。
	DecreaseConcurrency()

	// GenerateReadStat 基于节点内部的细粒度窗口派生自定义跨度的只读视图。
	// 当规则的统计周期与节点默认窗口不一致时使用。
	GenerateReadStat(sampleCount, intervalInMs uint32) (ReadStat, error)
}
