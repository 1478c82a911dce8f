package xguard

import (
	"math"

	"github.com/omeyang/xguard/pkg/core/xbase"
)

// Snapshot 单个资源的统计快照。计数来自惰性重置的滑动窗口，
// 是尽力而为的观测值，不保证与并发写入严格一致。
type Snapshot struct {
	// Resource 资源名。
	Resource string
	// PassQPS 秒级通过速率。
	PassQPS float64
	// BlockQPS 秒级拦截速率。
	BlockQPS float64
	// ErrorQPS 秒级错误速率。
	ErrorQPS float64
	// CompleteQPS 秒级完结速率。
	CompleteQPS float64
	// MinutePass 分钟窗口内的通过总量。
	MinutePass int64
	// MinuteBlock 分钟窗口内的拦截总量。
	MinuteBlock int64
	// MinuteError 分钟窗口内的错误总量。
	MinuteError int64
	// MinuteComplete 分钟窗口内的完结总量。
	MinuteComplete int64
	// AvgRTMs 平均响应时间（毫秒）。
	AvgRTMs float64
	// MinRTMs 最小响应时间（毫秒），窗口内无完结时为 0。
	MinRTMs float64
	// Concurrency 实时并发数。
	Concurrency int32
}

// Snapshot 返回资源的统计快照，资源从未被访问过时第二个返回值为 false。
func (g *Guard) Snapshot(resource string) (Snapshot, bool) {
	node := g.storage.GetNode(resource)
	if node == nil {
		return Snapshot{}, false
	}

	minRt := node.MinRT()
	if minRt == math.MaxFloat64 {
		minRt = 0
	}
	return Snapshot{
		Resource:       resource,
		PassQPS:        node.GetQPS(xbase.MetricEventPass),
		BlockQPS:       node.GetQPS(xbase.MetricEventBlock),
		ErrorQPS:       node.GetQPS(xbase.MetricEventError),
		CompleteQPS:    node.GetQPS(xbase.MetricEventComplete),
		MinutePass:     node.GetSum(xbase.MetricEventPass),
		MinuteBlock:    node.GetSum(xbase.MetricEventBlock),
		MinuteError:    node.GetSum(xbase.MetricEventError),
		MinuteComplete: node.GetSum(xbase.MetricEventComplete),
		AvgRTMs:        node.AvgRT(),
		MinRTMs:        minRt,
		Concurrency:    node.CurrentConcurrency(),
	}, true
}

// Snapshots 返回所有已知资源的统计快照，按资源名有序。
func (g *Guard) Snapshots() []Snapshot {
	names := g.storage.ResourceNames()
	ret := make([]Snapshot, 0, len(names))
	for _, name := range names {
		if s, ok := g.Snapshot(name); ok {
			ret = append(ret, s)
		}
	}
	return ret
}
