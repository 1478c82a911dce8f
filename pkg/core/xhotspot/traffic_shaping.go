package xhotspot

import (
	"sync/atomic"

	"github.com/omeyang/xguard/pkg/core/xbase"
)

// TrafficShapingController 单条热点规则对应的参数级流量控制器。
type TrafficShapingController interface {
	// BoundRule 返回绑定的规则。
	BoundRule() *Rule
	// BoundMetric 返回参数计数器组，供等价规则重载时复用。
	BoundMetric() *ParamsMetric
	// BoundParamIndex 返回规则关注的参数下标。
	BoundParamIndex() int
	// ExtractArgs 从上下文按下标取出参数值，取不到时为 nil。
	ExtractArgs(ctx *xbase.EntryContext) any
	// PerformChecking 对参数值执行检查，通过时返回 nil。
	PerformChecking(arg any, batchCount int64) *xbase.TokenResult
}

// baseTrafficShapingController 各行为控制器共享的骨架。
type baseTrafficShapingController struct {
	rule       *Rule
	paramIndex int
	threshold  int64
	// specificItems 参数值到覆写阈值的解析结果，构建后只读。
	specificItems map[any]int64
	durationInSec int64
	metric        *ParamsMetric
}

func newBaseController(r *Rule, reusedMetric *ParamsMetric) (baseTrafficShapingController, error) {
	metric := reusedMetric
	if metric == nil {
		var err error
		metric, err = newParamsMetric(r)
		if err != nil {
			return baseTrafficShapingController{}, err
		}
	}
	return baseTrafficShapingController{
		rule:          r,
		paramIndex:    r.ParamIndex,
		threshold:     r.Threshold,
		specificItems: parseSpecificItems(r.SpecificItems),
		durationInSec: r.DurationInSec,
		metric:        metric,
	}, nil
}

func (c *baseTrafficShapingController) BoundRule() *Rule {
	return c.rule
}

func (c *baseTrafficShapingController) BoundMetric() *ParamsMetric {
	return c.metric
}

func (c *baseTrafficShapingController) BoundParamIndex() int {
	return c.paramIndex
}

// ExtractArgs 按下标取参数值：非负从头数，负数从尾数。
// 下标越界视为本次调用未携带该参数，规则不适用。
func (c *baseTrafficShapingController) ExtractArgs(ctx *xbase.EntryContext) any {
	args := ctx.Input.Args
	idx := c.paramIndex
	if idx < 0 {
		idx = len(args) + idx
	}
	if idx < 0 || idx >= len(args) {
		return nil
	}
	return args[idx]
}

// thresholdFor 参数值的生效阈值（覆写优先）。
func (c *baseTrafficShapingController) thresholdFor(arg any) int64 {
	if v, ok := c.specificItems[arg]; ok {
		return v
	}
	return c.threshold
}

// checkConcurrency 并发口径的检查：不修改计数器，
// 实际的增减由统计槽在通过与完结时执行。
func (c *baseTrafficShapingController) checkConcurrency(arg any, batchCount int64) *xbase.TokenResult {
	initial := new(int64)
	concurrencyPtr := c.metric.ConcurrencyCounter.AddIfAbsent(arg, initial)
	if concurrencyPtr == nil {
		// 首次出现的参数值。
		return nil
	}
	concurrency := atomic.LoadInt64(concurrencyPtr) + batchCount
	if concurrency <= c.thresholdFor(arg) {
		return nil
	}
	return xbase.NewTokenResultBlocked(xbase.BlockTypeHotSpotParam,
		xbase.WithRule(c.rule),
		xbase.WithSnapshotValue(arg))
}

// concurrencyTrafficShapingController 并发口径的控制器，
// Reject 与 Throttling 行为在并发口径下无差别。
type concurrencyTrafficShapingController struct {
	baseTrafficShapingController
}

var _ TrafficShapingController = (*concurrencyTrafficShapingController)(nil)

func (c *concurrencyTrafficShapingController) PerformChecking(arg any, batchCount int64) *xbase.TokenResult {
	return c.checkConcurrency(arg, batchCount)
}

// newTrafficShapingController 按规则口径与行为构造控制器。
func newTrafficShapingController(r *Rule, reusedMetric *ParamsMetric) (TrafficShapingController, error) {
	if r.MetricType == Concurrency {
		base, err := newBaseController(r, reusedMetric)
		if err != nil {
			return nil, err
		}
		return &concurrencyTrafficShapingController{base}, nil
	}
	switch r.ControlBehavior {
	case Throttling:
		base, err := newBaseController(r, reusedMetric)
		if err != nil {
			return nil, err
		}
		return &throttlingTrafficShapingController{
			baseTrafficShapingController: base,
			maxQueueingTimeMs:            r.MaxQueueingTimeMs,
		}, nil
	default:
		base, err := newBaseController(r, reusedMetric)
		if err != nil {
			return nil, err
		}
		return &rejectTrafficShapingController{
			baseTrafficShapingController: base,
			burstCount:                   r.BurstCount,
		}, nil
	}
}
