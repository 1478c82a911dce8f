package xcircuit

import (
	"fmt"

	"github.com/omeyang/xguard/pkg/util/xmath"
)

// Strategy 熔断判定策略。
type Strategy int32

const (
	// SlowRequestRatio 慢调用比例：统计周期内耗时超过 MaxAllowedRtMs 的
	// 调用占比达到 Threshold 时熔断。
	SlowRequestRatio Strategy = iota
	// ErrorRatio 错误比例：统计周期内出错调用占比达到 Threshold 时熔断。
	ErrorRatio
	// ErrorCount 错误计数：统计周期内出错调用数达到 Threshold 时熔断。
	ErrorCount
)

func (s Strategy) String() string {
	switch s {
	case SlowRequestRatio:
		return "SlowRequestRatio"
	case ErrorRatio:
		return "ErrorRatio"
	case ErrorCount:
		return "ErrorCount"
	default:
		return "Undefined"
	}
}

const (
	// DefaultStatIntervalMs 默认统计周期（毫秒）。
	DefaultStatIntervalMs uint32 = 10000
	// DefaultBucketCount 默认桶数。
	DefaultBucketCount uint32 = 10
)

// Rule 熔断规则，不可变值对象。同一资源可挂多条规则，任一熔断即拦截。
type Rule struct {
	// ID 规则唯一标识，载入时为空则自动生成。
	ID string `json:"id,omitempty" koanf:"id"`
	// Resource 资源名。
	Resource string `json:"resource" koanf:"resource"`
	// Strategy 熔断判定策略。
	Strategy Strategy `json:"strategy" koanf:"strategy"`
	// RetryTimeoutMs Open 态持续时长（毫秒），到达后放行单个探测。
	RetryTimeoutMs uint32 `json:"retryTimeoutMs" koanf:"retryTimeoutMs"`
	// MinRequestAmount 统计周期内的最小请求数，未达到时不触发熔断。
	MinRequestAmount uint64 `json:"minRequestAmount" koanf:"minRequestAmount"`
	// StatIntervalMs 统计周期（毫秒），0 取默认值 10000。
	StatIntervalMs uint32 `json:"statIntervalMs,omitempty" koanf:"statIntervalMs"`
	// StatSlidingWindowBucketCount 统计窗口桶数，0 或无法整除周期时取 1。
	StatSlidingWindowBucketCount uint32 `json:"statSlidingWindowBucketCount,omitempty" koanf:"statSlidingWindowBucketCount"`
	// MaxAllowedRtMs 慢调用阈值（毫秒），仅 SlowRequestRatio 策略使用。
	MaxAllowedRtMs uint64 `json:"maxAllowedRtMs,omitempty" koanf:"maxAllowedRtMs"`
	// Threshold 触发阈值：比例策略取 [0.0, 1.0]，计数策略为错误数。
	Threshold float64 `json:"threshold" koanf:"threshold"`
}

// ResourceName 实现 xbase.Rule。
func (r *Rule) ResourceName() string {
	return r.Resource
}

func (r *Rule) String() string {
	return fmt.Sprintf(
		"{id=%s, resource=%s, strategy=%s, retryTimeoutMs=%d, minRequestAmount=%d, statIntervalMs=%d, bucketCount=%d, maxAllowedRtMs=%d, threshold=%.4f}",
		r.ID, r.Resource, r.Strategy, r.RetryTimeoutMs, r.MinRequestAmount,
		r.StatIntervalMs, r.StatSlidingWindowBucketCount, r.MaxAllowedRtMs, r.Threshold)
}

// statIntervalOrDefault 统计周期，未设置时取默认值。
func (r *Rule) statIntervalOrDefault() uint32 {
	if r.StatIntervalMs == 0 {
		return DefaultStatIntervalMs
	}
	return r.StatIntervalMs
}

// bucketCountOrDefault 桶数。显式设置但无法整除统计周期时退化为单桶，
// 保证窗口构造不会失败。
func (r *Rule) bucketCountOrDefault() uint32 {
	interval := r.statIntervalOrDefault()
	count := r.StatSlidingWindowBucketCount
	if count == 0 {
		count = DefaultBucketCount
	}
	if interval%count != 0 {
		return 1
	}
	return count
}

// isStatReusable 新旧规则是否可共享同一统计窗口。
// 策略与窗口形状一致即可复用，阈值等判定参数的变化不要求重建窗口。
func (r *Rule) isStatReusable(newRule *Rule) bool {
	if newRule == nil {
		return false
	}
	return r.Resource == newRule.Resource &&
		r.Strategy == newRule.Strategy &&
		r.statIntervalOrDefault() == newRule.statIntervalOrDefault() &&
		r.bucketCountOrDefault() == newRule.bucketCountOrDefault()
}

// isEqualsTo 忽略 ID 的规则等价比较。
func (r *Rule) isEqualsTo(newRule *Rule) bool {
	if newRule == nil {
		return false
	}
	return r.Resource == newRule.Resource &&
		r.Strategy == newRule.Strategy &&
		r.RetryTimeoutMs == newRule.RetryTimeoutMs &&
		r.MinRequestAmount == newRule.MinRequestAmount &&
		r.StatIntervalMs == newRule.StatIntervalMs &&
		r.StatSlidingWindowBucketCount == newRule.StatSlidingWindowBucketCount &&
		r.MaxAllowedRtMs == newRule.MaxAllowedRtMs &&
		xmath.Float64Equals(r.Threshold, newRule.Threshold)
}

// ValidateRule 校验单条规则。
func ValidateRule(r *Rule) error {
	if r == nil {
		return ErrNilRule
	}
	if r.Resource == "" {
		return fmt.Errorf("%w: %s", ErrInvalidRule, "empty resource")
	}
	if r.RetryTimeoutMs == 0 {
		return fmt.Errorf("%w: retry timeout must be positive in %s", ErrInvalidRule, r)
	}
	if r.Threshold < 0 {
		return fmt.Errorf("%w: negative threshold in %s", ErrInvalidRule, r)
	}
	switch r.Strategy {
	case SlowRequestRatio:
		if r.Threshold > 1.0 {
			return fmt.Errorf("%w: slow request ratio threshold must be in [0.0, 1.0] in %s", ErrInvalidRule, r)
		}
	case ErrorRatio:
		if r.Threshold > 1.0 {
			return fmt.Errorf("%w: error ratio threshold must be in [0.0, 1.0] in %s", ErrInvalidRule, r)
		}
	case ErrorCount:
	default:
		return fmt.Errorf("%w: %s in %s", ErrUnsupportedStrategy, r.Strategy, r)
	}
	return nil
}
