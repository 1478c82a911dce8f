package xflow

import (
	"fmt"

	"github.com/omeyang/xguard/pkg/util/xmath"
)

// TokenCalculateStrategy 阈值计算策略。
type TokenCalculateStrategy int32

const (
	// Direct 恒定阈值。
	Direct TokenCalculateStrategy = iota
	// WarmUp 冷启动后从 threshold/coldFactor 爬升到 threshold。
	WarmUp
)

func (s TokenCalculateStrategy) String() string {
	switch s {
	case Direct:
		return "Direct"
	case WarmUp:
		return "WarmUp"
	default:
		return "Undefined"
	}
}

// ControlBehavior 超阈值后的控制行为。
type ControlBehavior int32

const (
	// Reject 直接拒绝。
	Reject ControlBehavior = iota
	// Throttling 匀速排队：在最大排队时长内给出建议等待时间，超出则拒绝。
	Throttling
)

func (b ControlBehavior) String() string {
	switch b {
	case Reject:
		return "Reject"
	case Throttling:
		return "Throttling"
	default:
		return "Undefined"
	}
}

// MetricType 流控统计口径。
type MetricType int32

const (
	// Concurrency 按实时并发数控制。
	Concurrency MetricType = iota
	// QPS 按每秒通过量控制。
	QPS
)

func (t MetricType) String() string {
	switch t {
	case Concurrency:
		return "Concurrency"
	case QPS:
		return "QPS"
	default:
		return "Undefined"
	}
}

// 预热参数默认值与边界。
const (
	// DefaultWarmUpColdFactor 默认冷启动因子。
	DefaultWarmUpColdFactor uint32 = 3
	// DefaultStatIntervalMs 默认统计周期（毫秒）。
	DefaultStatIntervalMs uint32 = 1000
)

// Rule 流控规则，不可变值对象。同一资源可挂多条规则，
// 按载入顺序逐条评估，首个违反者拦截。
type Rule struct {
	// ID 规则唯一标识，载入时为空则自动生成。
	ID string `json:"id,omitempty" koanf:"id"`
	// Resource 资源名。
	Resource string `json:"resource" koanf:"resource"`
	// MetricType 统计口径（并发数或 QPS）。
	MetricType MetricType `json:"metricType" koanf:"metricType"`
	// TokenCalculateStrategy 阈值计算策略。
	TokenCalculateStrategy TokenCalculateStrategy `json:"tokenCalculateStrategy" koanf:"tokenCalculateStrategy"`
	// ControlBehavior 超阈值控制行为。
	ControlBehavior ControlBehavior `json:"controlBehavior" koanf:"controlBehavior"`
	// Threshold 阈值：QPS 口径为每秒许可量，并发口径为最大并发数。
	Threshold float64 `json:"threshold" koanf:"threshold"`
	// StatIntervalInMs QPS 口径的统计周期，0 表示默认秒级视图。
	// 须为统计节点细粒度桶宽的整数倍且不超过其窗口跨度。
	StatIntervalInMs uint32 `json:"statIntervalInMs,omitempty" koanf:"statIntervalInMs"`
	// MaxQueueingTimeMs Throttling 行为下的最大排队时长（毫秒）。
	MaxQueueingTimeMs uint32 `json:"maxQueueingTimeMs,omitempty" koanf:"maxQueueingTimeMs"`
	// WarmUpPeriodSec WarmUp 策略的预热时长（秒）。
	WarmUpPeriodSec uint32 `json:"warmUpPeriodSec,omitempty" koanf:"warmUpPeriodSec"`
	// WarmUpColdFactor WarmUp 策略的冷启动因子，0 取默认值 3。
	WarmUpColdFactor uint32 `json:"warmUpColdFactor,omitempty" koanf:"warmUpColdFactor"`
}

// ResourceName 实现 xbase.Rule。
func (r *Rule) ResourceName() string {
	return r.Resource
}

func (r *Rule) String() string {
	return fmt.Sprintf(
		"{id=%s, resource=%s, metricType=%s, strategy=%s, behavior=%s, threshold=%.2f, statIntervalInMs=%d, maxQueueingTimeMs=%d, warmUpPeriodSec=%d, warmUpColdFactor=%d}",
		r.ID, r.Resource, r.MetricType, r.TokenCalculateStrategy, r.ControlBehavior,
		r.Threshold, r.StatIntervalInMs, r.MaxQueueingTimeMs, r.WarmUpPeriodSec, r.WarmUpColdFactor)
}

// isEqualsTo 忽略 ID 的规则等价比较，用于重载时复用控制器
// （保留预热令牌与排队片刻等运行期状态）。
func (r *Rule) isEqualsTo(newRule *Rule) bool {
	if newRule == nil {
		return false
	}
	return r.Resource == newRule.Resource &&
		r.MetricType == newRule.MetricType &&
		r.TokenCalculateStrategy == newRule.TokenCalculateStrategy &&
		r.ControlBehavior == newRule.ControlBehavior &&
		xmath.Float64Equals(r.Threshold, newRule.Threshold) &&
		r.StatIntervalInMs == newRule.StatIntervalInMs &&
		r.MaxQueueingTimeMs == newRule.MaxQueueingTimeMs &&
		r.WarmUpPeriodSec == newRule.WarmUpPeriodSec &&
		r.WarmUpColdFactor == newRule.WarmUpColdFactor
}

// ValidateRule 校验单条规则。规则载入是全有或全无的：
// 任何一条校验失败，整批载入失败，旧快照保持生效。
func ValidateRule(r *Rule) error {
	if r == nil {
		return ErrNilRule
	}
	if r.Resource == "" {
		return fmt.Errorf("%w: %s", ErrInvalidRule, "empty resource")
	}
	if r.Threshold < 0 {
		return fmt.Errorf("%w: negative threshold in %s", ErrInvalidRule, r)
	}
	if r.TokenCalculateStrategy == WarmUp {
		if r.WarmUpPeriodSec == 0 {
			return fmt.Errorf("%w: warm-up period must be positive in %s", ErrInvalidRule, r)
		}
		if r.WarmUpColdFactor == 1 {
			return fmt.Errorf("%w: warm-up cold factor must be greater than 1 in %s", ErrInvalidRule, r)
		}
	}
	if r.ControlBehavior == Throttling && r.MetricType == Concurrency {
		return fmt.Errorf("%w: throttling behavior only applies to QPS metric in %s", ErrInvalidRule, r)
	}
	return nil
}
