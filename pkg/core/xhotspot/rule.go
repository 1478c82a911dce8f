package xhotspot

import (
	"fmt"
	"strconv"
	"strings"
)

// MetricType 热点限流统计口径。
type MetricType int32

const (
	// Concurrency 按参数值的实时并发数控制。
	Concurrency MetricType = iota
	// QPS 按参数值的令牌消耗速率控制。
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

// ControlBehavior 超阈值后的控制行为。
type ControlBehavior int32

const (
	// Reject 直接拒绝（带突发容忍的令牌桶）。
	Reject ControlBehavior = iota
	// Throttling 匀速排队。
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

// ParamKind 特定参数值的字面量类型。
type ParamKind int32

const (
	// KindString 字符串字面量。
	KindString ParamKind = iota
	// KindInt 整型字面量。
	KindInt
	// KindBool 布尔字面量。
	KindBool
	// KindFloat64 浮点字面量。
	KindFloat64
)

func (k ParamKind) String() string {
	switch k {
	case KindString:
		return "KindString"
	case KindInt:
		return "KindInt"
	case KindBool:
		return "KindBool"
	case KindFloat64:
		return "KindFloat64"
	default:
		return "Undefined"
	}
}

// SpecificItem 对某个确切参数值的阈值覆写。
type SpecificItem struct {
	// ValKind 字面量类型。
	ValKind ParamKind `json:"valKind" koanf:"valKind"`
	// ValStr 字面量文本，按 ValKind 解析。
	ValStr string `json:"valStr" koanf:"valStr"`
	// Threshold 覆写阈值。
	Threshold int64 `json:"threshold" koanf:"threshold"`
}

// 计数器缓存容量边界。
const (
	// ParamsCapacityBase 未显式指定时的缓存容量。
	ParamsCapacityBase = 4000
	// ParamsMaxCapacity 缓存容量上限。
	ParamsMaxCapacity = 20000
)

// Rule 热点参数限流规则，不可变值对象。
type Rule struct {
	// ID 规则唯一标识，载入时为空则自动生成。
	ID string `json:"id,omitempty" koanf:"id"`
	// Resource 资源名。
	Resource string `json:"resource" koanf:"resource"`
	// MetricType 统计口径（并发数或 QPS）。
	MetricType MetricType `json:"metricType" koanf:"metricType"`
	// ControlBehavior 超阈值控制行为，仅 QPS 口径区分。
	ControlBehavior ControlBehavior `json:"controlBehavior" koanf:"controlBehavior"`
	// ParamIndex 参数下标：非负从头数，负数从尾数（-1 为最后一个）。
	ParamIndex int `json:"paramIndex" koanf:"paramIndex"`
	// Threshold 默认阈值：QPS 口径为 DurationInSec 内的令牌数，
	// 并发口径为单参数值的最大并发。
	Threshold int64 `json:"threshold" koanf:"threshold"`
	// MaxQueueingTimeMs Throttling 行为下的最大排队时长（毫秒）。
	MaxQueueingTimeMs int64 `json:"maxQueueingTimeMs,omitempty" koanf:"maxQueueingTimeMs"`
	// BurstCount Reject 行为下的突发容忍量。
	BurstCount int64 `json:"burstCount,omitempty" koanf:"burstCount"`
	// DurationInSec QPS 口径的令牌补充周期（秒）。
	DurationInSec int64 `json:"durationInSec,omitempty" koanf:"durationInSec"`
	// ParamsMaxCapacity 计数器缓存容量，0 取默认值。
	ParamsMaxCapacity int64 `json:"paramsMaxCapacity,omitempty" koanf:"paramsMaxCapacity"`
	// SpecificItems 特定参数值的阈值覆写。
	SpecificItems []SpecificItem `json:"specificItems,omitempty" koanf:"specificItems"`
}

// ResourceName 实现 xbase.Rule。
func (r *Rule) ResourceName() string {
	return r.Resource
}

func (r *Rule) String() string {
	var b strings.Builder
	fmt.Fprintf(&b,
		"{id=%s, resource=%s, metricType=%s, behavior=%s, paramIndex=%d, threshold=%d, maxQueueingTimeMs=%d, burstCount=%d, durationInSec=%d, paramsMaxCapacity=%d, specificItems=[",
		r.ID, r.Resource, r.MetricType, r.ControlBehavior, r.ParamIndex,
		r.Threshold, r.MaxQueueingTimeMs, r.BurstCount, r.DurationInSec, r.ParamsMaxCapacity)
	for i, item := range r.SpecificItems {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s:%s=%d", item.ValKind, item.ValStr, item.Threshold)
	}
	b.WriteString("]}")
	return b.String()
}

// cacheCapacity 计数器缓存的实际容量。
func (r *Rule) cacheCapacity() int {
	c := r.ParamsMaxCapacity
	if c <= 0 {
		return ParamsCapacityBase
	}
	if c > ParamsMaxCapacity {
		return ParamsMaxCapacity
	}
	return int(c)
}

// isStatReusable 新旧规则是否可共享同一组参数计数器。
func (r *Rule) isStatReusable(newRule *Rule) bool {
	if newRule == nil {
		return false
	}
	return r.Resource == newRule.Resource &&
		r.MetricType == newRule.MetricType &&
		r.ControlBehavior == newRule.ControlBehavior &&
		r.ParamIndex == newRule.ParamIndex &&
		r.DurationInSec == newRule.DurationInSec &&
		r.cacheCapacity() == newRule.cacheCapacity()
}

// isEqualsTo 忽略 ID 的规则等价比较。
func (r *Rule) isEqualsTo(newRule *Rule) bool {
	if !r.isStatReusable(newRule) {
		return false
	}
	if r.Threshold != newRule.Threshold ||
		r.MaxQueueingTimeMs != newRule.MaxQueueingTimeMs ||
		r.BurstCount != newRule.BurstCount ||
		len(r.SpecificItems) != len(newRule.SpecificItems) {
		return false
	}
	for i, item := range r.SpecificItems {
		if item != newRule.SpecificItems[i] {
			return false
		}
	}
	return true
}

// parseSpecificItems 把字面量覆写表解析为按参数值索引的阈值表。
// 非法字面量跳过并不报错，其余覆写照常生效。
func parseSpecificItems(items []SpecificItem) map[any]int64 {
	ret := make(map[any]int64, len(items))
	for _, item := range items {
		switch item.ValKind {
		case KindString:
			ret[item.ValStr] = item.Threshold
		case KindInt:
			if v, err := strconv.Atoi(item.ValStr); err == nil {
				ret[v] = item.Threshold
			}
		case KindBool:
			if v, err := strconv.ParseBool(item.ValStr); err == nil {
				ret[v] = item.Threshold
			}
		case KindFloat64:
			if v, err := strconv.ParseFloat(item.ValStr, 64); err == nil {
				ret[v] = item.Threshold
			}
		}
	}
	return ret
}

// ValidateRule 校验单条规则。
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
	if r.BurstCount < 0 {
		return fmt.Errorf("%w: negative burst count in %s", ErrInvalidRule, r)
	}
	if r.MaxQueueingTimeMs < 0 {
		return fmt.Errorf("%w: negative max queueing time in %s", ErrInvalidRule, r)
	}
	if r.MetricType == QPS && r.DurationInSec <= 0 {
		return fmt.Errorf("%w: duration must be positive for QPS metric in %s", ErrInvalidRule, r)
	}
	if r.MetricType == Concurrency && r.ControlBehavior == Throttling {
		return fmt.Errorf("%w: throttling behavior only applies to QPS metric in %s", ErrInvalidRule, r)
	}
	return nil
}
