package xsystem

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/omeyang/xguard/pkg/util/xmath"
)

// MetricType 系统保护的统计维度。
type MetricType int32

const (
	// Load 系统 1 分钟平均负载。
	Load MetricType = iota
	// AvgRT 全局入站调用的平均响应时间（毫秒）。
	AvgRT
	// Concurrency 全局入站并发数。
	Concurrency
	// InboundQPS 全局入站 QPS。
	InboundQPS
	// CpuUsage 进程 CPU 占用率 [0.0, 1.0]。
	CpuUsage

	// metricTypeSize 维度总数，用于校验与注册表容量。
	metricTypeSize int = iota
)

func (t MetricType) String() string {
	switch t {
	case Load:
		return "Load"
	case AvgRT:
		return "AvgRT"
	case Concurrency:
		return "Concurrency"
	case InboundQPS:
		return "InboundQPS"
	case CpuUsage:
		return "CpuUsage"
	default:
		return "Undefined"
	}
}

// Strategy 越线后的控制策略。
type Strategy int32

const (
	// NoAdaptive 越线直接拒绝。
	NoAdaptive Strategy = iota
	// BBR 越线后按估算容量自适应拒绝，仅 Load 与 CpuUsage 维度支持。
	BBR
)

func (s Strategy) String() string {
	switch s {
	case NoAdaptive:
		return "NoAdaptive"
	case BBR:
		return "BBR"
	default:
		return "Undefined"
	}
}

// Rule 系统保护规则，不可变值对象。每个维度至多一条规则生效，
// 同维度多条时取最严格（TriggerCount 最小）的一条。
type Rule struct {
	// ID 规则唯一标识，载入时为空则自动生成。
	ID string `json:"id,omitempty" koanf:"id"`
	// MetricType 统计维度。
	MetricType MetricType `json:"metricType" koanf:"metricType"`
	// TriggerCount 水位线：CpuUsage 取 [0.0, 1.0]，其余维度为绝对值。
	TriggerCount float64 `json:"triggerCount" koanf:"triggerCount"`
	// Strategy 越线后的控制策略。
	Strategy Strategy `json:"strategy" koanf:"strategy"`
}

// ResourceName 实现 xbase.Rule。系统规则不绑定具体资源。
func (r *Rule) ResourceName() string {
	return "__system_rule__"
}

func (r *Rule) String() string {
	return fmt.Sprintf("{id=%s, metricType=%s, triggerCount=%.4f, strategy=%s}",
		r.ID, r.MetricType, r.TriggerCount, r.Strategy)
}

// isEqualsTo 忽略 ID 的规则等价比较。
func (r *Rule) isEqualsTo(newRule *Rule) bool {
	if newRule == nil {
		return false
	}
	return r.MetricType == newRule.MetricType &&
		xmath.Float64Equals(r.TriggerCount, newRule.TriggerCount) &&
		r.Strategy == newRule.Strategy
}

// ValidateRule 校验单条规则。
func ValidateRule(r *Rule) error {
	if r == nil {
		return ErrNilRule
	}
	if int(r.MetricType) < 0 || int(r.MetricType) >= metricTypeSize {
		return fmt.Errorf("%w: unknown metric type in %s", ErrInvalidRule, r)
	}
	if r.TriggerCount < 0 {
		return fmt.Errorf("%w: negative trigger count in %s", ErrInvalidRule, r)
	}
	if r.MetricType == CpuUsage && r.TriggerCount > 1.0 {
		return fmt.Errorf("%w: cpu usage trigger count must be in [0.0, 1.0] in %s", ErrInvalidRule, r)
	}
	if r.Strategy == BBR && r.MetricType != Load && r.MetricType != CpuUsage {
		return fmt.Errorf("%w: BBR strategy only applies to Load and CpuUsage in %s", ErrInvalidRule, r)
	}
	return nil
}

// ruleMap 维度到生效规则的只读快照。
type ruleMap map[MetricType]*Rule

// RuleManager 系统保护规则注册表。按维度归并：同维度多条规则只保留
// 水位线最低的一条，快照以 copy-on-write 原子替换。
type RuleManager struct {
	logger *slog.Logger

	mu    sync.Mutex
	rules atomic.Pointer[ruleMap]
}

// NewRuleManager 创建系统保护规则注册表。
func NewRuleManager(logger *slog.Logger) *RuleManager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &RuleManager{logger: logger}
	empty := make(ruleMap)
	m.rules.Store(&empty)
	return m
}

// LoadRules 全量替换系统保护规则。全有或全无。
func (m *RuleManager) LoadRules(rules []*Rule) error {
	for _, r := range rules {
		if err := ValidateRule(r); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	fresh := make(ruleMap, metricTypeSize)
	for _, r := range rules {
		rc := *r
		if rc.ID == "" {
			rc.ID = uuid.NewString()
		}
		if cur, ok := fresh[rc.MetricType]; !ok || rc.TriggerCount < cur.TriggerCount {
			fresh[rc.MetricType] = &rc
		}
	}

	m.rules.Store(&fresh)
	m.logger.Info("xsystem: system rules loaded",
		slog.Int("count", len(rules)),
		slog.Int("effective", len(fresh)))
	return nil
}

// ClearRules 清空全部系统保护规则。
func (m *RuleManager) ClearRules() {
	m.mu.Lock()
	defer m.mu.Unlock()
	empty := make(ruleMap)
	m.rules.Store(&empty)
	m.logger.Info("xsystem: system rules cleared")
}

// GetRules 返回当前生效规则的副本快照（只读）。
func (m *RuleManager) GetRules() []Rule {
	snapshot := *m.rules.Load()
	ret := make([]Rule, 0, len(snapshot))
	for _, r := range snapshot {
		ret = append(ret, *r)
	}
	return ret
}

// getRuleOf 返回维度上的生效规则（单次指针解引用），无则为 nil。
func (m *RuleManager) getRuleOf(t MetricType) *Rule {
	return (*m.rules.Load())[t]
}
