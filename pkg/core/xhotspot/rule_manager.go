package xhotspot

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// trafficControllerMap 资源名到控制器列表的只读快照。
type trafficControllerMap map[string][]TrafficShapingController

// RuleManager 热点规则注册表，copy-on-write 快照语义与流控注册表一致。
type RuleManager struct {
	logger *slog.Logger

	mu          sync.Mutex
	controllers atomic.Pointer[trafficControllerMap]
}

// NewRuleManager 创建热点规则注册表。
func NewRuleManager(logger *slog.Logger) *RuleManager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &RuleManager{logger: logger}
	empty := make(trafficControllerMap)
	m.controllers.Store(&empty)
	return m
}

// LoadRules 全量替换热点规则。全有或全无：任一规则非法则整批失败。
//
// 等价规则整体复用原控制器；仅计数器形状可复用的规则复用计数器组
// 重建控制器，保留各参数值的令牌与并发存量。
func (m *RuleManager) LoadRules(rules []*Rule) error {
	for _, r := range rules {
		if err := ValidateRule(r); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	old := *m.controllers.Load()
	fresh := make(trafficControllerMap, len(rules))
	reused := 0
	statReused := 0
	for _, r := range rules {
		rc := *r
		if rc.ID == "" {
			rc.ID = uuid.NewString()
		}

		if tsc := findEquivalent(old, &rc); tsc != nil {
			fresh[rc.Resource] = append(fresh[rc.Resource], tsc)
			reused++
			continue
		}

		var reusedMetric *ParamsMetric
		if tsc := findStatReusable(old, &rc); tsc != nil {
			reusedMetric = tsc.BoundMetric()
			statReused++
		}
		tsc, err := newTrafficShapingController(&rc, reusedMetric)
		if err != nil {
			return fmt.Errorf("xhotspot: build controller for rule %s: %w", rc.String(), err)
		}
		fresh[rc.Resource] = append(fresh[rc.Resource], tsc)
	}

	m.controllers.Store(&fresh)
	m.logger.Info("xhotspot: hot spot rules loaded",
		slog.Int("count", len(rules)),
		slog.Int("reused", reused),
		slog.Int("statReused", statReused))
	return nil
}

func findEquivalent(old trafficControllerMap, r *Rule) TrafficShapingController {
	for _, tsc := range old[r.Resource] {
		if tsc != nil && tsc.BoundRule().isEqualsTo(r) {
			return tsc
		}
	}
	return nil
}

func findStatReusable(old trafficControllerMap, r *Rule) TrafficShapingController {
	for _, tsc := range old[r.Resource] {
		if tsc != nil && tsc.BoundRule().isStatReusable(r) {
			return tsc
		}
	}
	return nil
}

// ClearRules 清空全部热点规则。
func (m *RuleManager) ClearRules() {
	m.mu.Lock()
	defer m.mu.Unlock()
	empty := make(trafficControllerMap)
	m.controllers.Store(&empty)
	m.logger.Info("xhotspot: hot spot rules cleared")
}

// GetRules 返回当前生效规则的副本快照（只读）。
func (m *RuleManager) GetRules() []Rule {
	snapshot := *m.controllers.Load()
	ret := make([]Rule, 0, len(snapshot))
	for _, tcs := range snapshot {
		for _, tsc := range tcs {
			ret = append(ret, *tsc.BoundRule())
		}
	}
	return ret
}

// getControllers 返回资源的控制器列表（单次指针解引用）。
func (m *RuleManager) getControllers(resource string) []TrafficShapingController {
	return (*m.controllers.Load())[resource]
}
