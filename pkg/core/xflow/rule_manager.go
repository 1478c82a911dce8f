package xflow

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/omeyang/xguard/pkg/core/xstat"
)

// trafficControllerMap 资源名到控制器列表的只读快照。
type trafficControllerMap map[string][]*TrafficShapingController

// RuleManager 流控规则注册表。显式构造、按实例注入，
// 不同 Guard / 测试互不共享状态。
//
// 更新走 copy-on-write：写者在互斥下构建完整的新快照后原子换指针；
// 读者每次准入只解引用一次指针，整个 Entry/Exit 使用同一代快照，
// 不会观察到新旧规则的混合。
type RuleManager struct {
	storage *xstat.NodeStorage
	logger  *slog.Logger

	mu          sync.Mutex
	controllers atomic.Pointer[trafficControllerMap]
}

// NewRuleManager 创建流控规则注册表。
func NewRuleManager(storage *xstat.NodeStorage, logger *slog.Logger) (*RuleManager, error) {
	if storage == nil {
		return nil, ErrNilStorage
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &RuleManager{storage: storage, logger: logger}
	empty := make(trafficControllerMap)
	m.controllers.Store(&empty)
	return m, nil
}

// LoadRules 全量替换流控规则。全有或全无：任一规则非法则整批失败，
// 当前生效的快照保持不变。
//
// 与现有规则等价（忽略 ID）的规则复用原控制器，保留预热令牌存量、
// 匀速排队片刻等运行期状态。
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
	for _, r := range rules {
		rc := *r
		if rc.ID == "" {
			rc.ID = uuid.NewString()
		}

		if tsc := findReusable(old, &rc); tsc != nil {
			fresh[rc.Resource] = append(fresh[rc.Resource], tsc)
			reused++
			continue
		}

		node := m.storage.GetOrCreateNode(rc.Resource)
		tsc, err := NewTrafficShapingController(&rc, node)
		if err != nil {
			return fmt.Errorf("xflow: build controller for rule %s: %w", rc.String(), err)
		}
		fresh[rc.Resource] = append(fresh[rc.Resource], tsc)
	}

	m.controllers.Store(&fresh)
	m.logger.Info("xflow: flow rules loaded",
		slog.Int("count", len(rules)),
		slog.Int("reused", reused))
	return nil
}

// findReusable 在旧快照中寻找与新规则等价且尚未被挑走的控制器。
func findReusable(old trafficControllerMap, r *Rule) *TrafficShapingController {
	for _, tsc := range old[r.Resource] {
		if tsc != nil && tsc.BoundRule().isEqualsTo(r) {
			return tsc
		}
	}
	return nil
}

// ClearRules 清空全部流控规则。
func (m *RuleManager) ClearRules() {
	m.mu.Lock()
	defer m.mu.Unlock()
	empty := make(trafficControllerMap)
	m.controllers.Store(&empty)
	m.logger.Info("xflow: flow rules cleared")
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
func (m *RuleManager) getControllers(resource string) []*TrafficShapingController {
	return (*m.controllers.Load())[resource]
}
