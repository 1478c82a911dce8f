package xcircuit

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// breakerMap 资源名到熔断器列表的只读快照。
type breakerMap map[string][]CircuitBreaker

// Group 熔断器注册表。显式构造、按实例注入。
//
// 更新走 copy-on-write：写者在互斥下重建整张熔断器表后原子换指针；
// 等价规则复用旧熔断器（保留状态机与统计窗口），仅窗口形状可复用的
// 规则复用旧统计窗口重建熔断器。
type Group struct {
	logger *slog.Logger

	mu       sync.Mutex
	breakers atomic.Pointer[breakerMap]

	listenerMu sync.RWMutex
	listeners  []StateChangeListener
}

// NewGroup 创建熔断器注册表。logger 为 nil 时使用 slog.Default()。
func NewGroup(logger *slog.Logger) *Group {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Group{logger: logger}
	empty := make(breakerMap)
	g.breakers.Store(&empty)
	return g
}

// RegisterStateChangeListener 注册状态迁移观察者。
func (g *Group) RegisterStateChangeListener(listeners ...StateChangeListener) {
	g.listenerMu.Lock()
	defer g.listenerMu.Unlock()
	for _, l := range listeners {
		if l != nil {
			g.listeners = append(g.listeners, l)
		}
	}
}

func (g *Group) notifyClosed(prev State, rule Rule) {
	g.listenerMu.RLock()
	defer g.listenerMu.RUnlock()
	for _, l := range g.listeners {
		l.OnTransformToClosed(prev, rule)
	}
}

func (g *Group) notifyOpen(prev State, rule Rule, snapshot any) {
	g.listenerMu.RLock()
	defer g.listenerMu.RUnlock()
	for _, l := range g.listeners {
		l.OnTransformToOpen(prev, rule, snapshot)
	}
}

func (g *Group) notifyHalfOpen(prev State, rule Rule) {
	g.listenerMu.RLock()
	defer g.listenerMu.RUnlock()
	for _, l := range g.listeners {
		l.OnTransformToHalfOpen(prev, rule)
	}
}

var _ stateNotifier = (*Group)(nil)

// LoadRules 全量替换熔断规则。全有或全无：任一规则非法则整批失败，
// 当前生效的熔断器表保持不变。
func (g *Group) LoadRules(rules []*Rule) error {
	for _, r := range rules {
		if err := ValidateRule(r); err != nil {
			return err
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	old := *g.breakers.Load()
	fresh := make(breakerMap, len(rules))
	reused := 0
	statReused := 0
	for _, r := range rules {
		rc := *r
		if rc.ID == "" {
			rc.ID = uuid.NewString()
		}

		// 等价规则整体复用：熔断器带着状态机与统计一并保留。
		if cb := findEquivalent(old, &rc); cb != nil {
			fresh[rc.Resource] = append(fresh[rc.Resource], cb)
			reused++
			continue
		}

		// 窗口形状一致的规则复用统计窗口，状态机重建（回到 Closed）。
		var reusedStat any
		if cb := findStatReusable(old, &rc); cb != nil {
			reusedStat = cb.BoundStat()
			statReused++
		}
		cb, err := newCircuitBreaker(&rc, g, reusedStat)
		if err != nil {
			return fmt.Errorf("xcircuit: build breaker for rule %s: %w", rc.String(), err)
		}
		fresh[rc.Resource] = append(fresh[rc.Resource], cb)
	}

	g.breakers.Store(&fresh)
	g.logger.Info("xcircuit: circuit breaking rules loaded",
		slog.Int("count", len(rules)),
		slog.Int("reused", reused),
		slog.Int("statReused", statReused))
	return nil
}

func findEquivalent(old breakerMap, r *Rule) CircuitBreaker {
	for _, cb := range old[r.Resource] {
		if cb != nil && cb.BoundRule().isEqualsTo(r) {
			return cb
		}
	}
	return nil
}

func findStatReusable(old breakerMap, r *Rule) CircuitBreaker {
	for _, cb := range old[r.Resource] {
		if cb != nil && cb.BoundRule().isStatReusable(r) {
			return cb
		}
	}
	return nil
}

// ClearRules 清空全部熔断规则。
func (g *Group) ClearRules() {
	g.mu.Lock()
	defer g.mu.Unlock()
	empty := make(breakerMap)
	g.breakers.Store(&empty)
	g.logger.Info("xcircuit: circuit breaking rules cleared")
}

// GetRules 返回当前生效规则的副本快照（只读）。
func (g *Group) GetRules() []Rule {
	snapshot := *g.breakers.Load()
	ret := make([]Rule, 0, len(snapshot))
	for _, cbs := range snapshot {
		for _, cb := range cbs {
			ret = append(ret, *cb.BoundRule())
		}
	}
	return ret
}

// GetBreakers 返回资源上的熔断器列表（单次指针解引用）。
func (g *Group) GetBreakers(resource string) []CircuitBreaker {
	return (*g.breakers.Load())[resource]
}
