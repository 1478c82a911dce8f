package xcircuit

import "sync/atomic"

// State 熔断器状态。
type State int32

const (
	// Closed 关闭：正常放行并统计。
	Closed State = iota
	// HalfOpen 半开：仅放行单个探测请求。
	HalfOpen
	// Open 打开：直接拒绝，直到重试截止时刻到达。
	Open
)

func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case HalfOpen:
		return "HalfOpen"
	case Open:
		return "Open"
	default:
		return "Undefined"
	}
}

// atomicState 原子状态字。所有状态迁移都走 CAS，
// 并发迁移竞争中恰好一个参与者成功。
type atomicState struct {
	v atomic.Int32
}

func newAtomicState(s State) *atomicState {
	a := &atomicState{}
	a.v.Store(int32(s))
	return a
}

func (a *atomicState) load() State {
	return State(a.v.Load())
}

func (a *atomicState) cas(expect, update State) bool {
	return a.v.CompareAndSwap(int32(expect), int32(update))
}

// StateChangeListener 熔断器状态迁移的观察者。
// 回调在完成迁移的 goroutine 上同步执行，实现方不应阻塞。
type StateChangeListener interface {
	// OnTransformToClosed 迁移到 Closed 态（探测成功）。
	OnTransformToClosed(prev State, rule Rule)
	// OnTransformToOpen 迁移到 Open 态，snapshot 为触发时刻的判定值
	// （比例或计数）。
	OnTransformToOpen(prev State, rule Rule, snapshot any)
	// OnTransformToHalfOpen 迁移到 HalfOpen 态（放行探测）。
	OnTransformToHalfOpen(prev State, rule Rule)
}
