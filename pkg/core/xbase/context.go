package xbase

import "github.com/omeyang/xguard/pkg/util/xtime"

// SentinelInput 单次调用的入参：批量数与携带的参数列表。
type SentinelInput struct {
	// BatchCount 本次调用消耗的令牌数（批量调用场景大于 1）。
	BatchCount uint32
	// Args 调用携带的参数值，供热点参数检查器按下标取值。
	Args []any
}

func newSentinelInput() *SentinelInput {
	return &SentinelInput{BatchCount: 1}
}

func (i *SentinelInput) reset() {
	i.BatchCount = 1
	i.Args = nil
}

// EntryContext 一次准入决策的执行上下文，贯穿整条插槽链的入口与出口。
// 同一上下文内的 Entry/Exit 顺序执行，不跨 goroutine 共享。
type EntryContext struct {
	// Resource 本次调用的资源标识。
	Resource *ResourceWrapper
	// StatNode 资源的统计节点，由统计准备插槽在链头解析。
	StatNode StatNode
	// Input 调用入参。
	Input *SentinelInput
	// RuleCheckResult 链上最近一次规则检查的结果，链内复用同一实例。
	RuleCheckResult *TokenResult

	entry     *Entry
	startTime uint64
	// rt 调用往返耗时（毫秒），Exit 时回填。
	rt  uint64
	err error
}

// NewEntryContext 创建上下文，记录创建时刻为调用起始时间。
func NewEntryContext() *EntryContext {
	return &EntryContext{
		Input:           newSentinelInput(),
		RuleCheckResult: NewTokenResultPass(),
		startTime:       xtime.CurrentTimeMillis(),
	}
}

// Reset 清空上下文以便从对象池复用。
func (c *EntryContext) Reset() {
	c.Resource = nil
	c.StatNode = nil
	c.Input.reset()
	c.RuleCheckResult.ResetToPass()
	c.entry = nil
	c.startTime = xtime.CurrentTimeMillis()
	c.rt = 0
	c.err = nil
}

// StartTime 返回调用起始时间（Unix 毫秒）。
func (c *EntryContext) StartTime() uint64 {
	return c.startTime
}

// SetEntry 绑定本上下文对应的 Entry 凭证。
func (c *EntryContext) SetEntry(e *Entry) {
	c.entry = e
}

// Entry 返回绑定的 Entry 凭证，可能为 nil（被拦截时）。
func (c *EntryContext) Entry() *Entry {
	return c.entry
}

// IsBlocked 本次准入是否被拦截。
func (c *EntryContext) IsBlocked() bool {
	return c.RuleCheckResult != nil && c.RuleCheckResult.IsBlocked()
}

// PutRt 回填调用往返耗时（毫秒）。
func (c *EntryContext) PutRt(rt uint64) {
	c.rt = rt
}

// Rt 返回调用往返耗时（毫秒），未回填时按当前时间与起始时间之差计算。
func (c *EntryContext) Rt() uint64 {
	if c.rt > 0 {
		return c.rt
	}
	return xtime.CurrentTimeMillis() - c.startTime
}

// SetError 记录调用的业务错误，供熔断器在出口统计。
func (c *EntryContext) SetError(err error) {
	c.err = err
}

// Err 返回记录的业务错误。
func (c *EntryContext) Err() error {
	return c.err
}
