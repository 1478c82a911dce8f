package xbase

import "fmt"

// BlockType 拦截类别，标识是哪类规则触发了拒绝。
type BlockType uint8

const (
	// BlockTypeUnknown 未知拦截类别。
	BlockTypeUnknown BlockType = iota
	// BlockTypeFlow 流控规则拦截。
	BlockTypeFlow
	// BlockTypeCircuitBreaking 熔断器拦截。
	BlockTypeCircuitBreaking
	// BlockTypeSystem 系统自适应保护拦截。
	BlockTypeSystem
	// BlockTypeHotSpotParam 热点参数规则拦截。
	BlockTypeHotSpotParam
)

func (t BlockType) String() string {
	switch t {
	case BlockTypeUnknown:
		return "Unknown"
	case BlockTypeFlow:
		return "Flow"
	case BlockTypeCircuitBreaking:
		return "CircuitBreaking"
	case BlockTypeSystem:
		return "System"
	case BlockTypeHotSpotParam:
		return "HotSpotParam"
	default:
		return fmt.Sprintf("BlockType(%d)", uint8(t))
	}
}

// Rule 是所有规则类型的最小公共接口，BlockError 通过它回指触发规则。
type Rule interface {
	// ResourceName 返回规则作用的资源名。
	ResourceName() string
	fmt.Stringer
}

// BlockError 准入被拒绝时返回给调用方的错误值。
// 拦截是高频的预期结果而非缺陷，调用方据此决定降级或回退。
type BlockError struct {
	blockType BlockType
	blockMsg  string
	rule      Rule
	// snapshotValue 触发拦截瞬间的统计快照（如异常比例、当前 QPS），
	// 仅用于日志与诊断。
	snapshotValue any
}

// BlockErrorOption BlockError 可选配置函数。
type BlockErrorOption func(*BlockError)

// WithBlockMsg 设置拦截说明。
func WithBlockMsg(msg string) BlockErrorOption {
	return func(e *BlockError) {
		e.blockMsg = msg
	}
}

// WithRule 设置触发拦截的规则引用。
func WithRule(rule Rule) BlockErrorOption {
	return func(e *BlockError) {
		e.rule = rule
	}
}

// WithSnapshotValue 设置触发拦截瞬间的统计快照值。
func WithSnapshotValue(v any) BlockErrorOption {
	return func(e *BlockError) {
		e.snapshotValue = v
	}
}

// NewBlockError 创建拦截错误。
func NewBlockError(blockType BlockType, opts ...BlockErrorOption) *BlockError {
	e := &BlockError{blockType: blockType}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// BlockType 返回拦截类别。
func (e *BlockError) BlockType() BlockType {
	return e.blockType
}

// BlockMsg 返回拦截说明。
func (e *BlockError) BlockMsg() string {
	return e.blockMsg
}

// TriggeredRule 返回触发拦截的规则，可能为 nil。
func (e *BlockError) TriggeredRule() Rule {
	return e.rule
}

// TriggeredValue 返回触发拦截瞬间的统计快照值，可能为 nil。
func (e *BlockError) TriggeredValue() any {
	return e.snapshotValue
}

// Error 实现 error 接口。
func (e *BlockError) Error() string {
	if e.blockMsg == "" {
		return fmt.Sprintf("xbase: blocked by %s", e.blockType)
	}
	return fmt.Sprintf("xbase: blocked by %s: %s", e.blockType, e.blockMsg)
}

var _ error = (*BlockError)(nil)
