package xbase

import "fmt"

// TokenResultStatus 令牌结果状态。
type TokenResultStatus uint8

const (
	// ResultStatusPass 准入通过。
	ResultStatusPass TokenResultStatus = iota
	// ResultStatusBlocked 准入被拒绝。
	ResultStatusBlocked
	// ResultStatusShouldWait 准入通过，但调用方应先等待建议的排队时长。
	// 检查器本身不阻塞，是否真正等待由调用方决定。
	ResultStatusShouldWait
)

func (s TokenResultStatus) String() string {
	switch s {
	case ResultStatusPass:
		return "Pass"
	case ResultStatusBlocked:
		return "Blocked"
	case ResultStatusShouldWait:
		return "ShouldWait"
	default:
		return "Undefined"
	}
}

// TokenResult 单次规则检查的结果。
// 同一 EntryContext 内复用一个实例（ResetTo* 原地改写），
// 避免热路径上的重复分配。
type TokenResult struct {
	status   TokenResultStatus
	blockErr *BlockError
	// waitMs 建议排队时长（毫秒），仅 ResultStatusShouldWait 时有意义。
	waitMs uint64
}

// NewTokenResultPass 创建通过结果。
func NewTokenResultPass() *TokenResult {
	return &TokenResult{status: ResultStatusPass}
}

// NewTokenResultBlocked 创建拦截结果。
func NewTokenResultBlocked(blockType BlockType, opts ...BlockErrorOption) *TokenResult {
	return &TokenResult{
		status:   ResultStatusBlocked,
		blockErr: NewBlockError(blockType, opts...),
	}
}

// NewTokenResultShouldWait 创建携带建议排队时长的通过结果。
func NewTokenResultShouldWait(waitMs uint64) *TokenResult {
	return &TokenResult{status: ResultStatusShouldWait, waitMs: waitMs}
}

// ResetToPass 原地改写为通过结果。
func (r *TokenResult) ResetToPass() {
	r.status = ResultStatusPass
	r.blockErr = nil
	r.waitMs = 0
}

// ResetToBlocked 原地改写为拦截结果。
func (r *TokenResult) ResetToBlocked(blockType BlockType, opts ...BlockErrorOption) {
	r.status = ResultStatusBlocked
	r.blockErr = NewBlockError(blockType, opts...)
	r.waitMs = 0
}

// ResetToShouldWait 原地改写为携带建议排队时长的通过结果。
func (r *TokenResult) ResetToShouldWait(waitMs uint64) {
	r.status = ResultStatusShouldWait
	r.blockErr = nil
	r.waitMs = waitMs
}

// Status 返回结果状态。
func (r *TokenResult) Status() TokenResultStatus {
	return r.status
}

// IsPass 是否通过（含 ShouldWait）。
func (r *TokenResult) IsPass() bool {
	return r.status == ResultStatusPass || r.status == ResultStatusShouldWait
}

// IsBlocked 是否被拦截。
func (r *TokenResult) IsBlocked() bool {
	return r.status == ResultStatusBlocked
}

// BlockError 返回拦截错误，未被拦截时为 nil。
func (r *TokenResult) BlockError() *BlockError {
	return r.blockErr
}

// WaitMs 返回建议排队时长（毫秒）。
func (r *TokenResult) WaitMs() uint64 {
	return r.waitMs
}

func (r *TokenResult) String() string {
	if r.blockErr != nil {
		return fmt.Sprintf("TokenResult{status=%s, blockErr=%s}", r.status, r.blockErr.Error())
	}
	return fmt.Sprintf("TokenResult{status=%s, waitMs=%d}", r.status, r.waitMs)
}
