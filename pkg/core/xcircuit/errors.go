package xcircuit

import "errors"

var (
	// ErrNilRule 规则为 nil。
	ErrNilRule = errors.New("xcircuit: rule cannot be nil")

	// ErrInvalidRule 规则字段非法。
	ErrInvalidRule = errors.New("xcircuit: invalid rule")

	// ErrNilGroup 熔断器注册表为 nil。
	ErrNilGroup = errors.New("xcircuit: breaker group cannot be nil")

	// ErrUnsupportedStrategy 未知的熔断策略。
	ErrUnsupportedStrategy = errors.New("xcircuit: unsupported breaker strategy")
)
