package xflow

import "errors"

var (
	// ErrNilRule 规则为 nil。
	ErrNilRule = errors.New("xflow: rule cannot be nil")

	// ErrInvalidRule 规则字段非法。
	ErrInvalidRule = errors.New("xflow: invalid rule")

	// ErrNilStorage 统计节点注册表为 nil。
	ErrNilStorage = errors.New("xflow: node storage cannot be nil")

	// ErrNilManager 规则注册表为 nil。
	ErrNilManager = errors.New("xflow: rule manager cannot be nil")
)
