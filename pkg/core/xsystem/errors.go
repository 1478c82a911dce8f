package xsystem

import "errors"

var (
	// ErrNilRule 规则为 nil。
	ErrNilRule = errors.New("xsystem: rule cannot be nil")

	// ErrInvalidRule 规则字段非法。
	ErrInvalidRule = errors.New("xsystem: invalid rule")

	// ErrNilManager 规则注册表为 nil。
	ErrNilManager = errors.New("xsystem: rule manager cannot be nil")

	// ErrNilStorage 统计节点注册表为 nil。
	ErrNilStorage = errors.New("xsystem: node storage cannot be nil")

	// ErrCollectorStarted 采集器重复启动。
	ErrCollectorStarted = errors.New("xsystem: collector already started")
)
