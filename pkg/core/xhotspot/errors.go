package xhotspot

import "errors"

var (
	// ErrNilRule 规则为 nil。
	ErrNilRule = errors.New("xhotspot: rule cannot be nil")

	// ErrInvalidRule 规则字段非法。
	ErrInvalidRule = errors.New("xhotspot: invalid rule")

	// ErrNilManager 规则注册表为 nil。
	ErrNilManager = errors.New("xhotspot: rule manager cannot be nil")

	// ErrInvalidCacheCapacity 计数器缓存容量非法。
	ErrInvalidCacheCapacity = errors.New("xhotspot: cache capacity must be positive")
)
