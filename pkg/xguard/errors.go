package xguard

import "errors"

var (
	// ErrNilFunc Do 组合子的业务函数为 nil。
	ErrNilFunc = errors.New("xguard: fn cannot be nil")
)
