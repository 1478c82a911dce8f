package xexport

import "errors"

var (
	// ErrNilGuard Guard 为 nil。
	ErrNilGuard = errors.New("xexport: guard cannot be nil")
)
