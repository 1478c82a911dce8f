package xbase

import "errors"

var (
	// ErrEntryExited 同一 Entry 被第二次 Exit。
	// 这是调用方协议错误：并发数等统计不会被二次回写。
	ErrEntryExited = errors.New("xbase: entry already exited")

	// ErrNilResource 资源名为空。
	ErrNilResource = errors.New("xbase: resource name cannot be empty")
)
