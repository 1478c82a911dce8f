package xrule

import "errors"

var (
	// ErrEmptyPath 规则文件路径为空。
	ErrEmptyPath = errors.New("xrule: rule file path cannot be empty")

	// ErrNilGuard Guard 为 nil。
	ErrNilGuard = errors.New("xrule: guard cannot be nil")

	// ErrNilRuleFile 规则文件为 nil。
	ErrNilRuleFile = errors.New("xrule: rule file cannot be nil")

	// ErrUnsupportedFormat 不支持的文件格式。
	ErrUnsupportedFormat = errors.New("xrule: unsupported rule file format")

	// ErrLoadFailed 文件读取失败。
	ErrLoadFailed = errors.New("xrule: failed to load rule file")

	// ErrParseFailed 文件解析失败。
	ErrParseFailed = errors.New("xrule: failed to parse rule file")
)
