package xstat

import "errors"

var (
	// ErrInvalidSampleCount 采样桶数非法（为零或不能整除窗口跨度）。
	ErrInvalidSampleCount = errors.New("xstat: invalid sample count")

	// ErrInvalidInterval 窗口跨度非法。
	ErrInvalidInterval = errors.New("xstat: invalid interval")

	// ErrTimeBehindStart 当前时间早于桶的起始时间，本机时钟发生回拨。
	ErrTimeBehindStart = errors.New("xstat: current time is behind bucket start, clock moved backwards")

	// ErrWindowNotAligned 派生视图与底层窗口不对齐
	// （视图桶宽必须是底层桶宽的整数倍且跨度不超过底层窗口）。
	ErrWindowNotAligned = errors.New("xstat: derived window is not aligned with the underlying leap array")
)
