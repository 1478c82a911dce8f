// Package xtime 提供毫秒精度的时钟辅助函数。
//
// 滑动窗口、熔断器恢复期、排队整形等所有时间相关的判定
// 统一使用本包的毫秒时间戳，避免各处混用 time.Time 与纳秒值。
package xtime

import "time"

// CurrentTimeMillis 返回当前 Unix 毫秒时间戳。
func CurrentTimeMillis() uint64 {
	return uint64(time.Now().UnixMilli())
}

// CurrentTimeNano 返回当前 Unix 纳秒时间戳。
// 排队整形（throttling）需要亚毫秒精度的间隔计算。
func CurrentTimeNano() int64 {
	return time.Now().UnixNano()
}

// MillisToNanos 毫秒转纳秒。
func MillisToNanos(ms uint64) int64 {
	return int64(ms) * int64(time.Millisecond)
}

// NanosToMillis 纳秒转毫秒（向下取整）。
func NanosToMillis(ns int64) uint64 {
	if ns <= 0 {
		return 0
	}
	return uint64(ns / int64(time.Millisecond))
}
