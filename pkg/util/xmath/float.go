// Package xmath 提供规则阈值比较所需的浮点辅助函数。
package xmath

import "math"

// floatEpsilon 浮点相等判定的容差。
const floatEpsilon = 1e-9

// Float64Equals 判断两个 float64 是否在容差范围内相等。
// 规则阈值（如异常比例 0.5）与统计比值的比较必须使用容差，
// 直接 == 会因累计误差产生抖动。
func Float64Equals(a, b float64) bool {
	return math.Abs(a-b) < floatEpsilon
}
