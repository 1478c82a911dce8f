// Package util 提供通用工具相关的子包。
//
// 子包列表：
//   - xtime: 毫秒精度的时钟辅助函数
//   - xmath: 规则阈值比较所需的浮点辅助函数
//
// 设计原则：
//   - 只收纳多个核心包共享的最小工具面
//   - 不引入第三方依赖
package util
