// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xexport: 把 Guard 统计快照与生效规则注册为 OpenTelemetry 异步 Gauge
//
// 设计原则：
//   - 遵循 OpenTelemetry 语义规范
//   - 导出是旁路：注册与注销不影响准入热路径
package observability
