// Package xexport 把 Guard 的统计快照桥接到 OpenTelemetry 指标。
//
// 全部指标以异步 Gauge 注册：采集周期由 MeterProvider 的 Reader
// 决定，回调在采集时读取各资源的滑动窗口快照，不在准入热路径上
// 产生任何额外开销。Exporter 关闭时注销回调。
package xexport
