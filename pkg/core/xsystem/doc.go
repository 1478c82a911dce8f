// Package xsystem 提供进程级的系统自适应保护。
//
// 保护只作用于入站流量：按系统负载、进程 CPU 占用、全局入站 QPS、
// 全局并发数、全局平均响应时间五个维度设置水位线，任一维度越线即
// 拦截。负载与 CPU 维度可选 BBR 自适应策略：越线后不直接拒绝，
// 而是以近期吞吐与最小响应时间估算系统容量，仅在当前并发超出
// 估算容量时拦截，避免一刀切误伤。
//
// 系统指标由 Collector 周期采样，读取永不阻塞；采样失败的维度
// 记为 NaN 并在检查时跳过（降级模式）。
package xsystem
