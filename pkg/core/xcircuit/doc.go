// Package xcircuit 提供按资源的熔断器。
//
// 每个熔断器是 Closed/Open/HalfOpen 三态的原子状态机：Closed 态按
// 策略（慢调用比例、错误比例、错误计数）在独立的滑动窗口上统计并判定；
// 触发后进入 Open 态直接拒绝；重试超时到达后通过一次 CAS 竞争放行
// 恰好一个探测请求进入 HalfOpen，探测成功回到 Closed 并清空统计，
// 失败（含被下游插槽拦截）回到 Open 并重置重试截止时刻。
//
// 熔断器由 Group 显式注册管理，规则热更新时等价规则复用已有统计窗口。
package xcircuit
