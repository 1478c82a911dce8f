// Package xstat 实现准入决策的统计底座。
//
// # 结构
//
//   - LeapArray：定长环形时间桶数组，桶按需惰性重置（CAS 单重置者），
//     没有后台清扫协程；是所有窗口统计的通用载体。
//   - MetricBucket：单桶内按事件维度的原子计数（通过/拦截/完结/错误/耗时）。
//   - BucketLeapArray：以 MetricBucket 为桶负载的读写窗口。
//   - SlidingWindowMetric：在底层窗口之上派生的只读聚合视图，
//     跨度不细于底层桶宽。
//   - ResourceNode：单资源的统计节点，细粒度窗口（秒级视图）承接 QPS
//     类规则，粗粒度逐秒窗口承接分钟级阈值，外加原子实时并发数。
//
// 窗口求和只统计标记区间仍落在 [now-span, now] 内的桶；
// 过期但尚未被触达重置的桶一律排除。并发写入与求和之间不加锁，
// 求和是最多偏差一个桶宽的尽力快照。
package xstat
