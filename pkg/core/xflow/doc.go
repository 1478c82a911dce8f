// Package xflow 实现流量整形检查器。
//
// 每条规则对应一个 TrafficShapingController，由两部分组合：
//
//   - TrafficShapingCalculator 计算调用时刻的许可阈值
//     （Direct 恒定阈值；WarmUp 从 threshold/coldFactor 线性爬升）。
//   - TrafficShapingChecker 将当前指标与阈值比较并产出结论
//     （Reject 直接拒绝；Throttling 匀速排队，给出建议等待时长）。
//
// Throttling 检查器本身同步且不阻塞：等待在最大排队时长内时返回
// 携带建议时长的通过结果，是否真正等待由调用方决定。
//
// 规则集整体替换（copy-on-write 快照交换），读者在单次准入内
// 只解引用一次快照，不会读到新旧规则的混合。
package xflow
