// Package xhotspot 提供热点参数限流。
//
// 普通流控以资源为粒度，热点限流更进一步：对调用时携带的某个参数、
// 按参数值分别计数与限流，让个别过热的参数值（如某个刷榜的商品 ID）
// 被拦截而不拖累同资源下的其他值。
//
// 每个参数值的计数器存放在容量有界的 LRU 缓存里，冷值被逐出时其
// 历史静默丢失，下次出现按新值从头计数。超阈值行为支持直接拒绝
// （带突发容忍的令牌桶）与匀速排队两种。
package xhotspot
