// Package xbase 定义准入管线的公共词汇：资源标识、拦截错误、
// 令牌结果、调用上下文、Entry 凭证以及插槽链（SlotChain）。
//
// # 核心约定
//
//   - 每次受保护调用以 Entry 准入、以 Exit 完结，Exit 恰好一次；
//     重复 Exit 返回 ErrEntryExited，是调用方协议错误而非内部缺陷。
//   - SlotChain 按固定优先级正序执行入口检查，首个拦截立即短路；
//     出口按注册逆序执行统计回写。
//   - 所有拦截以 BlockError 值返回，决策路径上不发生 panic。
//
// 规则检查器（流控/熔断/系统自适应/热点参数）以 RuleCheckSlot 形式
// 挂入链中，统计类插槽以 StatPrepareSlot/StatSlot 形式挂入。
package xbase
