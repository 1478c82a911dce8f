// Package xguard 是资源保护的门面：把统计、流控、熔断、系统保护与
// 热点限流组装成一条插槽链，对外提供 Entry/Exit 准入协议与 Do 组合子。
//
// Guard 是显式构造的实例对象，不提供包级单例：所有依赖（统计节点
// 注册表、各规则注册表、日志器）都由 Guard 持有并可注入，不同
// Guard 之间互不共享状态，测试无需清理全局。
//
// 典型用法:
//
//	g, err := xguard.New()
//	...
//	err = g.LoadFlowRules([]*xflow.Rule{{Resource: "get-user", Threshold: 100}})
//	...
//	entry, blockErr := g.Entry("get-user", xguard.WithTrafficType(xbase.Inbound))
//	if blockErr != nil {
//		// 被拦截，走降级
//		return
//	}
//	defer entry.Exit()
//	// 业务逻辑
package xguard
