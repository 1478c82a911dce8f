// Package xrule 提供规则文件的加载与热更新。
//
// 规则文件是 YAML 或 JSON 格式的单文件，四类规则各占一节:
//
//	flow:
//	  - resource: get-user
//	    metricType: 1
//	    threshold: 100
//	circuitBreaker:
//	  - resource: call-downstream
//	    strategy: 1
//	    retryTimeoutMs: 3000
//	    threshold: 0.5
//	system:
//	  - metricType: 4
//	    triggerCount: 0.8
//	hotSpot:
//	  - resource: get-item
//	    paramIndex: 0
//	    threshold: 50
//	    durationInSec: 1
//
// 应用是全有或全无的：四节规则先全部校验通过，再逐节载入 Guard；
// 任何一节校验失败时整个文件被拒绝，当前生效规则保持不变。
// Watcher 基于 fsnotify 监控文件变更并带防抖自动重载。
package xrule
