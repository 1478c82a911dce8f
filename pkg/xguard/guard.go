package xguard

import (
	"log/slog"

	"github.com/omeyang/xguard/pkg/core/xbase"
	"github.com/omeyang/xguard/pkg/core/xcircuit"
	"github.com/omeyang/xguard/pkg/core/xflow"
	"github.com/omeyang/xguard/pkg/core/xhotspot"
	"github.com/omeyang/xguard/pkg/core/xstat"
	"github.com/omeyang/xguard/pkg/core/xsystem"
)

// Guard 资源保护门面。持有统计节点注册表、插槽链与四类规则注册表，
// 构造后并发安全。
type Guard struct {
	logger  *slog.Logger
	storage *xstat.NodeStorage
	chain   *xbase.SlotChain

	flowManager    *xflow.RuleManager
	circuitGroup   *xcircuit.Group
	systemManager  *xsystem.RuleManager
	hotspotManager *xhotspot.RuleManager
	collector      *xsystem.Collector
}

// Option Guard 可选配置函数。
type Option func(*options)

type options struct {
	logger    *slog.Logger
	collector *xsystem.Collector
}

// WithLogger 注入日志器，默认 slog.Default()。
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithSystemCollector 注入系统指标采集器。未注入时 Load 与 CpuUsage
// 维度的系统规则始终处于降级模式（不评估）。采集器的启动与停止
// 由调用方负责。
func WithSystemCollector(c *xsystem.Collector) Option {
	return func(o *options) {
		o.collector = c
	}
}

// New 创建 Guard 并组装默认插槽链：
// 统计准备 → 流控 → 熔断 → 系统保护 → 热点 → 各统计槽。
func New(opts ...Option) (*Guard, error) {
	o := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	storage := xstat.NewNodeStorage()
	flowManager, err := xflow.NewRuleManager(storage, logger)
	if err != nil {
		return nil, err
	}
	circuitGroup := xcircuit.NewGroup(logger)
	systemManager := xsystem.NewRuleManager(logger)
	hotspotManager := xhotspot.NewRuleManager(logger)

	g := &Guard{
		logger:         logger,
		storage:        storage,
		flowManager:    flowManager,
		circuitGroup:   circuitGroup,
		systemManager:  systemManager,
		hotspotManager: hotspotManager,
		collector:      o.collector,
	}

	chain := xbase.NewSlotChain(logger)
	chain.AddStatPrepareSlot(xstat.NewResourceNodeBuilderSlot(storage))

	flowSlot, err := xflow.NewSlot(flowManager)
	if err != nil {
		return nil, err
	}
	chain.AddRuleCheckSlot(flowSlot)

	circuitSlot, err := xcircuit.NewSlot(circuitGroup)
	if err != nil {
		return nil, err
	}
	chain.AddRuleCheckSlot(circuitSlot)

	adaptiveSlot, err := xsystem.NewAdaptiveSlot(systemManager, o.collector, storage)
	if err != nil {
		return nil, err
	}
	chain.AddRuleCheckSlot(adaptiveSlot)

	hotspotSlot, err := xhotspot.NewSlot(hotspotManager)
	if err != nil {
		return nil, err
	}
	chain.AddRuleCheckSlot(hotspotSlot)

	chain.AddStatSlot(xstat.NewStatisticSlot(storage))

	metricStatSlot, err := xcircuit.NewMetricStatSlot(circuitGroup)
	if err != nil {
		return nil, err
	}
	chain.AddStatSlot(metricStatSlot)

	concurrencySlot, err := xhotspot.NewConcurrencyStatSlot(hotspotManager)
	if err != nil {
		return nil, err
	}
	chain.AddStatSlot(concurrencySlot)

	g.chain = chain
	return g, nil
}

// EntryOption Entry 可选配置函数。
type EntryOption func(*entryOptions)

type entryOptions struct {
	trafficType xbase.TrafficType
	batchCount  uint32
	args        []any
}

// WithTrafficType 指定流量方向，默认出站。系统自适应保护只检查入站。
func WithTrafficType(t xbase.TrafficType) EntryOption {
	return func(o *entryOptions) {
		o.trafficType = t
	}
}

// WithBatchCount 指定本次调用消耗的令牌数，默认 1。
func WithBatchCount(count uint32) EntryOption {
	return func(o *entryOptions) {
		o.batchCount = count
	}
}

// WithArgs 携带调用参数，供热点参数规则按下标取值。
func WithArgs(args ...any) EntryOption {
	return func(o *entryOptions) {
		o.args = args
	}
}

// Entry 请求对资源的一次准入。
//
// 通过时返回 Entry 凭证，持有者必须在所有代码路径上恰好调用一次
// Exit；拦截时返回 BlockError，此时没有需要释放的凭证。两个返回值
// 恰好一个非 nil。
//
// 匀速排队规则给出的等待是建议性的：Entry 立即返回，建议等待时长
// 挂在凭证上下文的检查结果里，是否等待由调用方决定（Do 组合子会
// 代为等待）。
func (g *Guard) Entry(resource string, opts ...EntryOption) (*xbase.Entry, *xbase.BlockError) {
	o := &entryOptions{trafficType: xbase.Outbound, batchCount: 1}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.batchCount == 0 {
		o.batchCount = 1
	}

	if resource == "" {
		return nil, xbase.NewBlockError(xbase.BlockTypeUnknown,
			xbase.WithBlockMsg("empty resource name"))
	}

	rw := xbase.NewResourceWrapper(resource, o.trafficType)
	ctx := xbase.NewEntryContext()
	ctx.Resource = rw
	ctx.Input.BatchCount = o.batchCount
	ctx.Input.Args = o.args

	e := xbase.NewEntry(ctx, rw, g.chain)

	result := g.chain.Entry(ctx)
	if result.IsBlocked() {
		blockErr := result.BlockError()
		// Exit 驱动已注册的退出回调（如熔断探测回滚），
		// 统计出口因拦截被跳过。
		_ = e.Exit()
		return nil, blockErr
	}
	return e, nil
}

// LoadFlowRules 全量替换流控规则。
func (g *Guard) LoadFlowRules(rules []*xflow.Rule) error {
	return g.flowManager.LoadRules(rules)
}

// LoadCircuitRules 全量替换熔断规则。
func (g *Guard) LoadCircuitRules(rules []*xcircuit.Rule) error {
	return g.circuitGroup.LoadRules(rules)
}

// LoadSystemRules 全量替换系统保护规则。
func (g *Guard) LoadSystemRules(rules []*xsystem.Rule) error {
	return g.systemManager.LoadRules(rules)
}

// LoadHotSpotRules 全量替换热点参数规则。
func (g *Guard) LoadHotSpotRules(rules []*xhotspot.Rule) error {
	return g.hotspotManager.LoadRules(rules)
}

// FlowRules 返回当前生效的流控规则。
func (g *Guard) FlowRules() []xflow.Rule {
	return g.flowManager.GetRules()
}

// CircuitRules 返回当前生效的熔断规则。
func (g *Guard) CircuitRules() []xcircuit.Rule {
	return g.circuitGroup.GetRules()
}

// SystemRules 返回当前生效的系统保护规则。
func (g *Guard) SystemRules() []xsystem.Rule {
	return g.systemManager.GetRules()
}

// HotSpotRules 返回当前生效的热点参数规则。
func (g *Guard) HotSpotRules() []xhotspot.Rule {
	return g.hotspotManager.GetRules()
}

// RegisterStateChangeListener 注册熔断器状态迁移观察者。
func (g *Guard) RegisterStateChangeListener(listeners ...xcircuit.StateChangeListener) {
	g.circuitGroup.RegisterStateChangeListener(listeners...)
}

// NodeStorage 返回统计节点注册表，供观测导出读取。
func (g *Guard) NodeStorage() *xstat.NodeStorage {
	return g.storage
}

// Logger 返回 Guard 的日志器。
func (g *Guard) Logger() *slog.Logger {
	return g.logger
}
