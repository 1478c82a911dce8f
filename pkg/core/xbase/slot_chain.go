package xbase

import (
	"log/slog"
	"sort"
)

// BaseSlot 插槽公共接口。Order 返回固定的执行优先级，
// 数值越小越先执行；优先级是各插槽代码中显式声明的常量，
// 不由注册顺序推断。
type BaseSlot interface {
	Order() uint32
}

// StatPrepareSlot 统计准备插槽：在任何规则检查之前执行，
// 负责解析并挂载资源统计节点等前置状态。
type StatPrepareSlot interface {
	BaseSlot
	Prepare(ctx *EntryContext)
}

// RuleCheckSlot 规则检查插槽：可以拒绝一次准入。
type RuleCheckSlot interface {
	BaseSlot
	Check(ctx *EntryContext) *TokenResult
}

// StatSlot 统计插槽：在准入结论产生后与调用完结时回写各自的统计。
type StatSlot interface {
	BaseSlot
	// OnEntryPassed 准入通过时回调。
	OnEntryPassed(ctx *EntryContext)
	// OnEntryBlocked 准入被拦截时回调。
	OnEntryBlocked(ctx *EntryContext, blockErr *BlockError)
	// OnCompleted 调用完结（Exit）时回调，此时 ctx 已回填 rt 与 err。
	OnCompleted(ctx *EntryContext)
}

// SlotChain 资源级的插槽管线：入口按优先级正序执行，
// 首个拦截立即短路；出口按逆序执行。
// 链在构建后只读，可被任意数量的并发调用共享。
type SlotChain struct {
	prepares []StatPrepareSlot
	checks   []RuleCheckSlot
	stats    []StatSlot
	logger   *slog.Logger
}

// NewSlotChain 创建空链。logger 为 nil 时使用 slog.Default()。
func NewSlotChain(logger *slog.Logger) *SlotChain {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlotChain{logger: logger}
}

// AddStatPrepareSlot 注册统计准备插槽。
func (sc *SlotChain) AddStatPrepareSlot(s StatPrepareSlot) {
	sc.prepares = append(sc.prepares, s)
	sort.SliceStable(sc.prepares, func(i, j int) bool {
		return sc.prepares[i].Order() < sc.prepares[j].Order()
	})
}

// AddRuleCheckSlot 注册规则检查插槽。
func (sc *SlotChain) AddRuleCheckSlot(s RuleCheckSlot) {
	sc.checks = append(sc.checks, s)
	sort.SliceStable(sc.checks, func(i, j int) bool {
		return sc.checks[i].Order() < sc.checks[j].Order()
	})
}

// AddStatSlot 注册统计插槽。
func (sc *SlotChain) AddStatSlot(s StatSlot) {
	sc.stats = append(sc.stats, s)
	sort.SliceStable(sc.stats, func(i, j int) bool {
		return sc.stats[i].Order() < sc.stats[j].Order()
	})
}

// Entry 执行入口管线并返回最终结论。
//
// 各检查插槽入口侧的副作用按位置无关设计：统计插槽记录的 pass 与
// 后续插槽可能记录的 block 是相互独立的计数器，先行插槽不需要因
// 后续拦截而回滚。
//
// 设计决策: 插槽实现自身的缺陷（panic）在此处捕获并按通过处理。
// 决策路径的契约是绝不让宿主进程崩溃，而内部缺陷不应表现为对
// 业务流量的误拦截，故降级为放行并记录错误日志。
func (sc *SlotChain) Entry(ctx *EntryContext) (result *TokenResult) {
	defer func() {
		if r := recover(); r != nil {
			sc.logger.Error("xbase: slot chain entry panicked, failing open",
				slog.Any("panic", r),
				slog.String("resource", ctx.Resource.Name()))
			ctx.RuleCheckResult.ResetToPass()
			result = ctx.RuleCheckResult
		}
	}()

	for _, s := range sc.prepares {
		s.Prepare(ctx)
	}

	ruleResult := ctx.RuleCheckResult
	for _, s := range sc.checks {
		if r := s.Check(ctx); r != nil {
			ruleResult = r
			ctx.RuleCheckResult = r
			if r.IsBlocked() {
				break
			}
		}
	}

	if ruleResult.IsBlocked() {
		blockErr := ruleResult.BlockError()
		for _, s := range sc.stats {
			s.OnEntryBlocked(ctx, blockErr)
		}
	} else {
		for _, s := range sc.stats {
			s.OnEntryPassed(ctx)
		}
	}
	return ruleResult
}

// Exit 逆序执行各统计插槽的完结回调。
func (sc *SlotChain) Exit(ctx *EntryContext) {
	defer func() {
		if r := recover(); r != nil {
			sc.logger.Error("xbase: slot chain exit panicked",
				slog.Any("panic", r),
				slog.String("resource", ctx.Resource.Name()))
		}
	}()
	if ctx.IsBlocked() {
		return
	}
	for i := len(sc.stats) - 1; i >= 0; i-- {
		sc.stats[i].OnCompleted(ctx)
	}
}
