package xsystem

import (
	"context"
	"log/slog"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/process"
)

// DefaultCollectIntervalMs 默认采样周期（毫秒）。
const DefaultCollectIntervalMs = 1000

// Collector 系统指标采集器：周期采样 1 分钟平均负载与本进程 CPU 占用率
// 到原子值，读取方永不阻塞。
//
// 采集器显式启动与停止，不随包初始化自动运行。某一维度采样失败时
// 其值记为 NaN，检查器据此跳过该维度（降级模式），而不是放大为
// 误拦截或误放行的确定性结论。
type Collector struct {
	interval time.Duration
	logger   *slog.Logger

	// loadBits / cpuBits 以 Float64bits 编码的当前采样值。
	loadBits atomic.Uint64
	cpuBits  atomic.Uint64

	proc *process.Process

	startOnce sync.Once
	started   atomic.Bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewCollector 创建采集器。intervalMs 为 0 时取默认值。
func NewCollector(intervalMs uint32, logger *slog.Logger) *Collector {
	if intervalMs == 0 {
		intervalMs = DefaultCollectIntervalMs
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Collector{
		interval: time.Duration(intervalMs) * time.Millisecond,
		logger:   logger,
		done:     make(chan struct{}),
	}
	c.loadBits.Store(math.Float64bits(math.NaN()))
	c.cpuBits.Store(math.Float64bits(math.NaN()))

	// 进程句柄解析失败时 CPU 维度保持 NaN。
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		c.proc = p
	} else {
		logger.Warn("xsystem: resolve current process failed, cpu usage degraded",
			slog.Any("error", err))
	}
	return c
}

// Start 启动采样循环。重复调用返回 ErrCollectorStarted。
// ctx 取消或调用 Stop 都会终止循环。
func (c *Collector) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrCollectorStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.startOnce.Do(func() {
		go c.run(runCtx)
	})
	return nil
}

// Stop 停止采样循环并等待其退出。未启动时立即返回。
func (c *Collector) Stop() {
	if !c.started.Load() {
		return
	}
	c.cancel()
	<-c.done
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)

	// 首次采样不等整个周期，尽快脱离 NaN 初始态。
	c.sample()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sample()
		}
	}
}

func (c *Collector) sample() {
	if avg, err := load.Avg(); err == nil {
		c.loadBits.Store(math.Float64bits(avg.Load1))
	} else {
		c.loadBits.Store(math.Float64bits(math.NaN()))
	}

	if c.proc == nil {
		return
	}
	// Percent(0) 返回相对上次调用的区间占用，首次调用为 0。
	if pct, err := c.proc.Percent(0); err == nil {
		c.cpuBits.Store(math.Float64bits(pct / 100.0))
	} else {
		c.cpuBits.Store(math.Float64bits(math.NaN()))
	}
}

// CurrentLoad 返回最近一次采样的 1 分钟平均负载，无有效采样时为 NaN。
func (c *Collector) CurrentLoad() float64 {
	return math.Float64frombits(c.loadBits.Load())
}

// CurrentCpuUsage 返回最近一次采样的进程 CPU 占用率 [0.0, 1.0]，
// 无有效采样时为 NaN。
func (c *Collector) CurrentCpuUsage() float64 {
	return math.Float64frombits(c.cpuBits.Load())
}
