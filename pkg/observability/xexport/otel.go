package xexport

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/omeyang/xguard/pkg/xguard"
)

const (
	defaultInstrumentationName = "github.com/omeyang/xguard/xexport"

	metricPassQPS       = "xguard.resource.pass.qps"
	metricBlockQPS      = "xguard.resource.block.qps"
	metricErrorQPS      = "xguard.resource.error.qps"
	metricAvgRT         = "xguard.resource.rt.avg"
	metricConcurrency   = "xguard.resource.concurrency"
	metricFlowThreshold = "xguard.flow.threshold"
)

type config struct {
	instrumentationName string
	meterProvider       metric.MeterProvider
}

// Option Exporter 可选配置函数。
type Option func(*config)

// WithInstrumentationName 设置 OTel instrumentation 名称。
func WithInstrumentationName(name string) Option {
	return func(cfg *config) {
		if name != "" {
			cfg.instrumentationName = name
		}
	}
}

// WithMeterProvider 设置 MeterProvider，默认取全局。
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(cfg *config) {
		if provider != nil {
			cfg.meterProvider = provider
		}
	}
}

// Exporter 把 Guard 快照注册为一组异步 Gauge。
type Exporter struct {
	registration metric.Registration
}

// New 创建并注册 Exporter。
func New(g *xguard.Guard, opts ...Option) (*Exporter, error) {
	if g == nil {
		return nil, ErrNilGuard
	}
	cfg := &config{
		instrumentationName: defaultInstrumentationName,
		meterProvider:       otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	meter := cfg.meterProvider.Meter(cfg.instrumentationName)

	passQPS, err := meter.Float64ObservableGauge(metricPassQPS,
		metric.WithDescription("per-second pass rate of the resource"),
		metric.WithUnit("1/s"))
	if err != nil {
		return nil, fmt.Errorf("xexport: create gauge failed: %w", err)
	}
	blockQPS, err := meter.Float64ObservableGauge(metricBlockQPS,
		metric.WithDescription("per-second block rate of the resource"),
		metric.WithUnit("1/s"))
	if err != nil {
		return nil, fmt.Errorf("xexport: create gauge failed: %w", err)
	}
	errorQPS, err := meter.Float64ObservableGauge(metricErrorQPS,
		metric.WithDescription("per-second error rate of the resource"),
		metric.WithUnit("1/s"))
	if err != nil {
		return nil, fmt.Errorf("xexport: create gauge failed: %w", err)
	}
	avgRT, err := meter.Float64ObservableGauge(metricAvgRT,
		metric.WithDescription("average response time of the resource"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("xexport: create gauge failed: %w", err)
	}
	concurrency, err := meter.Int64ObservableGauge(metricConcurrency,
		metric.WithDescription("current concurrency of the resource"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("xexport: create gauge failed: %w", err)
	}
	flowThreshold, err := meter.Float64ObservableGauge(metricFlowThreshold,
		metric.WithDescription("effective flow rule threshold"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("xexport: create gauge failed: %w", err)
	}

	registration, err := meter.RegisterCallback(
		func(_ context.Context, observer metric.Observer) error {
			for _, s := range g.Snapshots() {
				attrs := metric.WithAttributes(attribute.String("resource", s.Resource))
				observer.ObserveFloat64(passQPS, s.PassQPS, attrs)
				observer.ObserveFloat64(blockQPS, s.BlockQPS, attrs)
				observer.ObserveFloat64(errorQPS, s.ErrorQPS, attrs)
				observer.ObserveFloat64(avgRT, s.AvgRTMs, attrs)
				observer.ObserveInt64(concurrency, int64(s.Concurrency), attrs)
			}
			for _, r := range g.FlowRules() {
				observer.ObserveFloat64(flowThreshold, r.Threshold,
					metric.WithAttributes(
						attribute.String("resource", r.Resource),
						attribute.String("rule.id", r.ID)))
			}
			return nil
		},
		passQPS, blockQPS, errorQPS, avgRT, concurrency, flowThreshold,
	)
	if err != nil {
		return nil, fmt.Errorf("xexport: register callback failed: %w", err)
	}
	return &Exporter{registration: registration}, nil
}

// Close 注销指标回调。
func (e *Exporter) Close() error {
	return e.registration.Unregister()
}
